/*
 * Copyright (C) 2026 Mustafa Naseer (Mustafa Gaeed)
 *
 * This file is part of ployer.
 *
 * ployer is free software: you can redistribute it and/or modify
 * it under the terms of the MIT License as described in the
 * LICENSE file distributed with this project.
 *
 * ployer is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * MIT License for more details.
 *
 * You should have received a copy of the MIT License
 * along with ployer. If not, see the LICENSE file in the project root.
 */

// Package gitadapter is the Git Adapter (component E): clone at ref,
// fetch+fast-forward, read the latest commit, and RSA deploy-key generation
// for SSH-authenticated clones. It shells out to the system git binary the
// way the teacher's deploy executor does, rather than embedding a git
// implementation.
package gitadapter

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/pkg/logger"
)

type Adapter struct {
	log *logger.Logger
}

func New() *Adapter {
	return &Adapter{log: logger.With("gitadapter")}
}

// KeyPair is a freshly generated RSA deploy key, PEM-encoded private half and
// OpenSSH authorized_keys-format public half.
type KeyPair struct {
	PrivateKeyPEM string
	PublicKey     string
}

// GenerateKeyPair creates the per-application SSH key pair spec §3's
// DeployKey entity needs, exactly one of which exists per application with a
// git URL.
func GenerateKeyPair() (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "gitadapter.GenerateKeyPair", err)
	}

	privDER := x509.MarshalPKCS1PrivateKey(key)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER})

	pub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "gitadapter.GenerateKeyPair", err)
	}

	return &KeyPair{
		PrivateKeyPEM: string(privPEM),
		PublicKey:     strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))),
	}, nil
}

// CommitInfo is the HEAD commit read after a clone.
type CommitInfo struct {
	SHA     string
	Message string
}

// Clone shallow-clones url at branch into dir, authenticating with
// privateKeyPEM over SSH when non-empty (spec §4.1 "cloning": "if a DeployKey
// exists, decrypt private key via B and use it for SSH auth").
func (a *Adapter) Clone(ctx context.Context, url, branch, dir, privateKeyPEM string, onLine func(string)) (*CommitInfo, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, ployererr.New(ployererr.Internal, "gitadapter.Clone", err)
	}

	var keyFile string
	if privateKeyPEM != "" {
		f, err := writeTempKeyFile(privateKeyPEM)
		if err != nil {
			return nil, ployererr.Cryptof("gitadapter.Clone", err)
		}
		keyFile = f
		defer os.Remove(keyFile)
	}

	args := []string{"clone", "--depth", "1", "-b", branch, "--single-branch", url, dir}
	if err := a.runGit(ctx, "", keyFile, onLine, args...); err != nil {
		return nil, ployererr.Upstreamf("gitadapter.Clone", err)
	}

	return a.headCommit(ctx, dir)
}

// FetchFastForward updates an existing clone in place.
func (a *Adapter) FetchFastForward(ctx context.Context, dir, branch, privateKeyPEM string, onLine func(string)) (*CommitInfo, error) {
	var keyFile string
	if privateKeyPEM != "" {
		f, err := writeTempKeyFile(privateKeyPEM)
		if err != nil {
			return nil, ployererr.Cryptof("gitadapter.FetchFastForward", err)
		}
		keyFile = f
		defer os.Remove(keyFile)
	}

	if err := a.runGit(ctx, dir, keyFile, onLine, "fetch", "origin", branch); err != nil {
		return nil, ployererr.Upstreamf("gitadapter.FetchFastForward", err)
	}
	if err := a.runGit(ctx, dir, keyFile, onLine, "reset", "--hard", "origin/"+branch); err != nil {
		return nil, ployererr.Upstreamf("gitadapter.FetchFastForward", err)
	}

	return a.headCommit(ctx, dir)
}

func (a *Adapter) headCommit(ctx context.Context, dir string) (*CommitInfo, error) {
	shaCmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD")
	shaOut, err := shaCmd.Output()
	if err != nil {
		return nil, ployererr.Upstreamf("gitadapter.headCommit", err)
	}

	msgCmd := exec.CommandContext(ctx, "git", "-C", dir, "log", "-1", "--pretty=%B")
	msgOut, err := msgCmd.Output()
	if err != nil {
		return nil, ployererr.Upstreamf("gitadapter.headCommit", err)
	}

	return &CommitInfo{
		SHA:     strings.TrimSpace(string(shaOut)),
		Message: strings.TrimSpace(string(msgOut)),
	}, nil
}

func (a *Adapter) runGit(ctx context.Context, dir, keyFile string, onLine func(string), args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if keyFile != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("GIT_SSH_COMMAND=ssh -i %s -o IdentitiesOnly=yes -o StrictHostKeyChecking=accept-new", keyFile))
	}

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{}, 2)
	go func() { scanLines(stdout, onLine); done <- struct{}{} }()
	go func() { scanLines(stderr, onLine); done <- struct{}{} }()
	<-done
	<-done

	if err := cmd.Wait(); err != nil {
		// exec.CommandContext kills the process with a signal when ctx is
		// cancelled, so Wait returns "signal: killed", not context.Canceled.
		// Surface the real cause so callers using errors.Is(err, context.Canceled)
		// can tell a cancelled clone apart from a genuine git failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func scanLines(r interface{ Read([]byte) (int, error) }, onLine func(string)) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
}

// writeTempKeyFile persists a decrypted private key to a 0600 temp file for
// the lifetime of a single git invocation, per spec §9 "secret handling"
// (plaintext lives in process memory/disk only for the duration of use).
func writeTempKeyFile(pemContent string) (string, error) {
	f, err := os.CreateTemp("", "ployer-deploykey-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.Chmod(0600); err != nil {
		return "", err
	}
	if _, err := f.WriteString(pemContent); err != nil {
		return "", err
	}
	return f.Name(), nil
}
