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

// Package secretbox encrypts environment-variable values and deploy-key
// private keys at rest with AES-256-GCM, keyed by a process secret derived
// from the configured root secret (component B).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/nusendra/ployer/internal/ployererr"
)

const nonceSize = 12

// domainLabel separates the SecretBox key from any other key an external
// collaborator might derive from the same root secret (e.g. the session
// token signer mentioned in spec §4.6).
const domainLabel = "ployer.secretbox.v1"

// Box holds the derived 32-byte AEAD key for the lifetime of the process.
type Box struct {
	key [32]byte
}

// New derives the Box key from rootSecret. The same rootSecret always
// derives the same key; rotation is out of scope (changing rootSecret
// invalidates every existing ciphertext, per spec §4.6).
func New(rootSecret string) *Box {
	h := sha256.Sum256([]byte(domainLabel + ":" + rootSecret))
	b := &Box{}
	copy(b.key[:], h[:])
	return b
}

// Encrypt returns a base64-encoded nonce||ciphertext||tag string.
func (b *Box) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Encrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Encrypt", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Encrypt", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt fails closed with a Crypto-kind error on any tag mismatch,
// truncated ciphertext, or bad base64 — never partially returns plaintext.
func (b *Box) Decrypt(stored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Decrypt", fmt.Errorf("invalid encoding: %w", err))
	}
	if len(data) < nonceSize {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Decrypt", fmt.Errorf("ciphertext too short"))
	}

	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Decrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Decrypt", err)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ployererr.New(ployererr.Crypto, "secretbox.Decrypt", fmt.Errorf("tag mismatch: %w", err))
	}

	return string(plaintext), nil
}
