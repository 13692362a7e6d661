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

package webhookingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyGitHubSignatureValid(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	header := sign("s3cret", body)
	if !verifyGitHubSignature(body, "s3cret", header) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyGitHubSignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	header := sign("s3cret", body)
	if verifyGitHubSignature([]byte(`{"ref":"refs/heads/evil"}`), "s3cret", header) {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestVerifyGitHubSignatureRejectsMissingSecret(t *testing.T) {
	body := []byte(`{}`)
	header := sign("", body)
	if verifyGitHubSignature(body, "", header) {
		t.Fatal("expected an unconfigured secret to never verify")
	}
}

func TestVerifyGitHubSignatureRejectsMalformedHeader(t *testing.T) {
	if verifyGitHubSignature([]byte("x"), "s3cret", "not-a-signature") {
		t.Fatal("expected malformed header to fail verification")
	}
}

func TestVerifyGitLabTokenEquality(t *testing.T) {
	if !verifyGitLabToken("tok", "tok") {
		t.Fatal("expected equal tokens to verify")
	}
	if verifyGitLabToken("tok", "other") {
		t.Fatal("expected unequal tokens to fail")
	}
	if verifyGitLabToken("", "") {
		t.Fatal("expected an unconfigured secret to never verify, even against an empty header")
	}
}

func TestExtractBranch(t *testing.T) {
	cases := map[string]string{
		"refs/heads/main":    "main",
		"refs/heads/feature": "feature",
		"refs/tags/v1.0.0":   "",
		"":                   "",
	}
	for ref, want := range cases {
		if got := extractBranch(ref); got != want {
			t.Errorf("extractBranch(%q) = %q, want %q", ref, got, want)
		}
	}
}
