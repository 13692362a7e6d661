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

package coreapi

import (
	"testing"

	"github.com/nusendra/ployer/internal/models"
)

func TestWebhookEnableGeneratesSecretWhenNoneGiven(t *testing.T) {
	store := newFakeStore()
	svc := NewWebhookConfigService(store)

	wh, err := svc.Enable("app1", models.ProviderGitHub, "")
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if wh.Secret == "" {
		t.Fatal("expected a generated secret")
	}
	if !wh.Enabled {
		t.Fatal("expected webhook to be enabled")
	}
}

func TestWebhookEnableKeepsGivenSecret(t *testing.T) {
	store := newFakeStore()
	svc := NewWebhookConfigService(store)

	wh, err := svc.Enable("app1", models.ProviderGitLab, "my-secret")
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if wh.Secret != "my-secret" {
		t.Fatalf("expected the given secret to be kept, got %q", wh.Secret)
	}
}

func TestWebhookDisableRemovesConfig(t *testing.T) {
	store := newFakeStore()
	svc := NewWebhookConfigService(store)

	if _, err := svc.Enable("app1", models.ProviderGitHub, "s"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := svc.Disable("app1"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	wh, err := svc.Get("app1")
	if err != nil || wh != nil {
		t.Fatalf("expected no webhook after disable, got %+v, err %v", wh, err)
	}
}
