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
	"crypto/rand"
	"encoding/hex"

	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/storage"
)

// WebhookConfigService manages the per-application webhook secret that
// internal/webhookingress verifies incoming deliveries against.
type WebhookConfigService struct {
	store storage.Store
}

func NewWebhookConfigService(store storage.Store) *WebhookConfigService {
	return &WebhookConfigService{store: store}
}

// Enable generates a fresh random secret (if one wasn't supplied) and
// activates delivery verification for provider.
func (s *WebhookConfigService) Enable(appID string, provider models.WebhookProvider, secret string) (*models.Webhook, error) {
	if secret == "" {
		generated, err := randomSecret()
		if err != nil {
			return nil, ployererr.New(ployererr.Internal, "coreapi.WebhookConfigService.Enable", err)
		}
		secret = generated
	}

	wh := &models.Webhook{ApplicationID: appID, Provider: provider, Secret: secret, Enabled: true}
	if err := s.store.UpsertWebhook(wh); err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.WebhookConfigService.Enable", err)
	}
	return wh, nil
}

func (s *WebhookConfigService) Disable(appID string) error {
	return s.store.DeleteWebhook(appID)
}

func (s *WebhookConfigService) Get(appID string) (*models.Webhook, error) {
	wh, err := s.store.GetWebhook(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.WebhookConfigService.Get", err)
	}
	return wh, nil
}

func (s *WebhookConfigService) Deliveries(appID string, limit int) ([]models.WebhookDelivery, error) {
	deliveries, err := s.store.GetWebhookDeliveries(appID, limit)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.WebhookConfigService.Deliveries", err)
	}
	return deliveries, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
