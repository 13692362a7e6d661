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

package sqlite

import (
	"database/sql"

	"github.com/nusendra/ployer/internal/models"
)

func (s *Store) UpsertWebhook(w *models.Webhook) error {
	_, err := s.db.Exec(`
		INSERT INTO webhooks (application_id, provider, secret, enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(application_id) DO UPDATE SET
			provider = excluded.provider, secret = excluded.secret, enabled = excluded.enabled
	`, w.ApplicationID, w.Provider, w.Secret, w.Enabled)
	return err
}

func (s *Store) GetWebhook(appID string) (*models.Webhook, error) {
	w := &models.Webhook{}
	err := s.db.QueryRow(`
		SELECT application_id, provider, secret, enabled, created_at
		FROM webhooks WHERE application_id = ?
	`, appID).Scan(&w.ApplicationID, &w.Provider, &w.Secret, &w.Enabled, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) DeleteWebhook(appID string) error {
	_, err := s.db.Exec(`DELETE FROM webhooks WHERE application_id = ?`, appID)
	return err
}

func (s *Store) RecordWebhookDelivery(d *models.WebhookDelivery) error {
	res, err := s.db.Exec(`
		INSERT INTO webhook_deliveries (application_id, provider, event_type, branch, commit_sha,
			commit_message, author, status, deployment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ApplicationID, d.Provider, d.EventType, d.Branch, d.CommitSHA, d.CommitMessage, d.Author,
		d.Status, d.DeploymentID)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	d.ID = id
	return nil
}

func (s *Store) GetWebhookDeliveries(appID string, limit int) ([]models.WebhookDelivery, error) {
	rows, err := s.db.Query(`
		SELECT id, application_id, provider, event_type, branch, commit_sha, commit_message,
		       author, status, deployment_id, delivered_at
		FROM webhook_deliveries WHERE application_id = ? ORDER BY delivered_at DESC LIMIT ?
	`, appID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WebhookDelivery
	for rows.Next() {
		var d models.WebhookDelivery
		if err := rows.Scan(&d.ID, &d.ApplicationID, &d.Provider, &d.EventType, &d.Branch,
			&d.CommitSHA, &d.CommitMessage, &d.Author, &d.Status, &d.DeploymentID, &d.DeliveredAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
