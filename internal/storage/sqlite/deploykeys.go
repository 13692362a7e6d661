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

// UpsertDeployKey replaces any existing key for the application atomically
// in a single statement, matching spec §3's "regenerated atomically (old
// replaced in one transaction)".
func (s *Store) UpsertDeployKey(k *models.DeployKey) error {
	_, err := s.db.Exec(`
		INSERT INTO deploy_keys (application_id, public_key, encrypted_private_key)
		VALUES (?, ?, ?)
		ON CONFLICT(application_id) DO UPDATE SET
			public_key = excluded.public_key,
			encrypted_private_key = excluded.encrypted_private_key,
			created_at = CURRENT_TIMESTAMP
	`, k.ApplicationID, k.PublicKey, k.EncryptedPrivateKey)
	return err
}

func (s *Store) GetDeployKey(appID string) (*models.DeployKey, error) {
	k := &models.DeployKey{}
	err := s.db.QueryRow(`
		SELECT application_id, public_key, encrypted_private_key, created_at
		FROM deploy_keys WHERE application_id = ?
	`, appID).Scan(&k.ApplicationID, &k.PublicKey, &k.EncryptedPrivateKey, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Store) DeleteDeployKey(appID string) error {
	_, err := s.db.Exec(`DELETE FROM deploy_keys WHERE application_id = ?`, appID)
	return err
}
