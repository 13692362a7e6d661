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

import "github.com/nusendra/ployer/internal/models"

func (s *Store) UpsertEnvVar(e *models.EnvironmentVariable) error {
	_, err := s.db.Exec(`
		INSERT INTO environment_variables (application_id, key, encrypted_value)
		VALUES (?, ?, ?)
		ON CONFLICT(application_id, key) DO UPDATE SET
			encrypted_value = excluded.encrypted_value, updated_at = CURRENT_TIMESTAMP
	`, e.ApplicationID, e.Key, e.EncryptedValue)
	return err
}

func (s *Store) DeleteEnvVar(appID, key string) error {
	_, err := s.db.Exec(`
		DELETE FROM environment_variables WHERE application_id = ? AND key = ?
	`, appID, key)
	return err
}

func (s *Store) GetEnvVars(appID string) ([]models.EnvironmentVariable, error) {
	rows, err := s.db.Query(`
		SELECT application_id, key, encrypted_value, updated_at
		FROM environment_variables WHERE application_id = ? ORDER BY key
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EnvironmentVariable
	for rows.Next() {
		var e models.EnvironmentVariable
		if err := rows.Scan(&e.ApplicationID, &e.Key, &e.EncryptedValue, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DeleteEnvVarsByApp(appID string) error {
	_, err := s.db.Exec(`DELETE FROM environment_variables WHERE application_id = ?`, appID)
	return err
}
