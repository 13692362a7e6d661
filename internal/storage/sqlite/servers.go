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

func (s *Store) CreateServer(sv *models.Server) error {
	_, err := s.db.Exec(`
		INSERT INTO servers (id, name, host, port, username, encrypted_private_key, is_local, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sv.ID, sv.Name, sv.Host, sv.Port, sv.Username, sv.EncryptedPrivateKey, sv.IsLocal, sv.Status)
	return err
}

func (s *Store) UpdateServer(sv *models.Server) error {
	_, err := s.db.Exec(`
		UPDATE servers SET name = ?, host = ?, port = ?, username = ?, encrypted_private_key = ?
		WHERE id = ?
	`, sv.Name, sv.Host, sv.Port, sv.Username, sv.EncryptedPrivateKey, sv.ID)
	return err
}

func (s *Store) UpdateServerStatus(id string, status models.ServerStatus) error {
	_, err := s.db.Exec(`
		UPDATE servers SET status = ?, last_seen_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	return err
}

func (s *Store) GetServer(id string) (*models.Server, error) {
	return s.scanServer(s.db.QueryRow(serverSelect+` WHERE id = ?`, id))
}

func (s *Store) GetLocalServer() (*models.Server, error) {
	return s.scanServer(s.db.QueryRow(serverSelect + ` WHERE is_local = 1 LIMIT 1`))
}

func (s *Store) GetAllServers() ([]models.Server, error) {
	rows, err := s.db.Query(serverSelect + ` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Server
	for rows.Next() {
		sv, err := scanServerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sv)
	}
	return out, rows.Err()
}

func (s *Store) DeleteServer(id string) error {
	_, err := s.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	return err
}

const serverSelect = `
	SELECT id, name, host, port, username, encrypted_private_key, is_local, status, last_seen_at, created_at
	FROM servers`

type scannable interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanServer(row *sql.Row) (*models.Server, error) {
	sv, err := scanServerRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sv, err
}

func scanServerRow(row scannable) (*models.Server, error) {
	sv := &models.Server{}
	var lastSeen sql.NullTime
	err := row.Scan(&sv.ID, &sv.Name, &sv.Host, &sv.Port, &sv.Username, &sv.EncryptedPrivateKey,
		&sv.IsLocal, &sv.Status, &lastSeen, &sv.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		sv.LastSeenAt = &lastSeen.Time
	}
	return sv, nil
}
