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

func (s *Store) CreateDomain(d *models.Domain) error {
	_, err := s.db.Exec(`
		INSERT INTO domains (application_id, hostname, is_primary, ssl_active)
		VALUES (?, ?, ?, ?)
	`, d.ApplicationID, d.Hostname, d.IsPrimary, d.SSLActive)
	return err
}

// SetPrimaryDomain atomically clears any existing primary for appID and
// marks hostname as the new one, preserving the "at most one is_primary per
// app" invariant (spec §3, invariant 3) even under concurrent callers.
func (s *Store) SetPrimaryDomain(appID, hostname string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE domains SET is_primary = 0 WHERE application_id = ?`, appID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE domains SET is_primary = 1 WHERE application_id = ? AND hostname = ?
	`, appID, hostname); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SetDomainSSLActive(appID, hostname string, active bool) error {
	_, err := s.db.Exec(`
		UPDATE domains SET ssl_active = ? WHERE application_id = ? AND hostname = ?
	`, active, appID, hostname)
	return err
}

func (s *Store) GetDomain(hostname string) (*models.Domain, error) {
	d, err := scanDomainRow(s.db.QueryRow(domainSelect+` WHERE hostname = ?`, hostname))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *Store) GetDomainsByApp(appID string) ([]models.Domain, error) {
	return queryDomains(s.db.Query(domainSelect+` WHERE application_id = ? ORDER BY hostname`, appID))
}

func (s *Store) GetPrimaryDomain(appID string) (*models.Domain, error) {
	d, err := scanDomainRow(s.db.QueryRow(domainSelect+` WHERE application_id = ? AND is_primary = 1`, appID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *Store) GetAllDomains() ([]models.Domain, error) {
	return queryDomains(s.db.Query(domainSelect))
}

func (s *Store) DeleteDomain(appID, hostname string) error {
	_, err := s.db.Exec(`
		DELETE FROM domains WHERE application_id = ? AND hostname = ?
	`, appID, hostname)
	return err
}

func (s *Store) DeleteDomainsByApp(appID string) error {
	_, err := s.db.Exec(`DELETE FROM domains WHERE application_id = ?`, appID)
	return err
}

const domainSelect = `
	SELECT application_id, hostname, is_primary, ssl_active, created_at FROM domains`

func scanDomainRow(row scannable) (*models.Domain, error) {
	d := &models.Domain{}
	err := row.Scan(&d.ApplicationID, &d.Hostname, &d.IsPrimary, &d.SSLActive, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func queryDomains(rows *sql.Rows, err error) ([]models.Domain, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Domain
	for rows.Next() {
		d, err := scanDomainRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
