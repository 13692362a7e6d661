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

const appSelect = `
	SELECT id, name, server_id, git_url, branch, build_strategy, dockerfile_path, port,
	       auto_deploy, status, created_at, updated_at
	FROM applications`

func (s *Store) CreateApplication(a *models.Application) error {
	_, err := s.db.Exec(`
		INSERT INTO applications (id, name, server_id, git_url, branch, build_strategy,
			dockerfile_path, port, auto_deploy, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.ServerID, a.GitURL, a.Branch, a.BuildStrategy, a.DockerfilePath,
		a.Port, a.AutoDeploy, a.Status)
	return err
}

func (s *Store) UpdateApplication(a *models.Application) error {
	_, err := s.db.Exec(`
		UPDATE applications SET name = ?, git_url = ?, branch = ?, build_strategy = ?,
			dockerfile_path = ?, port = ?, auto_deploy = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, a.Name, a.GitURL, a.Branch, a.BuildStrategy, a.DockerfilePath, a.Port, a.AutoDeploy, a.ID)
	return err
}

func (s *Store) UpdateApplicationStatus(id string, status models.AppStatus) error {
	_, err := s.db.Exec(`
		UPDATE applications SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	return err
}

func (s *Store) GetApplication(id string) (*models.Application, error) {
	return scanOptionalApp(s.db.QueryRow(appSelect+` WHERE id = ?`, id))
}

func (s *Store) GetApplicationByName(name string) (*models.Application, error) {
	return scanOptionalApp(s.db.QueryRow(appSelect+` WHERE name = ?`, name))
}

func (s *Store) GetAllApplications() ([]models.Application, error) {
	rows, err := s.db.Query(appSelect + ` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		a, err := scanAppRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteApplication removes the application row; ON DELETE CASCADE on the
// foreign keys in schema.go takes care of EnvironmentVariable, Domain,
// Deployment, DeployKey, HealthCheck, Webhook and WebhookDelivery rows,
// matching the cascading-delete lifecycle spec §3 describes for Application.
func (s *Store) DeleteApplication(id string) error {
	_, err := s.db.Exec(`DELETE FROM applications WHERE id = ?`, id)
	return err
}

func scanOptionalApp(row *sql.Row) (*models.Application, error) {
	a, err := scanAppRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func scanAppRow(row scannable) (*models.Application, error) {
	a := &models.Application{}
	err := row.Scan(&a.ID, &a.Name, &a.ServerID, &a.GitURL, &a.Branch, &a.BuildStrategy,
		&a.DockerfilePath, &a.Port, &a.AutoDeploy, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
