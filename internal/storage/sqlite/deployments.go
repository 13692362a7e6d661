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

const deploymentSelect = `
	SELECT id, application_id, server_id, trigger_type, commit_sha, commit_message, status,
	       build_log, container_id, image_tag, host_port, started_at, finished_at
	FROM deployments`

func (s *Store) CreateDeployment(d *models.Deployment) error {
	_, err := s.db.Exec(`
		INSERT INTO deployments (id, application_id, server_id, trigger_type, commit_sha,
			commit_message, status, build_log, container_id, image_tag, host_port)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.ApplicationID, d.ServerID, d.Trigger, d.CommitSHA, d.CommitMessage, d.Status,
		d.BuildLog, d.ContainerID, d.ImageTag, d.HostPort)
	return err
}

func (s *Store) UpdateDeployment(d *models.Deployment) error {
	_, err := s.db.Exec(`
		UPDATE deployments SET commit_sha = ?, commit_message = ?, status = ?, container_id = ?,
			image_tag = ?, host_port = ?, finished_at = ?
		WHERE id = ?
	`, d.CommitSHA, d.CommitMessage, d.Status, d.ContainerID, d.ImageTag, d.HostPort, d.FinishedAt, d.ID)
	return err
}

// AppendBuildLog appends chunk to the deployment's build_log and enforces
// the bounded-log discipline from spec §4.1: once the log exceeds maxBytes,
// the oldest lines are dropped (a line cut by the bound goes with them) and
// a redaction marker is put at the head, so the log stays within maxBytes
// and new lines are still appended
// (invariant 5: prefix-preserving except for bounded truncation).
func (s *Store) AppendBuildLog(id, chunk string, maxBytes int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRow(`SELECT build_log FROM deployments WHERE id = ?`, id).Scan(&current); err != nil {
		return err
	}

	updated := current + chunk
	if maxBytes > 0 && len(updated) > maxBytes {
		const marker = "...[truncated]...\n"
		keep := maxBytes - len(marker)
		if keep < 0 {
			keep = 0
		}
		cut := len(updated) - keep
		// Move the cut forward to a line start so no partial line is kept.
		for cut < len(updated) && updated[cut-1] != '\n' {
			cut++
		}
		updated = marker + updated[cut:]
	}

	if _, err := tx.Exec(`UPDATE deployments SET build_log = ? WHERE id = ?`, updated, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetDeployment(id string) (*models.Deployment, error) {
	return scanOptionalDeployment(s.db.QueryRow(deploymentSelect+` WHERE id = ?`, id))
}

// GetActiveDeployment returns the application's non-terminal deployment, if
// any. Spec invariant 1 guarantees at most one such row exists per app.
func (s *Store) GetActiveDeployment(appID string) (*models.Deployment, error) {
	return scanOptionalDeployment(s.db.QueryRow(deploymentSelect+`
		WHERE application_id = ? AND status NOT IN ('running', 'failed', 'cancelled')
		ORDER BY started_at DESC LIMIT 1
	`, appID))
}

func (s *Store) GetLatestRunningDeployment(appID string) (*models.Deployment, error) {
	return scanOptionalDeployment(s.db.QueryRow(deploymentSelect+`
		WHERE application_id = ? AND status = 'running'
		ORDER BY started_at DESC LIMIT 1
	`, appID))
}

func (s *Store) GetDeploymentsByApp(appID string, limit int) ([]models.Deployment, error) {
	rows, err := s.db.Query(deploymentSelect+`
		WHERE application_id = ? ORDER BY started_at DESC LIMIT ?
	`, appID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Deployment
	for rows.Next() {
		d, err := scanDeploymentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDeploymentsByApp(appID string) error {
	_, err := s.db.Exec(`DELETE FROM deployments WHERE application_id = ?`, appID)
	return err
}

func scanOptionalDeployment(row *sql.Row) (*models.Deployment, error) {
	d, err := scanDeploymentRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func scanDeploymentRow(row scannable) (*models.Deployment, error) {
	d := &models.Deployment{}
	var finishedAt sql.NullTime
	err := row.Scan(&d.ID, &d.ApplicationID, &d.ServerID, &d.Trigger, &d.CommitSHA, &d.CommitMessage,
		&d.Status, &d.BuildLog, &d.ContainerID, &d.ImageTag, &d.HostPort, &d.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		d.FinishedAt = &finishedAt.Time
	}
	return d, nil
}
