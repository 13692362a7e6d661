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

func (s *Store) UpsertHealthCheck(h *models.HealthCheck) error {
	_, err := s.db.Exec(`
		INSERT INTO health_checks (application_id, path, interval_seconds, timeout_seconds,
			healthy_threshold, unhealthy_threshold)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(application_id) DO UPDATE SET
			path = excluded.path, interval_seconds = excluded.interval_seconds,
			timeout_seconds = excluded.timeout_seconds, healthy_threshold = excluded.healthy_threshold,
			unhealthy_threshold = excluded.unhealthy_threshold
	`, h.ApplicationID, h.Path, h.IntervalSeconds, h.TimeoutSeconds, h.HealthyThreshold, h.UnhealthyThreshold)
	return err
}

func (s *Store) GetHealthCheck(appID string) (*models.HealthCheck, error) {
	h, err := scanHealthCheckRow(s.db.QueryRow(healthCheckSelect+` WHERE application_id = ?`, appID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return h, err
}

func (s *Store) GetAllHealthChecks() ([]models.HealthCheck, error) {
	rows, err := s.db.Query(healthCheckSelect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HealthCheck
	for rows.Next() {
		h, err := scanHealthCheckRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *Store) DeleteHealthCheck(appID string) error {
	_, err := s.db.Exec(`DELETE FROM health_checks WHERE application_id = ?`, appID)
	return err
}

func (s *Store) RecordHealthCheckResult(r *models.HealthCheckResult) error {
	_, err := s.db.Exec(`
		INSERT INTO health_check_results (application_id, container_id, status, response_time_ms,
			status_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ApplicationID, r.ContainerID, r.Status, r.ResponseTimeMs, r.StatusCode, r.ErrorMessage)
	return err
}

func (s *Store) GetRecentHealthCheckResults(appID string, limit int) ([]models.HealthCheckResult, error) {
	rows, err := s.db.Query(`
		SELECT id, application_id, container_id, status, response_time_ms, status_code,
		       error_message, checked_at
		FROM health_check_results WHERE application_id = ? ORDER BY checked_at DESC LIMIT ?
	`, appID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HealthCheckResult
	for rows.Next() {
		var r models.HealthCheckResult
		if err := rows.Scan(&r.ID, &r.ApplicationID, &r.ContainerID, &r.Status, &r.ResponseTimeMs,
			&r.StatusCode, &r.ErrorMessage, &r.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetLatestHealthCheckStatus(appID string) (models.HealthStatus, error) {
	var status models.HealthStatus
	err := s.db.QueryRow(`
		SELECT status FROM health_check_results WHERE application_id = ?
		ORDER BY checked_at DESC LIMIT 1
	`, appID).Scan(&status)
	if err == sql.ErrNoRows {
		return models.HealthUnknown, nil
	}
	return status, err
}

const healthCheckSelect = `
	SELECT application_id, path, interval_seconds, timeout_seconds, healthy_threshold, unhealthy_threshold
	FROM health_checks`

func scanHealthCheckRow(row scannable) (*models.HealthCheck, error) {
	h := &models.HealthCheck{}
	err := row.Scan(&h.ApplicationID, &h.Path, &h.IntervalSeconds, &h.TimeoutSeconds,
		&h.HealthyThreshold, &h.UnhealthyThreshold)
	if err != nil {
		return nil, err
	}
	return h, nil
}
