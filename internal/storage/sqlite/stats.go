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

func (s *Store) RecordContainerStats(cs *models.ContainerStats) error {
	_, err := s.db.Exec(`
		INSERT INTO container_stats (container_id, application_id, cpu_percent, memory_mb,
			memory_limit_mb, network_rx_mb, network_tx_mb)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, cs.ContainerID, cs.ApplicationID, cs.CPUPercent, cs.MemoryMB, cs.MemoryLimitMB,
		cs.NetworkRxMB, cs.NetworkTxMB)
	return err
}

func (s *Store) GetContainerStats(appID string, hours int) ([]models.ContainerStats, error) {
	rows, err := s.db.Query(`
		SELECT id, container_id, application_id, cpu_percent, memory_mb, memory_limit_mb,
		       network_rx_mb, network_tx_mb, recorded_at
		FROM container_stats
		WHERE application_id = ? AND recorded_at >= datetime('now', printf('-%d hours', ?))
		ORDER BY recorded_at
	`, appID, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ContainerStats
	for rows.Next() {
		var cs models.ContainerStats
		if err := rows.Scan(&cs.ID, &cs.ContainerID, &cs.ApplicationID, &cs.CPUPercent, &cs.MemoryMB,
			&cs.MemoryLimitMB, &cs.NetworkRxMB, &cs.NetworkTxMB, &cs.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// DeleteStatsOlderThan enforces the 24-hour retention policy from spec §4.7
// / §8 invariant 10: rows older than the window are gone within one sweep
// interval of their expiry.
func (s *Store) DeleteStatsOlderThan(hours int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM container_stats WHERE recorded_at < datetime('now', printf('-%d hours', ?))
	`, hours)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
