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
	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/storage"
)

// HealthCheckService manages per-application probe configuration and
// exposes recent probe history.
type HealthCheckService struct {
	store storage.Store
}

func NewHealthCheckService(store storage.Store) *HealthCheckService {
	return &HealthCheckService{store: store}
}

func (s *HealthCheckService) Configure(hc models.HealthCheck) error {
	if hc.Path == "" {
		hc.Path = "/"
	}
	if hc.TimeoutSeconds <= 0 {
		hc.TimeoutSeconds = 5
	}
	if hc.HealthyThreshold <= 0 {
		hc.HealthyThreshold = 2
	}
	if hc.UnhealthyThreshold <= 0 {
		hc.UnhealthyThreshold = 2
	}
	if err := s.store.UpsertHealthCheck(&hc); err != nil {
		return ployererr.New(ployererr.Internal, "coreapi.HealthCheckService.Configure", err)
	}
	return nil
}

func (s *HealthCheckService) Get(appID string) (*models.HealthCheck, error) {
	hc, err := s.store.GetHealthCheck(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.HealthCheckService.Get", err)
	}
	if hc == nil {
		defaulted := models.DefaultHealthCheck(appID)
		return &defaulted, nil
	}
	return hc, nil
}

func (s *HealthCheckService) RecentResults(appID string, limit int) ([]models.HealthCheckResult, error) {
	results, err := s.store.GetRecentHealthCheckResults(appID, limit)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.HealthCheckService.RecentResults", err)
	}
	return results, nil
}

func (s *HealthCheckService) CurrentStatus(appID string) (models.HealthStatus, error) {
	status, err := s.store.GetLatestHealthCheckStatus(appID)
	if err != nil {
		return models.HealthUnknown, ployererr.New(ployererr.Internal, "coreapi.HealthCheckService.CurrentStatus", err)
	}
	return status, nil
}

// StatsService exposes recorded container resource usage.
type StatsService struct {
	store storage.Store
}

func NewStatsService(store storage.Store) *StatsService {
	return &StatsService{store: store}
}

func (s *StatsService) Recent(appID string, sinceHours int) ([]models.ContainerStats, error) {
	stats, err := s.store.GetContainerStats(appID, sinceHours)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.StatsService.Recent", err)
	}
	return stats, nil
}
