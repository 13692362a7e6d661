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
	"github.com/nusendra/ployer/internal/orchestrator"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/storage"
)

// DeploymentService exposes read access to deployment history plus
// cancellation, both backed directly by the orchestrator/store.
type DeploymentService struct {
	store storage.Store
	orch  *orchestrator.Orchestrator
}

func NewDeploymentService(store storage.Store, orch *orchestrator.Orchestrator) *DeploymentService {
	return &DeploymentService{store: store, orch: orch}
}

func (s *DeploymentService) Get(id string) (*models.Deployment, error) {
	dep, err := s.store.GetDeployment(id)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.DeploymentService.Get", err)
	}
	if dep == nil {
		return nil, ployererr.NotFoundf("coreapi.DeploymentService.Get", "deployment %s not found", id)
	}
	return dep, nil
}

func (s *DeploymentService) ListByApplication(appID string, limit int) ([]models.Deployment, error) {
	deps, err := s.store.GetDeploymentsByApp(appID, limit)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.DeploymentService.ListByApplication", err)
	}
	return deps, nil
}

// BuildLog returns the bounded, append-only build log for a deployment.
func (s *DeploymentService) BuildLog(id string) (string, error) {
	dep, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return dep.BuildLog, nil
}

func (s *DeploymentService) Cancel(id string) error {
	return s.orch.Cancel(id)
}
