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
	"context"

	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/proxyadapter"
	"github.com/nusendra/ployer/internal/storage"
)

// DomainService manages custom hostnames for an application and keeps the
// reverse proxy's route table in sync with them.
type DomainService struct {
	store storage.Store
	proxy *proxyadapter.Adapter
}

func NewDomainService(store storage.Store, proxy *proxyadapter.Adapter) *DomainService {
	return &DomainService{store: store, proxy: proxy}
}

func (s *DomainService) Add(appID, hostname string, isPrimary bool) (*models.Domain, error) {
	if existing, err := s.store.GetDomain(hostname); err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.DomainService.Add", err)
	} else if existing != nil {
		return nil, ployererr.Conflictf("coreapi.DomainService.Add", "hostname %q is already routed", hostname)
	}

	d := &models.Domain{ApplicationID: appID, Hostname: hostname, IsPrimary: isPrimary}
	if err := s.store.CreateDomain(d); err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.DomainService.Add", err)
	}

	if isPrimary {
		if err := s.store.SetPrimaryDomain(appID, hostname); err != nil {
			return nil, ployererr.New(ployererr.Internal, "coreapi.DomainService.Add", err)
		}
	}

	return d, s.syncRoute(appID)
}

func (s *DomainService) Remove(appID, hostname string) error {
	if err := s.store.DeleteDomain(appID, hostname); err != nil {
		return ployererr.New(ployererr.Internal, "coreapi.DomainService.Remove", err)
	}
	if err := s.proxy.RemoveRoute(context.Background(), hostname); err != nil {
		return ployererr.Upstreamf("coreapi.DomainService.Remove", err)
	}
	return nil
}

func (s *DomainService) SetPrimary(appID, hostname string) error {
	if err := s.store.SetPrimaryDomain(appID, hostname); err != nil {
		return ployererr.New(ployererr.Internal, "coreapi.DomainService.SetPrimary", err)
	}
	return s.syncRoute(appID)
}

func (s *DomainService) List(appID string) ([]models.Domain, error) {
	domains, err := s.store.GetDomainsByApp(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.DomainService.List", err)
	}
	return domains, nil
}

func (s *DomainService) CertStatus(hostname string) (proxyadapter.CertStatus, error) {
	status, err := s.proxy.CertStatus(context.Background(), hostname)
	if err != nil {
		return "", ployererr.Upstreamf("coreapi.DomainService.CertStatus", err)
	}
	return status, nil
}

// Verify polls F for hostname's certificate status and persists the result
// onto the Domain row (spec §6.1 "recomputes ssl_active by polling F").
func (s *DomainService) Verify(appID, hostname string) (proxyadapter.CertStatus, error) {
	status, err := s.CertStatus(hostname)
	if err != nil {
		return "", err
	}
	if err := s.store.SetDomainSSLActive(appID, hostname, status == proxyadapter.CertActive); err != nil {
		return "", ployererr.New(ployererr.Internal, "coreapi.DomainService.Verify", err)
	}
	return status, nil
}

// syncRoute pushes a fresh route for the application's active deployment.
// A failure here is not fatal: the Reconciler's periodic pass converges it.
func (s *DomainService) syncRoute(appID string) error {
	dep, err := s.store.GetLatestRunningDeployment(appID)
	if err != nil || dep == nil || dep.HostPort == 0 {
		return nil
	}
	domain, err := s.store.GetPrimaryDomain(appID)
	if err != nil || domain == nil {
		return nil
	}
	return s.proxy.SetRoute(context.Background(), domain.Hostname, "127.0.0.1", dep.HostPort)
}
