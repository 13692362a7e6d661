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

package fleet

import (
	"sync"

	"github.com/nusendra/ployer/internal/models"
)

// fakeStore is a minimal in-memory storage.Store used only by this
// package's tests, covering the subset the fleet controller exercises.
type fakeStore struct {
	mu sync.Mutex

	apps    map[string]*models.Application
	domains map[string]map[string]*models.Domain
	deploys map[string]*models.Deployment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps:    make(map[string]*models.Application),
		domains: make(map[string]map[string]*models.Domain),
		deploys: make(map[string]*models.Deployment),
	}
}

func (f *fakeStore) CreateUser(u *models.User) error                   { return nil }
func (f *fakeStore) GetUser(id string) (*models.User, error)           { return nil, nil }
func (f *fakeStore) GetUserByEmail(email string) (*models.User, error) { return nil, nil }
func (f *fakeStore) CountUsers() (int, error)                          { return 0, nil }

func (f *fakeStore) CreateServer(s *models.Server) error                           { return nil }
func (f *fakeStore) UpdateServer(s *models.Server) error                           { return nil }
func (f *fakeStore) UpdateServerStatus(id string, status models.ServerStatus) error { return nil }
func (f *fakeStore) GetServer(id string) (*models.Server, error)                   { return nil, nil }
func (f *fakeStore) GetLocalServer() (*models.Server, error)                       { return nil, nil }
func (f *fakeStore) GetAllServers() ([]models.Server, error)                       { return nil, nil }
func (f *fakeStore) DeleteServer(id string) error                                  { return nil }

func (f *fakeStore) CreateApplication(a *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[a.ID] = a
	return nil
}

func (f *fakeStore) UpdateApplication(a *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[a.ID] = a
	return nil
}

func (f *fakeStore) UpdateApplicationStatus(id string, status models.AppStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.apps[id]; ok {
		a.Status = status
	}
	return nil
}

func (f *fakeStore) GetApplication(id string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps[id], nil
}

func (f *fakeStore) GetApplicationByName(name string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetAllApplications() ([]models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Application, 0, len(f.apps))
	for _, a := range f.apps {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) DeleteApplication(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.apps, id)
	return nil
}

func (f *fakeStore) UpsertEnvVar(e *models.EnvironmentVariable) error       { return nil }
func (f *fakeStore) DeleteEnvVar(appID, key string) error                  { return nil }
func (f *fakeStore) GetEnvVars(appID string) ([]models.EnvironmentVariable, error) {
	return nil, nil
}
func (f *fakeStore) DeleteEnvVarsByApp(appID string) error { return nil }

func (f *fakeStore) CreateDomain(d *models.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.domains[d.ApplicationID] == nil {
		f.domains[d.ApplicationID] = make(map[string]*models.Domain)
	}
	f.domains[d.ApplicationID][d.Hostname] = d
	return nil
}

func (f *fakeStore) SetPrimaryDomain(appID, hostname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, d := range f.domains[appID] {
		d.IsPrimary = h == hostname
	}
	return nil
}

func (f *fakeStore) SetDomainSSLActive(appID, hostname string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.domains[appID][hostname]; ok {
		d.SSLActive = active
	}
	return nil
}

func (f *fakeStore) GetDomain(hostname string) (*models.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, byApp := range f.domains {
		if d, ok := byApp[hostname]; ok {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetDomainsByApp(appID string) ([]models.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Domain, 0)
	for _, d := range f.domains[appID] {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeStore) GetPrimaryDomain(appID string) (*models.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.domains[appID] {
		if d.IsPrimary {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetAllDomains() ([]models.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Domain, 0)
	for _, byApp := range f.domains {
		for _, d := range byApp {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteDomain(appID, hostname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.domains[appID], hostname)
	return nil
}

func (f *fakeStore) DeleteDomainsByApp(appID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.domains, appID)
	return nil
}

func (f *fakeStore) UpsertDeployKey(k *models.DeployKey) error         { return nil }
func (f *fakeStore) GetDeployKey(appID string) (*models.DeployKey, error) { return nil, nil }
func (f *fakeStore) DeleteDeployKey(appID string) error                { return nil }

func (f *fakeStore) CreateDeployment(d *models.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploys[d.ID] = d
	return nil
}

func (f *fakeStore) UpdateDeployment(d *models.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploys[d.ID] = d
	return nil
}

func (f *fakeStore) AppendBuildLog(id, chunk string, maxBytes int) error { return nil }

func (f *fakeStore) GetDeployment(id string) (*models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deploys[id], nil
}

func (f *fakeStore) GetActiveDeployment(appID string) (*models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deploys {
		if d.ApplicationID == appID && d.Status.Active() {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetLatestRunningDeployment(appID string) (*models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deploys {
		if d.ApplicationID == appID && d.Status == models.DeployRunning {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetDeploymentsByApp(appID string, limit int) ([]models.Deployment, error) {
	return nil, nil
}

func (f *fakeStore) DeleteDeploymentsByApp(appID string) error { return nil }

func (f *fakeStore) UpsertHealthCheck(h *models.HealthCheck) error         { return nil }
func (f *fakeStore) GetHealthCheck(appID string) (*models.HealthCheck, error) { return nil, nil }
func (f *fakeStore) GetAllHealthChecks() ([]models.HealthCheck, error)     { return nil, nil }
func (f *fakeStore) DeleteHealthCheck(appID string) error                  { return nil }
func (f *fakeStore) RecordHealthCheckResult(r *models.HealthCheckResult) error { return nil }

func (f *fakeStore) GetRecentHealthCheckResults(appID string, limit int) ([]models.HealthCheckResult, error) {
	return nil, nil
}

func (f *fakeStore) GetLatestHealthCheckStatus(appID string) (models.HealthStatus, error) {
	return models.HealthUnknown, nil
}

func (f *fakeStore) RecordContainerStats(s *models.ContainerStats) error { return nil }

func (f *fakeStore) GetContainerStats(appID string, since int) ([]models.ContainerStats, error) {
	return nil, nil
}

func (f *fakeStore) DeleteStatsOlderThan(hours int) (int64, error) { return 0, nil }

func (f *fakeStore) UpsertWebhook(w *models.Webhook) error                { return nil }
func (f *fakeStore) GetWebhook(appID string) (*models.Webhook, error)     { return nil, nil }
func (f *fakeStore) DeleteWebhook(appID string) error                     { return nil }
func (f *fakeStore) RecordWebhookDelivery(d *models.WebhookDelivery) error { return nil }

func (f *fakeStore) GetWebhookDeliveries(appID string, limit int) ([]models.WebhookDelivery, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }
