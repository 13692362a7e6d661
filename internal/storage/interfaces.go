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

// Package storage defines the Persistent Store Facade (component A): the
// storage-agnostic contract every other component uses. internal/storage/sqlite
// is its only implementation, backed by an embedded, write-ahead-logged
// sqlite database.
package storage

import "github.com/nusendra/ployer/internal/models"

type Store interface {
	// Users
	CreateUser(u *models.User) error
	GetUser(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	CountUsers() (int, error)

	// Servers
	CreateServer(s *models.Server) error
	UpdateServer(s *models.Server) error
	UpdateServerStatus(id string, status models.ServerStatus) error
	GetServer(id string) (*models.Server, error)
	GetLocalServer() (*models.Server, error)
	GetAllServers() ([]models.Server, error)
	DeleteServer(id string) error

	// Applications
	CreateApplication(a *models.Application) error
	UpdateApplication(a *models.Application) error
	UpdateApplicationStatus(id string, status models.AppStatus) error
	GetApplication(id string) (*models.Application, error)
	GetApplicationByName(name string) (*models.Application, error)
	GetAllApplications() ([]models.Application, error)
	DeleteApplication(id string) error

	// Environment variables
	UpsertEnvVar(e *models.EnvironmentVariable) error
	DeleteEnvVar(appID, key string) error
	GetEnvVars(appID string) ([]models.EnvironmentVariable, error)
	DeleteEnvVarsByApp(appID string) error

	// Domains
	CreateDomain(d *models.Domain) error
	SetPrimaryDomain(appID, hostname string) error
	SetDomainSSLActive(appID, hostname string, active bool) error
	GetDomain(hostname string) (*models.Domain, error)
	GetDomainsByApp(appID string) ([]models.Domain, error)
	GetPrimaryDomain(appID string) (*models.Domain, error)
	GetAllDomains() ([]models.Domain, error)
	DeleteDomain(appID, hostname string) error
	DeleteDomainsByApp(appID string) error

	// Deploy keys
	UpsertDeployKey(k *models.DeployKey) error
	GetDeployKey(appID string) (*models.DeployKey, error)
	DeleteDeployKey(appID string) error

	// Deployments
	CreateDeployment(d *models.Deployment) error
	UpdateDeployment(d *models.Deployment) error
	AppendBuildLog(id, chunk string, maxBytes int) error
	GetDeployment(id string) (*models.Deployment, error)
	GetActiveDeployment(appID string) (*models.Deployment, error)
	GetLatestRunningDeployment(appID string) (*models.Deployment, error)
	GetDeploymentsByApp(appID string, limit int) ([]models.Deployment, error)
	DeleteDeploymentsByApp(appID string) error

	// Health checks & results
	UpsertHealthCheck(h *models.HealthCheck) error
	GetHealthCheck(appID string) (*models.HealthCheck, error)
	GetAllHealthChecks() ([]models.HealthCheck, error)
	DeleteHealthCheck(appID string) error
	RecordHealthCheckResult(r *models.HealthCheckResult) error
	GetRecentHealthCheckResults(appID string, limit int) ([]models.HealthCheckResult, error)
	GetLatestHealthCheckStatus(appID string) (models.HealthStatus, error)

	// Container stats
	RecordContainerStats(s *models.ContainerStats) error
	GetContainerStats(appID string, since int) ([]models.ContainerStats, error)
	DeleteStatsOlderThan(hours int) (int64, error)

	// Webhooks
	UpsertWebhook(w *models.Webhook) error
	GetWebhook(appID string) (*models.Webhook, error)
	DeleteWebhook(appID string) error
	RecordWebhookDelivery(d *models.WebhookDelivery) error
	GetWebhookDeliveries(appID string, limit int) ([]models.WebhookDelivery, error)

	Close() error
}
