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

package models

import "time"

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

type ServerStatus string

const (
	ServerOnline  ServerStatus = "online"
	ServerOffline ServerStatus = "offline"
	ServerUnknown ServerStatus = "unknown"
)

type BuildStrategy string

const (
	BuildDockerfile     BuildStrategy = "dockerfile"
	BuildNixpacks       BuildStrategy = "nixpacks"
	BuildDockerCompose  BuildStrategy = "docker_compose"
)

type AppStatus string

const (
	AppPending   AppStatus = "pending"
	AppDeploying AppStatus = "deploying"
	AppRunning   AppStatus = "running"
	AppStopped   AppStatus = "stopped"
	AppFailed    AppStatus = "failed"
)

// DeployStatus is the Deployment pipeline state, per the state machine
// queued -> cloning -> building -> deploying -> running, with failed and
// cancelled as the other two terminal states.
type DeployStatus string

const (
	DeployQueued    DeployStatus = "queued"
	DeployCloning   DeployStatus = "cloning"
	DeployBuilding  DeployStatus = "building"
	DeployDeploying DeployStatus = "deploying"
	DeployRunning   DeployStatus = "running"
	DeployFailed    DeployStatus = "failed"
	DeployCancelled DeployStatus = "cancelled"
)

// Terminal reports whether a Deployment in this status can no longer change.
func (s DeployStatus) Terminal() bool {
	switch s {
	case DeployRunning, DeployFailed, DeployCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether a Deployment in this status counts against the
// at-most-one-active-deployment-per-application invariant.
func (s DeployStatus) Active() bool {
	return !s.Terminal()
}

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

type WebhookProvider string

const (
	ProviderGitHub WebhookProvider = "github"
	ProviderGitLab WebhookProvider = "gitlab"
)

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Server is a deployment target. Exactly one Server with IsLocal=true exists
// per installation, auto-registered on first boot.
type Server struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Host                 string       `json:"host"`
	Port                 int          `json:"port"`
	Username             string       `json:"username"`
	EncryptedPrivateKey  string       `json:"-"`
	IsLocal              bool         `json:"is_local"`
	Status               ServerStatus `json:"status"`
	LastSeenAt           *time.Time   `json:"last_seen_at,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// Application is the unit the Deployment Orchestrator deploys.
type Application struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ServerID       string        `json:"server_id"`
	GitURL         string        `json:"git_url,omitempty"`
	Branch         string        `json:"branch,omitempty"`
	BuildStrategy  BuildStrategy `json:"build_strategy"`
	DockerfilePath string        `json:"dockerfile_path,omitempty"`
	Port           int           `json:"port,omitempty"`
	AutoDeploy     bool          `json:"auto_deploy"`
	Status         AppStatus     `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// EnvironmentVariable holds a per-application (key -> encrypted value) pair.
// Value carries ciphertext at rest (see internal/secretbox) and is decrypted
// only for the duration of a single container creation.
type EnvironmentVariable struct {
	ApplicationID   string    `json:"application_id"`
	Key             string    `json:"key"`
	EncryptedValue  string    `json:"-"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Domain struct {
	ApplicationID string    `json:"application_id"`
	Hostname      string    `json:"hostname"`
	IsPrimary     bool      `json:"is_primary"`
	SSLActive     bool      `json:"ssl_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// DeployKey is the per-application SSH key pair used only for git read
// access. Exactly one exists per application with a git URL.
type DeployKey struct {
	ApplicationID        string    `json:"application_id"`
	PublicKey            string    `json:"public_key"`
	EncryptedPrivateKey  string    `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
}

// Deployment is one pipeline run.
type Deployment struct {
	ID             string       `json:"id"`
	ApplicationID  string       `json:"application_id"`
	ServerID       string       `json:"server_id"`
	Trigger        string       `json:"trigger"`
	CommitSHA      string       `json:"commit_sha,omitempty"`
	CommitMessage  string       `json:"commit_message,omitempty"`
	Status         DeployStatus `json:"status"`
	BuildLog       string       `json:"build_log,omitempty"`
	ContainerID    string       `json:"container_id,omitempty"`
	ImageTag       string       `json:"image_tag,omitempty"`
	HostPort       int          `json:"host_port,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     *time.Time   `json:"finished_at,omitempty"`
}

// HealthCheck is the per-application probe configuration.
// coreapi.HealthCheckService.Configure replaces a zero Path, TimeoutSeconds,
// HealthyThreshold or UnhealthyThreshold with the default before storing;
// internal/health uses the stored values as they are.
type HealthCheck struct {
	ApplicationID      string `json:"application_id"`
	Path               string `json:"path"`
	IntervalSeconds    int    `json:"interval_seconds"`
	TimeoutSeconds     int    `json:"timeout_seconds"`
	HealthyThreshold   int    `json:"healthy_threshold"`
	UnhealthyThreshold int    `json:"unhealthy_threshold"`
}

type HealthCheckResult struct {
	ID             int64        `json:"id"`
	ApplicationID  string       `json:"application_id"`
	ContainerID    string       `json:"container_id"`
	Status         HealthStatus `json:"status"`
	ResponseTimeMs int          `json:"response_time_ms,omitempty"`
	StatusCode     int          `json:"status_code,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	CheckedAt      time.Time    `json:"checked_at"`
}

type ContainerStats struct {
	ID             int64     `json:"id"`
	ContainerID    string    `json:"container_id"`
	ApplicationID  string    `json:"application_id,omitempty"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryMB       float64   `json:"memory_mb"`
	MemoryLimitMB  float64   `json:"memory_limit_mb,omitempty"`
	NetworkRxMB    float64   `json:"network_rx_mb,omitempty"`
	NetworkTxMB    float64   `json:"network_tx_mb,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type Webhook struct {
	ApplicationID string          `json:"application_id"`
	Provider      WebhookProvider `json:"provider"`
	Secret        string          `json:"-"`
	Enabled       bool            `json:"enabled"`
	CreatedAt     time.Time       `json:"created_at"`
}

type WebhookDelivery struct {
	ID            int64           `json:"id"`
	ApplicationID string          `json:"application_id"`
	Provider      WebhookProvider `json:"provider"`
	EventType     string          `json:"event_type"`
	Branch        string          `json:"branch,omitempty"`
	CommitSHA     string          `json:"commit_sha,omitempty"`
	CommitMessage string          `json:"commit_message,omitempty"`
	Author        string          `json:"author,omitempty"`
	Status        DeliveryStatus  `json:"status"`
	DeploymentID  string          `json:"deployment_id,omitempty"`
	DeliveredAt   time.Time       `json:"delivered_at"`
}

// DefaultHealthCheck fills the zero-value defaults spec.md §3/4.7 assume when
// an application has no explicit HealthCheck row.
func DefaultHealthCheck(appID string) HealthCheck {
	return HealthCheck{
		ApplicationID:      appID,
		Path:               "/",
		IntervalSeconds:    15,
		TimeoutSeconds:     5,
		HealthyThreshold:   2,
		UnhealthyThreshold: 2,
	}
}
