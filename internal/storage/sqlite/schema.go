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

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT DEFAULT '',
	role TEXT DEFAULT 'user',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS servers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	host TEXT NOT NULL,
	port INTEGER DEFAULT 22,
	username TEXT DEFAULT '',
	encrypted_private_key TEXT DEFAULT '',
	is_local INTEGER DEFAULT 0,
	status TEXT DEFAULT 'unknown',
	last_seen_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	server_id TEXT NOT NULL,
	git_url TEXT DEFAULT '',
	branch TEXT DEFAULT 'main',
	build_strategy TEXT DEFAULT 'dockerfile',
	dockerfile_path TEXT DEFAULT '',
	port INTEGER DEFAULT 0,
	auto_deploy INTEGER DEFAULT 1,
	status TEXT DEFAULT 'pending',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (server_id) REFERENCES servers(id)
);

CREATE TABLE IF NOT EXISTS environment_variables (
	application_id TEXT NOT NULL,
	key TEXT NOT NULL,
	encrypted_value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (application_id, key),
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS domains (
	application_id TEXT NOT NULL,
	hostname TEXT NOT NULL UNIQUE,
	is_primary INTEGER DEFAULT 0,
	ssl_active INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (application_id, hostname),
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS deploy_keys (
	application_id TEXT PRIMARY KEY,
	public_key TEXT NOT NULL,
	encrypted_private_key TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS deployments (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL,
	server_id TEXT NOT NULL,
	trigger_type TEXT DEFAULT 'manual',
	commit_sha TEXT DEFAULT '',
	commit_message TEXT DEFAULT '',
	status TEXT DEFAULT 'queued',
	build_log TEXT DEFAULT '',
	container_id TEXT DEFAULT '',
	image_tag TEXT DEFAULT '',
	host_port INTEGER DEFAULT 0,
	started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME,
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE,
	FOREIGN KEY (server_id) REFERENCES servers(id)
);

CREATE TABLE IF NOT EXISTS health_checks (
	application_id TEXT PRIMARY KEY,
	path TEXT DEFAULT '/',
	interval_seconds INTEGER DEFAULT 15,
	timeout_seconds INTEGER DEFAULT 5,
	healthy_threshold INTEGER DEFAULT 2,
	unhealthy_threshold INTEGER DEFAULT 2,
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS health_check_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	application_id TEXT NOT NULL,
	container_id TEXT DEFAULT '',
	status TEXT NOT NULL,
	response_time_ms INTEGER DEFAULT 0,
	status_code INTEGER DEFAULT 0,
	error_message TEXT DEFAULT '',
	checked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS container_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	container_id TEXT NOT NULL,
	application_id TEXT DEFAULT '',
	cpu_percent REAL DEFAULT 0,
	memory_mb REAL DEFAULT 0,
	memory_limit_mb REAL DEFAULT 0,
	network_rx_mb REAL DEFAULT 0,
	network_tx_mb REAL DEFAULT 0,
	recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS webhooks (
	application_id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	secret TEXT NOT NULL,
	enabled INTEGER DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS webhook_deliveries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	application_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	event_type TEXT DEFAULT '',
	branch TEXT DEFAULT '',
	commit_sha TEXT DEFAULT '',
	commit_message TEXT DEFAULT '',
	author TEXT DEFAULT '',
	status TEXT NOT NULL,
	deployment_id TEXT DEFAULT '',
	delivered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_applications_server ON applications(server_id);
CREATE INDEX IF NOT EXISTS idx_deployments_app ON deployments(application_id);
CREATE INDEX IF NOT EXISTS idx_deployments_started ON deployments(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_domains_app ON domains(application_id);
CREATE INDEX IF NOT EXISTS idx_health_results_app ON health_check_results(application_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_container_stats_recorded ON container_stats(recorded_at);
CREATE INDEX IF NOT EXISTS idx_container_stats_app ON container_stats(application_id);
CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_app ON webhook_deliveries(application_id, delivered_at DESC);
`
