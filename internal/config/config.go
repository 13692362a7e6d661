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

// Package config loads the YAML-backed process configuration enumerated in
// spec §6.5.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nusendra/ployer/pkg/helper"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Docker  DockerConfig  `yaml:"docker"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	BaseDomain      string   `yaml:"base_domain"`
	PublicURL       string   `yaml:"public_url"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	DataDir         string   `yaml:"data_dir"`
	WorkDir         string   `yaml:"work_dir"`
}

// ProxyConfig configures the Reverse-Proxy Route Manager (F)'s external
// admin endpoint (spec §4.3, §6.3).
type ProxyConfig struct {
	AdminURL string `yaml:"admin_url"`
}

// DockerConfig configures the Container Runtime Adapter (D)'s connection to
// the container daemon (spec §6.3).
type DockerConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// AuthConfig carries the root secret the Secret Box (B) derives its AEAD key
// from, plus the token_expiry_hours field that spec §6.5 explicitly marks as
// "external auth concern (passed through)" — the core never reads it, but it
// round-trips through this same config file.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	TokenExpiryHours  int    `yaml:"token_expiry_hours"`
}

type LoggingConfig struct {
	Format string `yaml:"format"` // "plain" or "json"
	Level  string `yaml:"level"`
	Path   string `yaml:"path"`
}

var (
	DefaultConfigPath = "/etc/ployer/config.yaml"
	DefaultDataDir    = "/var/lib/ployer"
	DefaultWorkDir    = "/var/lib/ployer/work"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9000
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = DefaultDataDir
	}
	if c.Server.WorkDir == "" {
		c.Server.WorkDir = DefaultWorkDir
	}
	if c.Proxy.AdminURL == "" {
		c.Proxy.AdminURL = "http://127.0.0.1:8080"
	}
	if c.Docker.SocketPath == "" {
		c.Docker.SocketPath = "/var/run/docker.sock"
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = helper.GenerateSecret()
	}
	if c.Auth.TokenExpiryHours == 0 {
		c.Auth.TokenExpiryHours = 24
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "plain"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}
