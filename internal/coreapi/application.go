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

// Package coreapi is the plain method-call service layer behind spec §6.1's
// HTTP surface. Transport (routing, JSON encoding, auth middleware) is
// explicitly out of scope, so every service here exposes exactly the
// operations an HTTP handler layer would call, and nothing about HTTP
// leaks into their signatures.
package coreapi

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nusendra/ployer/internal/fleet"
	"github.com/nusendra/ployer/internal/gitadapter"
	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/orchestrator"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/proxyadapter"
	"github.com/nusendra/ployer/internal/secretbox"
	"github.com/nusendra/ployer/internal/storage"
	"github.com/nusendra/ployer/pkg/logger"
)

// ApplicationService owns application CRUD plus the operations that fan out
// to other components: deploy-key issuance, and cancel-then-remove on
// delete so an in-flight deployment never outlives its application.
type ApplicationService struct {
	store storage.Store
	box   *secretbox.Box
	orch  *orchestrator.Orchestrator
	fleet *fleet.Controller
	proxy *proxyadapter.Adapter
	log   *logger.Logger
}

func NewApplicationService(store storage.Store, box *secretbox.Box, orch *orchestrator.Orchestrator, fl *fleet.Controller, proxy *proxyadapter.Adapter) *ApplicationService {
	return &ApplicationService{store: store, box: box, orch: orch, fleet: fl, proxy: proxy, log: logger.With("coreapi.application")}
}

type CreateApplicationInput struct {
	Name           string
	ServerID       string
	GitURL         string
	Branch         string
	BuildStrategy  models.BuildStrategy
	DockerfilePath string
	Port           int
	AutoDeploy     bool
}

// Create registers a new application, generates a git deploy key when a
// GitURL is given, and seeds default health check settings.
func (s *ApplicationService) Create(in CreateApplicationInput) (*models.Application, error) {
	if in.Name == "" {
		return nil, ployererr.Validationf("coreapi.ApplicationService.Create", "name is required")
	}
	if existing, err := s.store.GetApplicationByName(in.Name); err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.ApplicationService.Create", err)
	} else if existing != nil {
		return nil, ployererr.Conflictf("coreapi.ApplicationService.Create", "an application named %q already exists", in.Name)
	}

	branch := in.Branch
	if branch == "" {
		branch = "main"
	}

	app := &models.Application{
		ID:             uuid.NewString(),
		Name:           in.Name,
		ServerID:       in.ServerID,
		GitURL:         in.GitURL,
		Branch:         branch,
		BuildStrategy:  in.BuildStrategy,
		DockerfilePath: in.DockerfilePath,
		Port:           in.Port,
		AutoDeploy:     in.AutoDeploy,
		Status:         models.AppPending,
	}
	if err := s.store.CreateApplication(app); err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.ApplicationService.Create", err)
	}

	dhc := models.DefaultHealthCheck(app.ID)
	if err := s.store.UpsertHealthCheck(&dhc); err != nil {
		s.log.Error("Create: seed default health check for %s: %v", app.ID, err)
	}

	if in.GitURL != "" {
		if _, err := s.RegenerateDeployKey(app.ID); err != nil {
			s.log.Error("Create: generate deploy key for %s: %v", app.ID, err)
		}
	}

	return app, nil
}

func (s *ApplicationService) Get(id string) (*models.Application, error) {
	app, err := s.store.GetApplication(id)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.ApplicationService.Get", err)
	}
	if app == nil {
		return nil, ployererr.NotFoundf("coreapi.ApplicationService.Get", "application %s not found", id)
	}
	return app, nil
}

func (s *ApplicationService) List() ([]models.Application, error) {
	apps, err := s.store.GetAllApplications()
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.ApplicationService.List", err)
	}
	return apps, nil
}

type UpdateApplicationInput struct {
	Branch         *string
	BuildStrategy  *models.BuildStrategy
	DockerfilePath *string
	Port           *int
	AutoDeploy     *bool
}

func (s *ApplicationService) Update(id string, in UpdateApplicationInput) (*models.Application, error) {
	app, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if in.Branch != nil {
		app.Branch = *in.Branch
	}
	if in.BuildStrategy != nil {
		app.BuildStrategy = *in.BuildStrategy
	}
	if in.DockerfilePath != nil {
		app.DockerfilePath = *in.DockerfilePath
	}
	if in.Port != nil {
		app.Port = *in.Port
	}
	if in.AutoDeploy != nil {
		app.AutoDeploy = *in.AutoDeploy
	}

	if err := s.store.UpdateApplication(app); err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.ApplicationService.Update", err)
	}
	return app, nil
}

// Delete cancels any in-flight deployment for the application, tears down
// its running container, removes its proxy routes, and removes every row
// that references it. Spec §9 flags "what happens to an in-flight
// deployment when its application is deleted" as an open question;
// cancel-then-remove is the resolution recorded in DESIGN.md. Spec §3's
// application lifecycle and §4.3's orphan-removal both require the route to
// go with it, mirroring DomainService.Remove.
func (s *ApplicationService) Delete(id string) error {
	app, err := s.Get(id)
	if err != nil {
		return err
	}

	if active, err := s.store.GetActiveDeployment(app.ID); err == nil && active != nil {
		if cerr := s.orch.Cancel(active.ID); cerr != nil {
			s.log.Error("Delete %s: cancel in-flight deployment %s: %v", app.ID, active.ID, cerr)
		}
	}

	if err := s.fleet.Remove(context.Background(), app.ID); err != nil {
		s.log.Error("Delete %s: remove container: %v", app.ID, err)
	}

	domains, err := s.store.GetDomainsByApp(app.ID)
	if err != nil {
		s.log.Error("Delete %s: load domains for route cleanup: %v", app.ID, err)
	}
	for _, d := range domains {
		if err := s.proxy.RemoveRoute(context.Background(), d.Hostname); err != nil {
			s.log.Error("Delete %s: remove route %s: %v", app.ID, d.Hostname, err)
		}
	}

	_ = s.store.DeleteDeploymentsByApp(app.ID)
	_ = s.store.DeleteEnvVarsByApp(app.ID)
	_ = s.store.DeleteDomainsByApp(app.ID)
	_ = s.store.DeleteDeployKey(app.ID)
	_ = s.store.DeleteHealthCheck(app.ID)
	_ = s.store.DeleteWebhook(app.ID)

	if err := s.store.DeleteApplication(app.ID); err != nil {
		return ployererr.New(ployererr.Internal, "coreapi.ApplicationService.Delete", err)
	}
	return nil
}

func (s *ApplicationService) Stop(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := s.fleet.Stop(context.Background(), id); err != nil {
		return ployererr.Upstreamf("coreapi.ApplicationService.Stop", err)
	}
	return s.store.UpdateApplicationStatus(id, models.AppStopped)
}

// RegenerateDeployKey issues a fresh RSA key pair, encrypts the private half
// at rest, and returns the public half for the operator to add as a
// read-only deploy key on the git host.
func (s *ApplicationService) RegenerateDeployKey(appID string) (string, error) {
	kp, err := gitadapter.GenerateKeyPair()
	if err != nil {
		return "", ployererr.New(ployererr.Internal, "coreapi.ApplicationService.RegenerateDeployKey", err)
	}

	encrypted, err := s.box.Encrypt(kp.PrivateKeyPEM)
	if err != nil {
		return "", ployererr.Cryptof("coreapi.ApplicationService.RegenerateDeployKey", err)
	}

	dk := &models.DeployKey{
		ApplicationID:       appID,
		PublicKey:           kp.PublicKey,
		EncryptedPrivateKey: encrypted,
	}
	if err := s.store.UpsertDeployKey(dk); err != nil {
		return "", ployererr.New(ployererr.Internal, "coreapi.ApplicationService.RegenerateDeployKey", err)
	}

	return kp.PublicKey, nil
}

// SetEnvVar encrypts value before it ever reaches storage, so environment
// variable values are only stored encrypted at rest.
func (s *ApplicationService) SetEnvVar(appID, key, value string) error {
	if key == "" {
		return ployererr.Validationf("coreapi.ApplicationService.SetEnvVar", "key is required")
	}
	encrypted, err := s.box.Encrypt(value)
	if err != nil {
		return ployererr.Cryptof("coreapi.ApplicationService.SetEnvVar", err)
	}
	e := &models.EnvironmentVariable{ApplicationID: appID, Key: key, EncryptedValue: encrypted, UpdatedAt: time.Now()}
	if err := s.store.UpsertEnvVar(e); err != nil {
		return ployererr.New(ployererr.Internal, "coreapi.ApplicationService.SetEnvVar", err)
	}
	return nil
}

func (s *ApplicationService) DeleteEnvVar(appID, key string) error {
	return s.store.DeleteEnvVar(appID, key)
}

// EnvVar is a decrypted key/value pair, matching spec §6.1's env-var read
// operations: "values are ciphertext in storage, plaintext on the wire."
type EnvVar struct {
	Key   string
	Value string
}

// ListEnvVars decrypts every stored value before returning it, since the
// values are ciphertext only at rest (spec §6.1).
func (s *ApplicationService) ListEnvVars(appID string) ([]EnvVar, error) {
	vars, err := s.store.GetEnvVars(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "coreapi.ApplicationService.ListEnvVars", err)
	}
	out := make([]EnvVar, 0, len(vars))
	for _, v := range vars {
		plain, derr := s.box.Decrypt(v.EncryptedValue)
		if derr != nil {
			return nil, ployererr.Cryptof("coreapi.ApplicationService.ListEnvVars", derr)
		}
		out = append(out, EnvVar{Key: v.Key, Value: plain})
	}
	return out, nil
}

// Deploy triggers a manual deployment (spec §4.1 trigger "manual").
func (s *ApplicationService) Deploy(appID string) (*models.Deployment, error) {
	dep, err := s.orch.Enqueue(appID, fmt.Sprintf("manual:%d", time.Now().UnixNano()))
	if err != nil {
		return nil, err
	}
	return dep, nil
}
