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

// Package webhookingress is the Webhook Ingress (component J): verifies
// provider signatures, parses push payloads, matches against the
// configured branch, enqueues a deployment, and records a delivery.
//
// Unlike the teacher's WebhookService, an unconfigured secret is never
// treated as "accept unsigned" — spec §7 requires every signature failure
// to be Unauthorized, so a missing webhook or secret fails closed.
package webhookingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/storage"
	"github.com/nusendra/ployer/pkg/logger"
)

// Enqueuer is the slice of the Deployment Orchestrator the ingress needs.
// Declared here (rather than importing internal/orchestrator directly) to
// keep the dependency direction the same as spec §4.4's "enqueues a
// deployment via G" without coupling to the orchestrator's full API.
type Enqueuer interface {
	Enqueue(appID, trigger string) (*models.Deployment, error)
}

type Ingress struct {
	store storage.Store
	orch  Enqueuer
	log   *logger.Logger
}

func New(store storage.Store, orch Enqueuer) *Ingress {
	return &Ingress{store: store, orch: orch, log: logger.With("webhookingress")}
}

// Result is what Handler needs to render the response for a webhook POST.
type Result struct {
	Status       models.DeliveryStatus
	DeploymentID string
	HTTPStatus   int
	Message      string
}

// HandleGitHub verifies signature (header value of X-Hub-Signature-256) and
// processes a GitHub push payload for appID, per spec §4.4/§6.2.
func (i *Ingress) HandleGitHub(appID string, body []byte, signatureHeader string) (*Result, error) {
	wh, err := i.requireWebhook(appID, models.ProviderGitHub)
	if err != nil {
		return nil, err
	}

	if !verifyGitHubSignature(body, wh.Secret, signatureHeader) {
		i.recordDelivery(appID, models.ProviderGitHub, "push", "", "", "", "", models.DeliveryFailed, "")
		return &Result{Status: models.DeliveryFailed, HTTPStatus: ployererr.Status(ployererr.Unauthorized), Message: "invalid signature"}, nil
	}

	var payload githubPushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ployererr.Validationf("webhookingress.HandleGitHub", "malformed payload: %v", err)
	}

	branch := extractBranch(payload.Ref)
	return i.dispatch(appID, models.ProviderGitHub, branch, payload.HeadCommit.ID, payload.HeadCommit.Message, payload.HeadCommit.Author.Name)
}

// HandleGitLab verifies the X-Gitlab-Token header by equality and processes
// a GitLab push payload for appID.
func (i *Ingress) HandleGitLab(appID string, body []byte, tokenHeader string) (*Result, error) {
	wh, err := i.requireWebhook(appID, models.ProviderGitLab)
	if err != nil {
		return nil, err
	}

	if !verifyGitLabToken(wh.Secret, tokenHeader) {
		i.recordDelivery(appID, models.ProviderGitLab, "push", "", "", "", "", models.DeliveryFailed, "")
		return &Result{Status: models.DeliveryFailed, HTTPStatus: ployererr.Status(ployererr.Unauthorized), Message: "invalid token"}, nil
	}

	var payload gitlabPushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ployererr.Validationf("webhookingress.HandleGitLab", "malformed payload: %v", err)
	}

	branch := extractBranch(payload.Ref)
	message, author := "", ""
	if len(payload.Commits) > 0 {
		message = payload.Commits[0].Message
		author = payload.Commits[0].Author.Name
	}
	return i.dispatch(appID, models.ProviderGitLab, branch, payload.CheckoutSHA, message, author)
}

func (i *Ingress) requireWebhook(appID string, provider models.WebhookProvider) (*models.Webhook, error) {
	wh, err := i.store.GetWebhook(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "webhookingress.requireWebhook", err)
	}
	// Fail closed: no configured webhook, wrong provider, or disabled all
	// verify as Unauthorized rather than silently accepting the request.
	if wh == nil || wh.Provider != provider || !wh.Enabled || wh.Secret == "" {
		return nil, ployererr.New(ployererr.Unauthorized, "webhookingress.requireWebhook", fmt.Errorf("no active %s webhook configured for application %s", provider, appID))
	}
	return wh, nil
}

func (i *Ingress) dispatch(appID string, provider models.WebhookProvider, branch, commitSHA, commitMessage, author string) (*Result, error) {
	app, err := i.store.GetApplication(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "webhookingress.dispatch", err)
	}
	if app == nil {
		return nil, ployererr.NotFoundf("webhookingress.dispatch", "application %s not found", appID)
	}

	if branch == "" || branch != app.Branch {
		i.recordDelivery(appID, provider, "push", branch, commitSHA, commitMessage, author, models.DeliverySkipped, "")
		return &Result{Status: models.DeliverySkipped, HTTPStatus: 200, Message: fmt.Sprintf("branch %q does not match configured branch %q", branch, app.Branch)}, nil
	}

	dep, err := i.orch.Enqueue(appID, fmt.Sprintf("webhook:%s:%s", provider, commitSHA))
	if err != nil {
		i.recordDelivery(appID, provider, "push", branch, commitSHA, commitMessage, author, models.DeliveryFailed, "")
		return nil, err
	}

	i.recordDelivery(appID, provider, "push", branch, commitSHA, commitMessage, author, models.DeliverySuccess, dep.ID)
	return &Result{Status: models.DeliverySuccess, DeploymentID: dep.ID, HTTPStatus: 200}, nil
}

func (i *Ingress) recordDelivery(appID string, provider models.WebhookProvider, eventType, branch, commitSHA, commitMessage, author string, status models.DeliveryStatus, deploymentID string) {
	d := &models.WebhookDelivery{
		ApplicationID: appID,
		Provider:      provider,
		EventType:     eventType,
		Branch:        branch,
		CommitSHA:     commitSHA,
		CommitMessage: commitMessage,
		Author:        author,
		Status:        status,
		DeploymentID:  deploymentID,
	}
	if err := i.store.RecordWebhookDelivery(d); err != nil {
		i.log.Error("failed to record webhook delivery for %s: %v", appID, err)
	}
}

func verifyGitHubSignature(body []byte, secret, header string) bool {
	const prefix = "sha256="
	if secret == "" || !strings.HasPrefix(header, prefix) {
		return false
	}
	expectedHex := strings.TrimPrefix(header, prefix)
	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := mac.Sum(nil)

	return hmac.Equal(computed, expected)
}

func verifyGitLabToken(secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	return hmac.Equal([]byte(secret), []byte(header))
}

// extractBranch strips the refs/heads/ prefix spec §6.2 specifies; returns
// "" for tag refs or anything else that isn't a branch push.
func extractBranch(ref string) string {
	const prefix = "refs/heads/"
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	return strings.TrimPrefix(ref, prefix)
}

type githubPushPayload struct {
	Ref        string `json:"ref"`
	HeadCommit struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"head_commit"`
}

type gitlabPushPayload struct {
	Ref         string `json:"ref"`
	CheckoutSHA string `json:"checkout_sha"`
	Commits     []struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commits"`
}
