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

package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// buildWithNixpacks invokes the external nixpacks binary against dir,
// mirroring the teacher deploy executor's pattern of shelling out to an
// external build tool and streaming its combined output line by line.
func buildWithNixpacks(ctx context.Context, dir, tag string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, "nixpacks", "build", dir, "--name", tag)

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start nixpacks: %w", err)
	}

	done := make(chan struct{}, 2)
	go func() { scanInto(stdout, onLine); done <- struct{}{} }()
	go func() { scanInto(stderr, onLine); done <- struct{}{} }()
	<-done
	<-done

	return cmd.Wait()
}

func scanInto(r interface{ Read([]byte) (int, error) }, onLine func(string)) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
}

type composeService struct {
	name         string
	buildContext string
	dockerfile   string
}

// selectComposeService reads a docker-compose file and picks the first
// service (in file order) with a port mapping, per spec §4.1's documented
// tie-break: "treat the first service with a port mapping as the
// application service". A plain map[string]... unmarshal would lose file
// order, so this walks the raw yaml.Node mapping directly.
func selectComposeService(workDir string) (*composeService, error) {
	path := findComposeFile(workDir)
	if path == "" {
		return nil, fmt.Errorf("no docker-compose file found")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse compose file: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty compose file")
	}

	servicesNode := findMappingValue(root.Content[0], "services")
	if servicesNode == nil {
		return nil, fmt.Errorf("compose file has no services section")
	}

	for i := 0; i+1 < len(servicesNode.Content); i += 2 {
		nameNode := servicesNode.Content[i]
		svcNode := servicesNode.Content[i+1]

		portsNode := findMappingValue(svcNode, "ports")
		if portsNode == nil || len(portsNode.Content) == 0 {
			continue
		}

		svc := &composeService{name: nameNode.Value, buildContext: "."}
		if buildNode := findMappingValue(svcNode, "build"); buildNode != nil {
			if buildNode.Kind == yaml.ScalarNode {
				svc.buildContext = buildNode.Value
			} else {
				if ctxNode := findMappingValue(buildNode, "context"); ctxNode != nil {
					svc.buildContext = ctxNode.Value
				}
				if dfNode := findMappingValue(buildNode, "dockerfile"); dfNode != nil {
					svc.dockerfile = dfNode.Value
				}
			}
		}
		return svc, nil
	}

	return nil, fmt.Errorf("no compose service declares a port mapping")
}

func findMappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func findComposeFile(dir string) string {
	for _, name := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
