// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command engine starts the evolutionary-engine HTTP server.
//
// # Flags
//
//   - --port: HTTP server port (default: 8080)
//   - --fitness-url: fitness evaluator base URL (default: http://127.0.0.1:8090)
//   - --config: optional YAML config file with the same knobs
//
// # Environment Variables
//
//   - ENGINE_PORT: overrides the default port
//   - FITNESS_URL: overrides the default fitness evaluator URL
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// Precedence: explicit flags beat environment variables beat the config
// file beat built-in defaults.
//
// # Exit Codes
//
//   - 0: clean shutdown
//   - 1: fatal startup error
//   - 2: invalid flags
//
// # Usage
//
//	# Build
//	go build -o engine ./cmd/engine
//
//	# Run
//	./engine --port 8080 --fitness-url http://127.0.0.1:8090
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evolvelab/genesys/pkg/logging"
	"github.com/evolvelab/genesys/services/engine"
)

// errInvalidFlags tags flag-parse failures so main can exit with code 2.
var errInvalidFlags = errors.New("invalid flags")

// fileConfig is the YAML shape accepted by --config.
type fileConfig struct {
	Port       int    `yaml:"port"`
	FitnessURL string `yaml:"fitness_url"`
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if errors.Is(err, errInvalidFlags) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd(out *os.File) *cobra.Command {
	var (
		port       int
		fitnessURL string
		configPath string
	)

	cmd := &cobra.Command{
		Use:           "engine",
		Short:         "Evolutionary-computation engine HTTP server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(logging.Config{
				Level:   logging.LevelInfo,
				Service: "engine",
			})
			defer logger.Close()

			cfg := resolveConfig(cmd, port, fitnessURL, configPath)
			cfg.OTelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

			logger.Info("Starting engine",
				"port", cfg.Port,
				"fitness_url", cfg.FitnessURL,
				"otel_endpoint", cfg.OTelEndpoint,
			)

			svc, err := engine.New(cfg)
			if err != nil {
				logger.Error("Failed to create engine", "error", err)
				return err
			}
			if err := svc.Run(); err != nil {
				logger.Error("Engine error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.SetOut(out)
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&fitnessURL, "fitness-url", "http://127.0.0.1:8090", "fitness evaluator base URL")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errInvalidFlags, err)
	})

	return cmd
}

// resolveConfig merges flags, environment, and the optional config file.
// Explicit flags win, then env vars, then the file, then defaults.
func resolveConfig(cmd *cobra.Command, port int, fitnessURL, configPath string) engine.Config {
	var file fileConfig
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot read config file %s: %v\n", configPath, err)
		} else if err := yaml.Unmarshal(raw, &file); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot parse config file %s: %v\n", configPath, err)
		}
	}

	cfg := engine.Config{Port: port, FitnessURL: fitnessURL}

	if !cmd.Flags().Changed("port") {
		if v := getEnvInt("ENGINE_PORT", 0); v != 0 {
			cfg.Port = v
		} else if file.Port != 0 {
			cfg.Port = file.Port
		}
	}
	if !cmd.Flags().Changed("fitness-url") {
		if v := os.Getenv("FITNESS_URL"); v != "" {
			cfg.FitnessURL = v
		} else if file.FitnessURL != "" {
			cfg.FitnessURL = file.FitnessURL
		}
	}
	return cfg
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
