/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carverauto/netdiscovery/pkg/config"
	discoveryconsumer "github.com/carverauto/netdiscovery/pkg/consumers/discovery"
	"github.com/carverauto/netdiscovery/pkg/lifecycle"
	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/version"
)

const serviceName = "discovery-reconciler"

var ErrCNPGPasswordEmpty = errors.New("CNPG password file is empty")

func main() {
	if err := run(); err != nil {
		log.Fatalf("%s: %v", serviceName, err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/netdiscovery/discovery-reconciler.json", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return nil
	}

	ctx := context.Background()

	var cfg discoveryconsumer.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyCNPGPassword(&cfg); err != nil {
		return err
	}

	loggerConfig := cfg.Logging
	if loggerConfig == nil {
		loggerConfig = logger.DefaultConfig()
	}

	serviceLogger, err := lifecycle.CreateComponentLogger(ctx, serviceName, loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	if loggerConfig.OTel != nil && loggerConfig.OTel.Enabled {
		_, tracedCtx, rootSpan, err := logger.InitializeTracing(ctx, logger.TracingConfig{
			ServiceName:    serviceName,
			ServiceVersion: version.GetVersion(),
			Logger:         serviceLogger,
			OTel:           loggerConfig.OTel,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}

		defer rootSpan.End()

		ctx = tracedCtx

		if _, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
			ServiceName:    serviceName,
			ServiceVersion: version.GetVersion(),
			OTel:           loggerConfig.OTel,
		}); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	svc, err := discoveryconsumer.NewService(&cfg, serviceLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize discovery reconciler: %w", err)
	}

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		ServiceName: serviceName,
		Service:     svc,
		Logger:      serviceLogger,
	})
}

// applyCNPGPassword reads the CNPG password from CNPG_PASSWORD_FILE when the
// configuration leaves it empty.
func applyCNPGPassword(cfg *discoveryconsumer.Config) error {
	if cfg.Store.CNPG == nil || cfg.Store.CNPG.Password != "" {
		return nil
	}

	pwPath := os.Getenv("CNPG_PASSWORD_FILE")
	if pwPath == "" {
		return nil
	}

	data, err := os.ReadFile(pwPath)
	if err != nil {
		return fmt.Errorf("read CNPG password file: %w", err)
	}

	pwd := strings.TrimSpace(string(data))
	if pwd == "" {
		return fmt.Errorf("%w: %s", ErrCNPGPasswordEmpty, pwPath)
	}

	cfg.Store.CNPG.Password = pwd

	return nil
}
