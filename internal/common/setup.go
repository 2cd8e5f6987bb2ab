/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"investment-ledger-go/internal/api"
	"investment-ledger-go/internal/database"
	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/plans"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// init loads environment variables from .env file if it exists
func init() {
	// A missing .env is fine; variables may come from the shell or the container
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services is everything a command needs to operate on the ledger
type Services struct {
	DbService *database.Service
	Plans     *plans.Catalog
	Ledger    *api.LedgerService
}

// InitializeLogger installs a production zap logger as the global logger.
// LOG_LEVEL (debug, info, warn, error) overrides the default info level.
func InitializeLogger() (*zap.Logger, func()) {
	zapCfg := zap.NewProductionConfig()
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			log.Printf("Ignoring invalid LOG_LEVEL %q: %v\n", raw, err)
		} else {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the store, loads the plan catalog and builds the
// request-boundary service on top of them.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Loading plan catalog", zap.String("file", cfg.Plans.File))
	catalog, err := plans.LoadOrDefault(cfg.Plans.File)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("failed to load plan catalog: %w", err)
	}
	zap.L().Info("Using plan catalog",
		zap.Int("version", catalog.Version()),
		zap.Int("plans", len(catalog.List())))

	return &Services{
		DbService: dbService,
		Plans:     catalog,
		Ledger:    api.NewLedgerService(dbService, catalog),
	}, nil
}

// InitializeDatabaseOnly opens just the store. Useful for read-only reports.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Ledger)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stderr: invalid argument")
}
