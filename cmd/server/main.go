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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"investment-ledger-go/internal/accrual"
	"investment-ledger-go/internal/common"
	"investment-ledger-go/internal/config"
	"investment-ledger-go/internal/formance"
	"investment-ledger-go/internal/httpapi"
	"investment-ledger-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	noAccrual := flag.Bool("no-accrual", false, "Serve the API without running the accrual scheduler")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting investment ledger server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var engine *accrual.Engine
	if !*noAccrual {
		engine = accrual.NewEngine(services.DbService, cfg.Accrual)
		// Catch up on cycles that came due while the process was down
		engine.RunOnce(ctx)
		if cfg.Formance.Enabled() {
			scheduleMirror(ctx, engine, services, cfg.Formance)
		}
		if err := engine.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start accrual engine", zap.Error(err))
		}
	} else {
		zap.L().Warn("Accrual scheduler disabled (--no-accrual)")
	}

	server := &http.Server{
		Addr:         cfg.Http.Addr,
		Handler:      httpapi.NewRouter(services.Ledger),
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Http.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		if err != nil {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("HTTP server did not shut down cleanly", zap.Error(err))
	}

	if engine != nil {
		done := make(chan struct{})
		go func() {
			engine.Stop()
			close(done)
		}()

		select {
		case <-done:
			zap.L().Info("Accrual engine stopped gracefully")
		case <-shutdownCtx.Done():
			zap.L().Warn("Forced shutdown after timeout")
		}
	}
	cancel()
}

func scheduleMirror(ctx context.Context, engine *accrual.Engine, services *common.Services, cfg models.FormanceConfig) {
	mirror, err := formance.NewService(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize Formance mirror", zap.Error(err))
	}
	exporter := formance.NewExporter(mirror, services.DbService)

	err = engine.AddJob("formance-mirror", cfg.Schedule, func() {
		if _, err := exporter.Sync(ctx); err != nil {
			zap.L().Error("Mirror export pass failed", zap.Error(err))
		}
	})
	if err != nil {
		zap.L().Fatal("Failed to schedule Formance mirror", zap.Error(err))
	}
}
