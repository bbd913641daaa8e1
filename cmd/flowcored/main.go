// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// flowcored runs the workflow engine as a standalone process: it wires a
// store, broker, and executor together, exposes Prometheus metrics, and
// shuts down gracefully, draining in-flight runs. The query/mutation
// transport in front of the engine is a separate concern; this daemon is
// the engine host.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/flowcore/internal/clock"
	"github.com/tombee/flowcore/internal/idgen"
	"github.com/tombee/flowcore/internal/log"
	"github.com/tombee/flowcore/internal/metrics"
	"github.com/tombee/flowcore/pkg/httpclient"
	"github.com/tombee/flowcore/pkg/workflow"
	"github.com/tombee/flowcore/pkg/workflow/sqlstore"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		backendType = flag.String("backend", "sqlite", "Storage backend (memory, sqlite)")
		dbPath      = flag.String("db", "flowcore.db", "SQLite database file path")
		metricsAddr = flag.String("metrics", "127.0.0.1:9090", "Prometheus metrics listen address (empty to disable)")
		maxParallel = flag.Int("max-parallel", 0, "Maximum concurrently-progressing runs (0 = unbounded)")
		drainGrace  = flag.Duration("drain-grace", 30*time.Second, "How long shutdown waits for in-flight runs to suspend")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("flowcored %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	engine, executor, cleanup, err := buildEngine(*backendType, *dbPath, *maxParallel, logger)
	if err != nil {
		logger.Error("Failed to build engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	wfs, err := engine.Workflows(context.Background())
	if err != nil {
		logger.Error("Failed to query workflows", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Engine ready", slog.Int("workflows", len(wfs)))

	var metricsSrv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			logger.Info("Metrics listening", slog.String("addr", *metricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	logger.Info("flowcored started",
		slog.String("version", version),
		slog.String("backend", *backendType))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", slog.String("signal", sig.String()))

	drainCtx, cancel := context.WithTimeout(context.Background(), *drainGrace)
	defer cancel()
	if err := executor.Drain(drainCtx); err != nil {
		logger.Warn("Drain timed out before in-flight runs finished", slog.Any("error", err))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// buildEngine assembles the store, journal, broker, executor, and engine
// for the chosen backend, returning a cleanup func that closes whatever
// needs closing.
func buildEngine(backendType, dbPath string, maxParallel int, logger *slog.Logger) (*workflow.Engine, *workflow.Executor, func(), error) {
	clk := clock.Real{}
	ids := idgen.UUID{}

	var (
		store   workflow.Store
		cleanup = func() {}
	)
	switch backendType {
	case "memory":
		store = workflow.NewMemoryStore(clk)
	case "sqlite":
		s, err := sqlstore.New(sqlstore.Config{Path: dbPath, WAL: true}, clk, ids)
		if err != nil {
			return nil, nil, nil, err
		}
		store = s
		cleanup = func() { s.Close() }
	default:
		return nil, nil, nil, fmt.Errorf("unknown backend %q", backendType)
	}

	journal := workflow.NewEventJournal(store)
	broker := workflow.NewBroker()

	handlers := map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
		workflow.StepHTTP:  workflow.NewHTTPHandler(httpclient.New(httpclient.DefaultConfig())),
	}

	opts := []workflow.ExecutorOption{
		workflow.WithMetrics(metrics.Collector{}),
		workflow.WithLogger(log.WithComponent(logger, "executor")),
	}
	if maxParallel > 0 {
		opts = append(opts, workflow.WithMaxParallel(maxParallel))
	}
	executor := workflow.NewExecutor(store, journal, broker, handlers, opts...)

	engine := workflow.NewEngine(store, journal, broker, executor, ids)
	return engine, executor, cleanup, nil
}
