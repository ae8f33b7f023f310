/*
Copyright 2025 ForgeCI Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/event"
	"github.com/org/forgeci/pkg/eventstream"
	"github.com/org/forgeci/pkg/execctx"
	"github.com/org/forgeci/pkg/executor"
	"github.com/org/forgeci/pkg/faulttolerance"
	"github.com/org/forgeci/pkg/handler"
	"github.com/org/forgeci/pkg/launcher"
	"github.com/org/forgeci/pkg/logging"
	"github.com/org/forgeci/pkg/metrics"
	"github.com/org/forgeci/pkg/parser"
	"github.com/org/forgeci/pkg/pipeline"
	"github.com/org/forgeci/pkg/stash"
)

// Exit codes per the standalone runner's documented contract: 0 success,
// 1 failure, 124 timeout, 130 cancelled (the shell conventions for
// SIGALRM and SIGINT respectively).
const (
	exitSuccess  = 0
	exitFailure  = 1
	exitTimeout  = 124
	exitCanceled = 130
)

var (
	runWorkDir        string
	runArtifactDir    string
	runStashDir       string
	runFaultTolerance bool
	runMetricsAddr    string
	runEventsAddr     string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Parse a pipeline definition and drive it through the execution engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runPipeline(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().StringVar(&runWorkDir, "workdir", ".", "Workspace directory steps execute in")
	cmd.Flags().StringVar(&runArtifactDir, "artifact-dir", "artifacts", "Directory ArchiveArtifacts copies matched files into")
	cmd.Flags().StringVar(&runStashDir, "stash-dir", ".pipelinerunner/stash", "Base directory for stash bundles")
	cmd.Flags().BoolVar(&runFaultTolerance, "fault-tolerance", false, "Wrap stage execution in the circuit-breaker/retry/bulkhead envelope")
	cmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().StringVar(&runEventsAddr, "events-addr", "", "If set, serve a WebSocket lifecycle-event stream on this address (e.g. :9091)")

	return cmd
}

// runPipeline builds the executor stack and drives one pipeline run to
// completion, returning the process exit code the caller should use.
func runPipeline(ctx context.Context, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return exitFailure, fmt.Errorf("reading %s: %w", path, err)
	}

	p, err := parser.Parse(content)
	if err != nil {
		return exitFailure, fmt.Errorf("invalid pipeline: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return exitFailure, fmt.Errorf("initializing logger: %w", err)
	}

	cfg := config.Default()

	bus := event.NewBus(256)
	sink := newMetricsSink()

	stopServers, err := startAuxServers(bus, logger)
	if err != nil {
		return exitFailure, err
	}
	defer stopServers()

	stashStore, err := stash.NewLocalStore(runStashDir)
	if err != nil {
		return exitFailure, fmt.Errorf("initializing stash store: %w", err)
	}

	l := launcher.NewLocal()
	registry := handler.NewDefaultRegistry()
	dispatchers := executor.NewDispatchers(cfg.Dispatchers)
	defer dispatchers.Close()

	stepExec := executor.NewExecutor(registry, dispatchers, cfg.DefaultStepTimeout)
	stageExec := executor.NewStageExecutor(stepExec, bus)

	pipelineExec := executor.NewPipelineExecutor(stageExec, bus, sink, cfg.MaxConcurrentPipelines, cfg.GlobalTimeout, cfg.DefaultFailFast)
	if runFaultTolerance {
		cfg.FaultTolerance.Enabled = true
		pipelineExec.Envelope = faulttolerance.New(cfg.FaultTolerance)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return exitFailure, err
	}
	if runWorkDir != "." {
		workDir = runWorkDir
	}

	ectx := execctx.ExecutionContext{
		WorkDir:     workDir,
		Environment: environMap(),
		Logger:      logger,
		ExecutionID: uuid.NewString(),
		Workspace:   workDir,
		ArtifactDir: runArtifactDir,
		Launcher:    l,
		Metrics:     sink,
		StepRunner:  stepExec,
		StashStore:  stashStore,
		StartedAt:   time.Now(),
		Metadata:    map[string]any{},
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := pipelineExec.Run(sigCtx, p, ectx)

	logger.Info("pipeline finished", "id", result.PipelineID, "status", result.Status, "duration", result.Duration())

	switch result.Status {
	case pipeline.PipelineSuccess, pipeline.PipelinePartialSuccess:
		return exitSuccess, nil
	case pipeline.PipelineTimeout:
		return exitTimeout, nil
	case pipeline.PipelineCancelled:
		return exitCanceled, nil
	default:
		return exitFailure, nil
	}
}

func newLogger() (logr.Logger, error) {
	if verbose {
		return logging.NewDevelopment()
	}
	return logging.NewProduction()
}

// environMap converts os.Environ()'s "KEY=VALUE" list into the map shape
// ExecutionContext.Environment expects.
func environMap() map[string]string {
	entries := os.Environ()
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				out[e[:i]] = e[i+1:]
				break
			}
		}
	}
	return out
}

func newMetricsSink() metrics.Sink {
	if runMetricsAddr == "" {
		return metrics.NoopSink{}
	}
	return metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
}

// startAuxServers starts the optional metrics/event-stream HTTP listeners
// a caller opted into via --metrics-addr/--events-addr, returning a
// cleanup func that shuts them both down.
func startAuxServers(bus *event.Bus, logger logr.Logger) (func(), error) {
	var servers []*http.Server

	if runMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: runMetricsAddr, Handler: mux}
		servers = append(servers, srv)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(err, "metrics server failed")
			}
		}()
	}

	if runEventsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/events", eventstream.NewHandler(bus, logger))
		srv := &http.Server{Addr: runEventsAddr, Handler: mux}
		servers = append(servers, srv)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(err, "event stream server failed")
			}
		}()
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
	}, nil
}
