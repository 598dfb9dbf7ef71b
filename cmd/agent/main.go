// Command agent is the worker that runs next to the design software. It
// polls the coordinator for jobs, renders claimed order batches through an
// external command, scans template folders, and reports back.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/autodesign-coordinator/internal/agent"
	"github.com/tbourn/autodesign-coordinator/internal/config"
	"github.com/tbourn/autodesign-coordinator/internal/observability"
	"github.com/tbourn/autodesign-coordinator/internal/sysutil"
	"github.com/tbourn/autodesign-coordinator/internal/utils"
)

var version = "dev"

// settings is read from AUTODESIGN_* environment variables.
type settings struct {
	CoordinatorURL string        `envconfig:"COORDINATOR_URL" default:"http://localhost:8080/api/v1"`
	AgentToken     string        `envconfig:"AGENT_TOKEN" required:"true"`
	AgentID        string        `envconfig:"AGENT_ID"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	OutputRoot     string        `envconfig:"OUTPUT_ROOT" default:"./output"`
	RenderCommand  string        `envconfig:"RENDER_COMMAND"`
	RenderArgs     string        `envconfig:"RENDER_ARGS"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool          `envconfig:"LOG_PRETTY" default:"true"`

	OTELEnabled  bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	OTELInsecure bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	OTELSample   float64 `envconfig:"OTEL_TRACES_SAMPLER_ARG" default:"1.0"`
}

func main() {
	_ = godotenv.Load()

	var s settings
	if err := envconfig.Process("AUTODESIGN", &s); err != nil {
		sysutil.SetupLogger(nil, "info", true, "agent")
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := sysutil.SetupLogger(nil, s.LogLevel, s.LogPretty, "agent")
	id := sysutil.AgentName(s.AgentID, os.Hostname)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, config.OTELConfig{
		Enabled:     s.OTELEnabled,
		Endpoint:    s.OTELEndpoint,
		Insecure:    s.OTELInsecure,
		ServiceName: "autodesign-agent",
		SampleRatio: s.OTELSample,
	}, observability.RoleAgent, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if s.RenderCommand == "" {
		log.Warn().Msg("RENDER_COMMAND not set; order batches will be reported as failed")
	}

	w := &agent.Worker{
		Source:     agent.NewClient(s.CoordinatorURL, s.AgentToken, id, s.HTTPTimeout),
		Renderer:   agent.CommandRenderer{Command: s.RenderCommand, Args: utils.SplitCSV(s.RenderArgs)},
		OutputRoot: s.OutputRoot,
		Interval:   s.PollInterval,
		Log:        logger.With().Str("agent_id", id).Logger(),
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped")
	}
}
