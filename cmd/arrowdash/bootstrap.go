package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arrowdash/engine/internal/config"
	"github.com/arrowdash/engine/internal/logging"
	intOtel "github.com/arrowdash/engine/internal/otel"
	"github.com/rs/zerolog"
)

// environment is the process-wide state set up before any command runs.
type environment struct {
	logger      zerolog.Logger
	closeLog    func() error
	otel        *intOtel.Provider
	metricsFile *os.File
}

func bootstrap(configDir string) (*environment, error) {
	sessionStart := time.Now()

	cfgErr := config.Load(configDir)
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrConfigNotFound) {
		return nil, cfgErr
	}

	opts := logging.Options{
		Level:   config.GetString("logLevel"),
		LogsDir: config.GetString("logsDir"),
	}
	if config.GetBool("graylog.enabled") {
		opts.GraylogAddress = config.GetString("graylog.address")
	}
	logger, closeLog, err := logging.Setup(opts, sessionStart)
	if err != nil {
		return nil, err
	}
	env := &environment{logger: logger, closeLog: closeLog}

	if cfgErr != nil {
		logger.Warn().Err(cfgErr).Msg("Failed to load config, using defaults!")
	} else {
		logger.Info().Str("dir", configDir).Msg("Loaded config")
	}

	oc := config.GetOTelConfig()
	otelCfg := intOtel.Config{
		Enabled:        oc.Enabled,
		ServiceName:    oc.ServiceName,
		ExportInterval: oc.ExportInterval,
	}
	if oc.Enabled {
		path := filepath.Join(opts.LogsDir, fmt.Sprintf("arrowdash.metrics.%s.json", sessionStart.Format("20060102_150405")))
		env.metricsFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = env.close()
			return nil, fmt.Errorf("opening metrics file: %w", err)
		}
		otelCfg.MetricWriter = env.metricsFile
	}

	env.otel, err = intOtel.New(otelCfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize OTel provider")
		env.otel, _ = intOtel.New(intOtel.Config{})
	} else if env.otel.Enabled() {
		logger.Info().Dur("interval", oc.ExportInterval).Msg("OTel metrics enabled")
	}
	env.otel.Install()

	return env, nil
}

func (e *environment) close() error {
	if e.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.otel.Flush(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("OTel flush failed")
		}
		if err := e.otel.Shutdown(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("OTel shutdown failed")
		}
		cancel()
	}
	if e.metricsFile != nil {
		_ = e.metricsFile.Close()
	}
	if e.closeLog != nil {
		return e.closeLog()
	}
	return nil
}
