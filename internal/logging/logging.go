package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

type Options struct {
	Level   string
	LogsDir string
	AppName string
	// GraylogAddress enables GELF output when set.
	GraylogAddress string
	// Console defaults to os.Stdout.
	Console io.Writer
}

// Setup builds the process logger: colored console output, a plain-text
// session file under LogsDir and optionally Graylog. The returned closer
// flushes and closes the file and GELF writers.
func Setup(opts Options, sessionStart time.Time) (zerolog.Logger, func() error, error) {
	if opts.AppName == "" {
		opts.AppName = "arrowdash"
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}

	if err := os.MkdirAll(opts.LogsDir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating logs dir: %w", err)
	}
	path := LogFilePath(opts.LogsDir, opts.AppName, sessionStart)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}
	closers := []io.Closer{file}

	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		// write console format with colors to console
		zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: time.RFC3339,
		},
		zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	}

	if opts.GraylogAddress != "" {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			_ = file.Close()
			return zerolog.Nop(), nil, fmt.Errorf("connecting to graylog: %w", err)
		}
		writers = append(writers, gw)
		closers = append(closers, gw)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().
		Timestamp().
		Str("app", opts.AppName).
		Logger()

	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	logger.Info().Str("loglevel", zerolog.GlobalLevel().String()).Str("file", path).Msg("Logging set up")
	return logger, closeAll, nil
}

// Sampled returns a logger for high-frequency events. Debug and trace
// entries pass 5 per 10 seconds, then 1 in 100; info and above are never
// dropped.
func Sampled(logger zerolog.Logger) zerolog.Logger {
	burst := &zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	}
	return logger.With().Bool("sampled", true).Logger().Sample(zerolog.LevelSampler{
		TraceSampler: burst,
		DebugSampler: burst,
	})
}
