package replay

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"poolquest/config"
	"poolquest/core"
	"poolquest/indexer"
	"poolquest/native/oracle"
	"poolquest/observability/logging"
	telemetry "poolquest/observability/otel"
)

// Main replays a JSON-lines log of pool activity against the configured
// state directory.
func Main() error {
	var (
		cfgPath    string
		input      string
		logLevel   string
		logFile    string
		perSecond  float64
		exportPath string
	)
	flag.StringVar(&cfgPath, "config", "poolquest.toml", "path to poolquest config")
	flag.StringVar(&input, "input", "-", "replay log to read, - for stdin")
	flag.StringVar(&logLevel, "log-level", "info", "minimum log level")
	flag.StringVar(&logFile, "log-file", "", "write logs to a rotated file instead of stdout")
	flag.Float64Var(&perSecond, "rate", 0, "maximum records applied per second, 0 for unlimited")
	flag.StringVar(&exportPath, "export", "", "write the event journal to this parquet file after the replay")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	var out io.Writer = os.Stdout
	if strings.TrimSpace(logFile) != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		defer rotator.Close()
		out = rotator
	}
	logger := logging.SetupWriter(out, cfg.ServiceName, cfg.Environment, logging.ParseLevel(logLevel))
	logger = logger.With(slog.String("run_id", uuid.NewString()))

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv(cfg.ServiceName, cfg.Environment))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := &oracle.StaticFeed{}
	clock := NewClock()
	proc, err := core.Open(ctx, cfg, feed, core.WithClock(clock.Now))
	if err != nil {
		return fmt.Errorf("open processor: %w", err)
	}
	defer func() { _ = proc.Close() }()

	reader, closeInput, err := openInput(input)
	if err != nil {
		return err
	}
	defer closeInput()

	replayer := New(proc, feed, logger)
	replayer.SetClock(clock)
	replayer.SetRate(perSecond)
	summary, err := replayer.Run(ctx, reader)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	total, err := proc.TotalPoints()
	if err != nil {
		return err
	}
	rejected := 0
	for _, n := range summary.Rejected {
		rejected += n
	}
	logger.Info("replay finished",
		slog.Int("lines", summary.Lines),
		slog.Int("applied", summary.Applied),
		slog.Int("rejected", rejected),
		slog.Any("rejections", summary.Rejected),
		slog.String("total_points", total.Dec()))

	if exportPath != "" {
		if cfg.IndexerPath == "" {
			return fmt.Errorf("export requires IndexerPath to be configured")
		}
		journal, err := indexer.OpenFile(cfg.IndexerPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		rows, err := journal.ExportParquet(ctx, exportPath)
		if err != nil {
			return err
		}
		logger.Info("journal exported", slog.String("path", exportPath), slog.Int("rows", rows))
	}
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if strings.TrimSpace(path) == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open replay log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
