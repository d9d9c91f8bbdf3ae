package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/humidistat/pkg/config"
	"github.com/itohio/humidistat/pkg/device"
	"github.com/itohio/humidistat/pkg/logger"
	"github.com/itohio/humidistat/pkg/metrics"
	"github.com/itohio/humidistat/pkg/sample"
	"github.com/itohio/humidistat/pkg/store"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use mocked device instead of serial port")
		logLevelFlag       = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
		metricsFlag        = flag.String("metrics", "", "Prometheus listen address override (e.g., :9100)")
		dbFlag             = flag.String("db", "", "SQLite database path override")
		tsvFlag            = flag.String("tsv", "", "Tab-separated log file path override")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
		listPortsFlag      = flag.Bool("list-ports", false, "List available serial ports and exit")
		historyFlag        = flag.Int("history", 0, "Print at most N stored samples from the database and exit")
		exportFlag         = flag.String("export", "", "Export stored samples (at most -history, if set) to an XLSX file and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *logLevelFlag != "" {
		cfg.Logging.Level = *logLevelFlag
	}
	if *metricsFlag != "" {
		cfg.Metrics.Listen = *metricsFlag
	}
	if *dbFlag != "" {
		cfg.Store.SQLitePath = *dbFlag
	}
	if *tsvFlag != "" {
		cfg.Store.TSVPath = *tsvFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Store.AverageSamples = *averageSamplesFlag
	}

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *listPortsFlag:
		err = listPorts(os.Stdout)
	case *exportFlag != "":
		err = exportHistory(ctx, cfg.Store.SQLitePath, *historyFlag, *exportFlag)
	case *historyFlag > 0:
		err = printHistory(ctx, cfg.Store.SQLitePath, *historyFlag, os.Stdout)
	default:
		err = serve(ctx, cfg, *mockFlag, log)
	}
	if err != nil {
		log.Errorw("humidistat failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

// serve connects the device and runs the data pipeline until ctx is canceled.
func serve(ctx context.Context, cfg *config.Config, mock bool, log *logger.Logger) error {
	var dev device.Device
	if mock {
		dev = device.NewMock(cfg, log)
		log.Infow("using mocked device")
	} else {
		dev = device.New(cfg.Serial.Port, cfg.Serial.BaudRate, device.DefaultBufferSize, log)
		log.Infow("using serial port", "port", cfg.Serial.Port, "baud", cfg.Serial.BaudRate)
	}

	sink, err := openSinks(cfg.Store)
	if err != nil {
		return err
	}
	if sink != nil {
		defer func() {
			if err := sink.Close(); err != nil {
				log.Warnw("closing stores", "error", err)
			}
		}()
	}

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		srv := startMetricsServer(cfg.Metrics.Listen, m, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		dev:     dev,
		metrics: m,
		sink:    sink,
	}
	return a.run(ctx, os.Stdin)
}

// openSinks opens the configured stores. Returns nil when none is configured.
func openSinks(cfg config.StoreConfig) (store.Sink, error) {
	var sinks store.Multi
	if cfg.SQLitePath != "" {
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
	}
	if cfg.TSVPath != "" {
		tsv, err := store.CreateTSV(cfg.TSVPath, cfg.TSVComments)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, tsv)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func listPorts(w io.Writer) error {
	ports, err := device.Ports()
	if err != nil {
		return err
	}
	for _, p := range ports {
		if p.Description != "" {
			fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
		} else {
			fmt.Fprintln(w, p.Name)
		}
	}
	return nil
}

// exportHistory writes stored samples to an XLSX file at path.
func exportHistory(ctx context.Context, dbPath string, maxPoints int, path string) error {
	samples, err := loadHistory(ctx, dbPath, maxPoints)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export %q: %w", path, err)
	}
	if err := store.ExportXLSX(f, samples); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func loadHistory(ctx context.Context, path string, maxPoints int) ([]sample.Sample, error) {
	if path == "" {
		return nil, fmt.Errorf("no database configured")
	}
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return db.History(ctx, time.Time{}, time.Time{}, maxPoints)
}

// printHistory writes stored samples as a tab-separated log to w.
func printHistory(ctx context.Context, path string, maxPoints int, w io.Writer) error {
	samples, err := loadHistory(ctx, path, maxPoints)
	if err != nil {
		return err
	}

	// Hide Close from the TSV sink so it does not close w.
	out := store.NewTSV(struct{ io.Writer }{w}, fmt.Sprintf("history from %s", path))
	for _, s := range samples {
		if err := out.Append(ctx, s); err != nil {
			return err
		}
	}
	return out.Close()
}
