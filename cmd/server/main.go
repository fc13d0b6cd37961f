package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"lmdPortal/internal/config"
	"lmdPortal/internal/db"
	"lmdPortal/internal/events"
	grpcserver "lmdPortal/internal/grpc"
	"lmdPortal/internal/httpapi"
	"lmdPortal/internal/logging"
	"lmdPortal/internal/scheduler"
	"lmdPortal/internal/service"
	"lmdPortal/repository"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	dev        bool
	httpAddr   string
	grpcAddr   string
	dbDriver   string
	dbDSN      string
	logLevel   string
	logDir     string
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("lmd-portal", pflag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file (default: $LMD_CONFIG)")
	fs.BoolVar(&o.dev, "dev", false, "use a built-in JWT secret when JWT_SECRET is unset (development only)")
	fs.StringVar(&o.httpAddr, "http-addr", "", "REST listen address")
	fs.StringVar(&o.grpcAddr, "grpc-addr", "", "gRPC listen address")
	fs.StringVar(&o.dbDriver, "db-driver", "", "database driver: sqlite or postgres")
	fs.StringVar(&o.dbDSN, "db-dsn", "", "database DSN")
	fs.StringVar(&o.logLevel, "log-level", "", "log level")
	fs.StringVar(&o.logDir, "log-dir", "", "directory for rotated JSON log files")
	return fs
}

// loadConfig reads the configuration and applies flags that were set
// explicitly, which take precedence over file and environment values.
func loadConfig(args []string) (*config.Config, error) {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	load := config.Load
	if o.dev {
		load = config.LoadWithDefaults
	}
	cfg, err := load(o.configPath)
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"http-addr": &cfg.HTTP.Address,
		"grpc-addr": &cfg.GRPC.Address,
		"db-driver": &cfg.Database.Driver,
		"db-dsn":    &cfg.Database.DSN,
		"log-level": &cfg.Log.Level,
		"log-dir":   &cfg.Log.Directory,
	}
	values := map[string]string{
		"http-addr": o.httpAddr,
		"grpc-addr": o.grpcAddr,
		"db-driver": o.dbDriver,
		"db-dsn":    o.dbDSN,
		"log-level": o.logLevel,
		"log-dir":   o.logDir,
	}
	for name, dst := range overrides {
		if fs.Changed(name) {
			*dst = values[name]
		}
	}
	return cfg, cfg.Validate()
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("configuration loaded", zap.Stringer("config", cfg))

	// Open DB
	d, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := db.Close(d); err != nil {
			log.Warn("close db", zap.Error(err))
		}
	}()

	publisher, err := events.New(cfg.Events.AMQPURL, cfg.Events.Exchange, log)
	if err != nil {
		return fmt.Errorf("connect event broker: %w", err)
	}
	defer func() { _ = publisher.Close() }()

	svc := service.New(service.Deps{Store: repository.NewStore(d), Events: publisher, Log: log})

	stopHTTP, err := httpapi.Start(cfg, svc, log)
	if err != nil {
		return fmt.Errorf("start http: %w", err)
	}
	log.Info("REST server listening", zap.String("addr", cfg.HTTP.Address))

	stopGRPC, err := grpcserver.StartGRPC(cfg, svc, log)
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}
	log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Address))

	var stopScheduler func(context.Context) error
	if cfg.Retention.PruneSchedule != "" {
		pruner := scheduler.NewHistoryPruneWorker(log, svc.Audit, cfg.Retention.PruneSchedule, cfg.Retention.APIHistory)
		stopScheduler, err = scheduler.NewOrchestrator(log, pruner).Start(context.Background())
		if err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	log.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stopHTTP(ctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := stopGRPC(ctx); err != nil {
		log.Warn("grpc shutdown", zap.Error(err))
	}
	if stopScheduler != nil {
		if err := stopScheduler(ctx); err != nil {
			log.Warn("scheduler shutdown", zap.Error(err))
		}
	}
	return nil
}
