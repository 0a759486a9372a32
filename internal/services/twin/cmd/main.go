package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/logging"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/archive"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/audit"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/ingestion"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/realtime"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/twin"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/zonestore"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/broker"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/dedup"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "twin: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("twin: exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// --- farm layout ---
	farm := zonestore.DefaultFarm()
	if cfg.FarmFile != "" {
		loaded, err := zonestore.LoadFarm(cfg.FarmFile)
		if err != nil {
			return fmt.Errorf("farm layout: %w", err)
		}
		farm = loaded
		logger.Info("twin: farm layout loaded", "path", cfg.FarmFile, "zones", len(farm.Zones))
	}
	zones := zonestore.New(farm.Zones, logger)

	auditLog := audit.New(cfg.AuditCapacity,
		audit.WithLogger(logger),
		audit.WithMetrics(audit.NewMetrics(reg)))

	registry := realtime.NewRegistry(
		realtime.WithSendTimeout(cfg.SendTimeout),
		realtime.WithLogger(logger),
		realtime.WithMetrics(realtime.NewMetrics(reg)))

	app := &twin.App{
		Zones:        zones,
		Audit:        auditLog,
		Registry:     registry,
		Sensors:      farm.Sensors,
		Logger:       logger,
		AllowOrigins: cfg.AllowOrigins,
		PingInterval: cfg.PingInterval,
	}

	opts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithMetrics(ingestion.NewMetrics(reg)),
		ingestion.WithHistorySize(cfg.HistorySize),
		ingestion.WithCommandDeduper(dedup.New(cfg.CommandTTL, 10000)),
	}

	// --- InfluxDB export (optional) ---
	var writer *archive.Writer
	if cfg.InfluxURL != "" {
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()

		acfg := archive.DefaultConfig()
		acfg.BatchSize = cfg.WriteBatch
		acfg.FlushInterval = cfg.FlushInterval
		writer = archive.NewWriter(influx.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket), acfg, logger, archive.NewMetrics(reg))
		writer.Start(ctx)
		opts = append(opts, ingestion.WithArchiver(writer))
		app.Archive = writer
		logger.Info("twin: influx export enabled", "url", cfg.InfluxURL, "bucket", cfg.InfluxBucket)
	}

	// --- MQTT (optional) ---
	var consumer *broker.Consumer
	if cfg.MQTTHost != "" {
		client, err := broker.Connect(ctx, broker.Config{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
		}, logger)
		if err != nil {
			return err
		}
		app.MQTT = client
		opts = append(opts, ingestion.WithDeviceNotifier(
			twin.NewDeviceNotifier(broker.NewPublisher(client), cfg.StateChangeTopic)))
		consumer = broker.NewConsumer(client, splitList(cfg.ReadingTopic), nil, logger)
	}

	app.Pipeline = ingestion.New(zones, auditLog, registry, opts...)
	if consumer != nil {
		consumer.SetHandler(app.Pipeline.MQTTHandler(ctx))
		go consumer.Consume(ctx)
	}

	// --- gRPC health ---
	var grpcLis net.Listener
	grpcSrv, hs := twin.NewGRPCServer()
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcLis = lis
		go app.WatchReadiness(ctx, hs, 5*time.Second)
		go func() {
			logger.Info("twin: gRPC health listening", "addr", lis.Addr().String())
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("twin: grpc server error", "err", err)
			}
		}()
	}

	// --- HTTP ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           twin.NewHTTPMux(app, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("twin: HTTP listening", "addr", srv.Addr, "zones", zones.Len(),
			"origins", strings.Join(cfg.AllowOrigins, ","))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	if grpcLis != nil {
		grpcSrv.GracefulStop()
	}
	registry.CloseAll()
	if writer != nil {
		writer.Close()
	}
	logger.Info("twin: shutdown complete", "audit_blocks", auditLog.TotalCount())
	return runErr
}
