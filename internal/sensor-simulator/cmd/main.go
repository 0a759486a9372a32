package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/logging"
	sensorSimulator "github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/sensor-simulator"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/broker"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("sensor-sim", pflag.ContinueOnError)
	interval := fs.Duration("interval", 3*time.Second, "publish interval")
	profilesPath := fs.String("profiles", "", "YAML sensor profiles (default: built-in farm)")
	httpURL := fs.String("http-url", "", "post to the twin HTTP ingress instead of MQTT, e.g. http://localhost:8000")
	mqttHost := fs.String("mqtt-host", getenv("MQTT_HOST", "localhost"), "MQTT broker host")
	mqttPort := fs.Int("mqtt-port", 1883, "MQTT broker port")
	clientID := fs.String("client-id", getenv("MQTT_CLIENT_ID", "sensor-simulator"), "MQTT client ID")
	stateTopic := fs.String("state-topic", getenv("EVENT_STATECHANGE_SUB", "event/StateChange/#"), "valve command topic filter")
	logLevel := fs.String("log-level", getenv("LOG_LEVEL", "info"), "debug, info, warn or error")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "sensor-sim: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(*logLevel, getenv("LOG_FORMAT", "text"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profiles := sensorSimulator.DefaultProfiles()
	if *profilesPath != "" {
		p, err := sensorSimulator.LoadProfiles(*profilesPath)
		if err != nil {
			logger.Error("sensor-sim: profiles", "err", err)
			os.Exit(1)
		}
		profiles = p
	}

	var (
		publisher sensorSimulator.Publisher
		states    sensorSimulator.StateSource
	)
	if *httpURL != "" {
		publisher = sensorSimulator.NewHTTPPublisher(*httpURL, 5*time.Second)
		logger.Info("sensor-sim: publishing over HTTP", "url", *httpURL)
	} else {
		client, err := broker.Connect(ctx, broker.Config{
			Host:     *mqttHost,
			Port:     *mqttPort,
			User:     getenv("MQTT_USER", "guest"),
			Password: getenv("MQTT_PASSWORD", "guest"),
			ClientID: *clientID,
		}, logger)
		if err != nil {
			logger.Error("sensor-sim: mqtt connect", "err", err)
			os.Exit(1)
		}
		publisher = broker.NewPublisher(client)
		states = broker.NewConsumer(client, []string{*stateTopic}, nil, logger)
	}

	generator := sensorSimulator.NewDataGenerator(nil, nil)
	sim := sensorSimulator.NewSensorSimulator(states, publisher, generator, profiles, logger)
	sim.Start(ctx, *interval)
}
