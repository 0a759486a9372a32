package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	HTTPPort int
	GRPCPort int // 0 disables the gRPC health server

	LogLevel  string
	LogFormat string

	FarmFile      string
	AuditCapacity int
	HistorySize   int
	CommandTTL    time.Duration

	SendTimeout  time.Duration
	PingInterval time.Duration
	AllowOrigins []string

	// MQTT is disabled when MQTTHost is empty
	MQTTHost         string
	MQTTPort         int
	MQTTUser         string
	MQTTPassword     string
	MQTTClientID     string
	ReadingTopic     string
	StateChangeTopic string

	// Influx export is disabled when InfluxURL is empty
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string
	WriteBatch    int
	FlushInterval time.Duration
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("config: not an integer, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("config: not a duration, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// loadConfig reads flags, then an optional .env file, then the environment.
// Flags given explicitly win over the environment.
func loadConfig(args []string) (Config, error) {
	fs := pflag.NewFlagSet("twin", pflag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "dotenv file to load if present")
	farm := fs.String("farm", "", "YAML farm layout (zones and sensors)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "", "text or json")
	httpPort := fs.Int("http-port", 0, "HTTP listen port")
	grpcPort := fs.Int("grpc-port", -1, "gRPC health port, 0 to disable")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := Config{
		HTTPPort: getenvInt("HTTP_PORT", 8000),
		GRPCPort: getenvInt("GRPC_PORT", 50051),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),

		FarmFile:      getenv("FARM_CONFIG_PATH", ""),
		AuditCapacity: getenvInt("AUDIT_CAPACITY", 50),
		HistorySize:   getenvInt("HISTORY_SIZE", 100),
		CommandTTL:    getenvDuration("COMMAND_DEDUP_TTL", 10*time.Minute),

		SendTimeout:  getenvDuration("WS_SEND_TIMEOUT", 2*time.Second),
		PingInterval: getenvDuration("WS_PING_INTERVAL", 30*time.Second),
		AllowOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")),

		MQTTHost:         getenv("MQTT_HOST", ""),
		MQTTPort:         getenvInt("MQTT_PORT", 1883),
		MQTTUser:         getenv("MQTT_USER", "guest"),
		MQTTPassword:     getenv("MQTT_PASSWORD", "guest"),
		MQTTClientID:     getenv("MQTT_CLIENT_ID", getenv("HOSTNAME", "farm-twin")),
		ReadingTopic:     getenv("READING_SUB_TOPIC", "sensor/reading/#"),
		StateChangeTopic: getenv("EVENT_STATECHANGE_TEMPLATE", "event/StateChange/{zone}"),

		InfluxURL:     getenv("INFLUX_URL", ""),
		InfluxToken:   os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:     getenv("INFLUX_ORG", "farm"),
		InfluxBucket:  getenv("INFLUX_BUCKET", "readings"),
		WriteBatch:    getenvInt("WRITE_BATCH_SIZE", 10),
		FlushInterval: getenvDuration("WRITE_FLUSH_INTERVAL", 200*time.Millisecond),
	}

	if *farm != "" {
		cfg.FarmFile = *farm
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if *httpPort > 0 {
		cfg.HTTPPort = *httpPort
	}
	if *grpcPort >= 0 {
		cfg.GRPCPort = *grpcPort
	}
	return cfg, nil
}
