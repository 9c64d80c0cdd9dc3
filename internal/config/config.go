package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

type MQTT struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

type Datadog struct {
	Enabled   bool     `json:"enabled"`
	AgentAddr string   `json:"agent_addr"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
}

type Config struct {
	DBFile     string
	ConfigFile string
	LogFile    string
	LogLevel   zerolog.Level

	APIPort             int    `json:"api_port"`
	SyncIntervalSeconds int    `json:"sync_interval_seconds"`
	NtfyTopic           string `json:"ntfy_topic"`

	MQTT    MQTT               `json:"mqtt"`
	Datadog Datadog            `json:"datadog"`
	Rooms   []model.RoomConfig `json:"rooms"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.DBFile, "db-file", "data/trv.db", "Path to sqlite database file")
	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Path to log file (stderr if empty)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

const (
	DefaultCloseThreshold   = 32.0
	DefaultOpenThreshold    = 30.0
	DefaultMaxValvePosition = 100
	DefaultStep             = 0.5
	DefaultMinTemp          = 5.0
	DefaultMaxTemp          = 30.0
	DefaultTargetTemp       = 20.0
)

func (cfg *Config) applyDefaults() {
	if cfg.APIPort == 0 {
		cfg.APIPort = 8090
	}
	if cfg.SyncIntervalSeconds == 0 {
		cfg.SyncIntervalSeconds = 300
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "trv-controller"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "zigbee2mqtt"
	}

	for i := range cfg.Rooms {
		ApplyRoomDefaults(&cfg.Rooms[i])
	}
}

// ApplyRoomDefaults fills zero-valued room fields with controller defaults.
func ApplyRoomDefaults(room *model.RoomConfig) {
	if room.CloseThreshold == 0 {
		room.CloseThreshold = DefaultCloseThreshold
	}
	if room.OpenThreshold == 0 {
		room.OpenThreshold = DefaultOpenThreshold
	}
	if room.MaxValvePosition == 0 {
		room.MaxValvePosition = DefaultMaxValvePosition
	}
	if room.Step == 0 {
		room.Step = DefaultStep
	}
	if room.MinTemp == 0 {
		room.MinTemp = DefaultMinTemp
	}
	if room.MaxTemp == 0 {
		room.MaxTemp = DefaultMaxTemp
	}
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.MQTT.Broker == "" {
		problems = append(problems, "mqtt.broker is required")
	}

	seenRooms := map[string]bool{}
	seenSensors := map[string]string{}

	for i := range cfg.Rooms {
		room := &cfg.Rooms[i]

		if seenRooms[room.ID] {
			problems = append(problems, fmt.Sprintf("duplicate room id %q", room.ID))
		}
		seenRooms[room.ID] = true

		if err := room.Validate(); err != nil {
			problems = append(problems, err.Error())
		}

		for _, sensor := range []string{room.TempSensor, room.ReturnSensor, room.WindowSensor} {
			if sensor == "" {
				continue
			}
			if other, exists := seenSensors[sensor]; exists {
				problems = append(problems, fmt.Sprintf("rooms %q and %q both use sensor %q", room.ID, other, sensor))
			} else {
				seenSensors[sensor] = room.ID
			}
		}
	}

	if len(problems) > 0 {
		panic("Invalid configuration: " + strings.Join(problems, "; "))
	}
}
