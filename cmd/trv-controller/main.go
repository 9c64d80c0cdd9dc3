package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/trv-controller/db"
	"github.com/thatsimonsguy/trv-controller/internal/actuator"
	"github.com/thatsimonsguy/trv-controller/internal/api"
	"github.com/thatsimonsguy/trv-controller/internal/config"
	"github.com/thatsimonsguy/trv-controller/internal/coordinator"
	"github.com/thatsimonsguy/trv-controller/internal/engine"
	"github.com/thatsimonsguy/trv-controller/internal/ingest"
	"github.com/thatsimonsguy/trv-controller/internal/logging"
	"github.com/thatsimonsguy/trv-controller/internal/metrics"
	"github.com/thatsimonsguy/trv-controller/internal/notify"
	"github.com/thatsimonsguy/trv-controller/internal/sensors"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("db_file", cfg.DBFile).
		Str("broker", cfg.MQTT.Broker).
		Int("rooms", len(cfg.Rooms)).
		Msg("Starting TRV controller")

	metrics.Init(cfg.Datadog)
	notify.Init(cfg.NtfyTopic)

	conn, err := db.Open(cfg.DBFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer conn.Close()

	if err := db.SeedRooms(conn, cfg.Rooms, config.DefaultTargetTemp); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed rooms")
	}

	records, err := db.GetAllRooms(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load rooms")
	}

	client := connectMQTT(cfg.MQTT)
	defer client.Disconnect(250)

	deps := engine.Deps{
		Actuator:     actuator.NewMQTT(client, cfg.MQTT.TopicPrefix),
		Notifier:     notify.Sender{},
		SyncInterval: time.Duration(cfg.SyncIntervalSeconds) * time.Second,
	}

	coord := coordinator.New(sensors.NewView(), deps, db.NewStore(conn))
	for _, record := range records {
		if err := coord.AddRoom(record.Config, record.Runtime); err != nil {
			log.Fatal().Err(err).Str("room", record.Config.ID).Msg("Failed to start room")
		}
	}
	defer coord.Shutdown()

	sub := ingest.New(client, cfg.MQTT.TopicPrefix, coord)
	if err := sub.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to sensors")
	}
	defer sub.Stop()

	go func() {
		if err := api.NewServer(coord).Start(cfg.APIPort); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("Shutting down")
}

// connectMQTT dials the broker shared by the actuator and the sensor ingest.
// Subscriptions are re-established by paho on reconnect.
func connectMQTT(cfg config.MQTT) paho.Client {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetOnConnectHandler(func(paho.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Fatal().Str("broker", cfg.Broker).Msg("MQTT connect timed out")
	}
	if err := token.Error(); err != nil {
		log.Fatal().Err(err).Str("broker", cfg.Broker).Msg("MQTT connect failed")
	}
	return client
}
