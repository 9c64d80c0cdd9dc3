package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

func validConfig() Config {
	return Config{
		MQTT: MQTT{Broker: "tcp://localhost:1883"},
		Rooms: []model.RoomConfig{
			{
				ID:           "living",
				Name:         "Living Room",
				TempSensor:   "living_temp",
				TRV:          "living_trv",
				ReturnSensor: "living_return",
			},
		},
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.applyDefaults()

	assert.Equal(t, 8090, cfg.APIPort)
	assert.Equal(t, 300, cfg.SyncIntervalSeconds)
	assert.Equal(t, "trv-controller", cfg.MQTT.ClientID)
	assert.Equal(t, "zigbee2mqtt", cfg.MQTT.TopicPrefix)

	room := cfg.Rooms[0]
	assert.Equal(t, DefaultCloseThreshold, room.CloseThreshold)
	assert.Equal(t, DefaultOpenThreshold, room.OpenThreshold)
	assert.Equal(t, DefaultMaxValvePosition, room.MaxValvePosition)
	assert.Equal(t, DefaultStep, room.Step)
	assert.Equal(t, DefaultMinTemp, room.MinTemp)
	assert.Equal(t, DefaultMaxTemp, room.MaxTemp)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.APIPort = 9000
	cfg.Rooms[0].CloseThreshold = 45.0
	cfg.Rooms[0].OpenThreshold = 40.0
	cfg.applyDefaults()

	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, 45.0, cfg.Rooms[0].CloseThreshold)
	assert.Equal(t, 40.0, cfg.Rooms[0].OpenThreshold)
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := validConfig()
	cfg.applyDefaults()

	assert.NotPanics(t, func() { cfg.validate() })
}

func TestValidateRejectsMissingBroker(t *testing.T) {
	cfg := validConfig()
	cfg.MQTT.Broker = ""
	cfg.applyDefaults()

	assert.Panics(t, func() { cfg.validate() })
}

func TestValidateRejectsDuplicateRoomIDs(t *testing.T) {
	cfg := validConfig()
	dup := cfg.Rooms[0]
	dup.TempSensor = "other_temp"
	dup.TRV = "other_trv"
	dup.ReturnSensor = "other_return"
	cfg.Rooms = append(cfg.Rooms, dup)
	cfg.applyDefaults()

	assert.Panics(t, func() { cfg.validate() })
}

func TestValidateRejectsSharedSensors(t *testing.T) {
	cfg := validConfig()
	other := model.RoomConfig{
		ID:           "bedroom",
		Name:         "Bedroom",
		TempSensor:   "living_temp", // shared with living
		TRV:          "bedroom_trv",
		ReturnSensor: "bedroom_return",
	}
	cfg.Rooms = append(cfg.Rooms, other)
	cfg.applyDefaults()

	assert.Panics(t, func() { cfg.validate() })
}

func TestValidateRejectsBadRoom(t *testing.T) {
	cfg := validConfig()
	cfg.applyDefaults()
	cfg.Rooms[0].OpenThreshold = 50.0 // above close threshold

	assert.Panics(t, func() { cfg.validate() })
}
