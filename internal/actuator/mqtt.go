package actuator

import (
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

// Zigbee2MQTT attribute names for Sonoff-class TRVs.
const (
	attrSetpoint     = "occupied_heating_setpoint"
	attrValveOpening = "valve_opening_degree"
	attrSystemMode   = "system_mode"
	attrExternalTemp = "external_temperature_input"
)

const publishTimeout = 5 * time.Second

// MQTTActuator drives TRVs over Zigbee2MQTT. Two transports per command,
// tried in order: the per-attribute command topic
// (<prefix>/<device>/set/<attribute>) and the device set topic with a JSON
// payload (<prefix>/<device>/set). The action counts as applied when either
// succeeds.
type MQTTActuator struct {
	client paho.Client
	prefix string
}

func NewMQTT(client paho.Client, topicPrefix string) *MQTTActuator {
	return &MQTTActuator{client: client, prefix: topicPrefix}
}

func (a *MQTTActuator) SetTemperature(trv string, celsius float64) error {
	return a.set(trv, attrSetpoint, strconv.FormatFloat(celsius, 'f', 1, 64))
}

func (a *MQTTActuator) SetValvePosition(trv string, percent int) error {
	return a.set(trv, attrValveOpening, strconv.Itoa(percent))
}

func (a *MQTTActuator) SetMode(trv string, mode model.HVACMode) error {
	return a.set(trv, attrSystemMode, string(mode))
}

func (a *MQTTActuator) SetExternalTemperature(trv string, celsius float64) error {
	return a.set(trv, attrExternalTemp, strconv.FormatFloat(celsius, 'f', 1, 64))
}

func (a *MQTTActuator) set(trv, attribute, value string) error {
	attrTopic := fmt.Sprintf("%s/%s/set/%s", a.prefix, trv, attribute)
	attrErr := a.publish(attrTopic, value)
	if attrErr == nil {
		return nil
	}

	log.Warn().
		Err(attrErr).
		Str("trv", trv).
		Str("topic", attrTopic).
		Msg("Attribute topic publish failed, falling back to device set topic")

	setTopic := fmt.Sprintf("%s/%s/set", a.prefix, trv)
	payload := fmt.Sprintf("{%q: %s}", attribute, jsonValue(attribute, value))
	if setErr := a.publish(setTopic, payload); setErr != nil {
		return fmt.Errorf("%w: %s on %s: %v", model.ErrActuatorUnreachable, attribute, trv, setErr)
	}
	return nil
}

func (a *MQTTActuator) publish(topic, payload string) error {
	if !a.client.IsConnectionOpen() {
		return fmt.Errorf("broker connection down")
	}

	// QoS 1: device commands must arrive, duplicates are idempotent
	token := a.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func jsonValue(attribute, value string) string {
	if attribute == attrSystemMode {
		return strconv.Quote(value)
	}
	return value
}
