// Package ingest subscribes to the MQTT topics sensors publish on and feeds
// their payloads to the coordinator. Payloads are either bare scalars
// ("21.5", "open") or zigbee2mqtt JSON objects, from which the field matching
// the sensor's role is extracted.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

const subscribeTimeout = 5 * time.Second

// Sink receives normalized sensor deliveries.
type Sink interface {
	HandleSensor(sensorID, raw string)
	SensorKind(sensorID string) (model.SensorKind, bool)
}

type Subscriber struct {
	client mqtt.Client
	prefix string
	sink   Sink
}

func New(client mqtt.Client, prefix string, sink Sink) *Subscriber {
	return &Subscriber{client: client, prefix: prefix, sink: sink}
}

// Start subscribes to every device topic under the prefix. Deliveries for
// sensors no room owns are dropped.
func (s *Subscriber) Start() error {
	topic := s.prefix + "/+"
	token := s.client.Subscribe(topic, 1, s.onMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	log.Info().Str("topic", topic).Msg("Subscribed to sensor topics")
	return nil
}

func (s *Subscriber) Stop() {
	token := s.client.Unsubscribe(s.prefix + "/+")
	token.WaitTimeout(subscribeTimeout)
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	sensorID := msg.Topic()[len(s.prefix)+1:]

	kind, routed := s.sink.SensorKind(sensorID)
	if !routed {
		return
	}

	raw := normalize(kind, msg.Payload())
	log.Debug().Str("sensor", sensorID).Str("value", raw).Msg("Sensor update")
	s.sink.HandleSensor(sensorID, raw)
}

// normalize extracts the role-relevant field from a JSON payload. Non-JSON
// payloads pass through untouched.
func normalize(kind model.SensorKind, payload []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return string(payload)
	}

	switch kind {
	case model.SensorWindow:
		// zigbee2mqtt contact sensors report contact=true when closed.
		if raw, ok := fields["contact"]; ok {
			var contact bool
			if err := json.Unmarshal(raw, &contact); err == nil {
				if contact {
					return "closed"
				}
				return "open"
			}
		}
	default:
		if raw, ok := fields["temperature"]; ok {
			var temp float64
			if err := json.Unmarshal(raw, &temp); err == nil {
				return strconv.FormatFloat(temp, 'f', -1, 64)
			}
		}
	}
	return string(payload)
}
