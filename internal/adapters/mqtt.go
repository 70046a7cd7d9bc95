package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ArashiWander/Argus-sub001/internal/config"
	"github.com/ArashiWander/Argus-sub001/internal/ingest"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

const (
	mqttMetricsFilter = "argus/metrics/+/+"
	mqttLogsFilter    = "argus/logs/+/+"
	mqttHealthTopic   = "argus/health/server"
)

// MQTTAdapter subscribes to the argus topic tree. Topic segments supply
// fallback service and name/level values when the JSON payload omits them;
// payload values always win. Health status is published retained, with a
// last-will "offline" on ungraceful disconnect.
type MQTTAdapter struct {
	cfg     config.MQTTConfig
	service *ingest.Service
	logger  *slog.Logger
	client  mqtt.Client
}

// NewMQTTAdapter constructs the MQTT subscriber adapter.
func NewMQTTAdapter(cfg config.MQTTConfig, service *ingest.Service, logger *slog.Logger) *MQTTAdapter {
	return &MQTTAdapter{
		cfg:     cfg,
		service: service,
		logger:  utils.ComponentLogger(logger, "mqtt-adapter"),
	}
}

// Name identifies the adapter.
func (a *MQTTAdapter) Name() string { return "mqtt" }

// Start connects to the broker and subscribes to the telemetry topics.
func (a *MQTTAdapter) Start(_ context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(a.cfg.BrokerURL).
		SetClientID(a.cfg.ClientID).
		SetUsername(a.cfg.Username).
		SetPassword(a.cfg.Password).
		SetAutoReconnect(true).
		SetWill(mqttHealthTopic, "offline", a.cfg.QoS, true)

	a.client = mqtt.NewClient(opts)
	if token := a.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to %s: %w", a.cfg.BrokerURL, token.Error())
	}

	if token := a.client.Subscribe(mqttMetricsFilter, a.cfg.QoS, a.handleMetric); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe metrics: %w", token.Error())
	}
	if token := a.client.Subscribe(mqttLogsFilter, a.cfg.QoS, a.handleLog); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe logs: %w", token.Error())
	}

	a.client.Publish(mqttHealthTopic, a.cfg.QoS, true, "online")
	a.logger.Info("mqtt adapter connected", slog.String("broker", a.cfg.BrokerURL))
	return nil
}

// Stop publishes a graceful offline status and disconnects.
func (a *MQTTAdapter) Stop(_ context.Context) error {
	if a.client == nil {
		return nil
	}
	if token := a.client.Publish(mqttHealthTopic, a.cfg.QoS, true, "offline"); token.Wait() && token.Error() != nil {
		a.logger.Warn("health status publish failed", slog.Any("error", token.Error()))
	}
	a.client.Disconnect(250)
	return nil
}

// handleMetric normalizes an argus/metrics/{service}/{metricName} message.
func (a *MQTTAdapter) handleMetric(_ mqtt.Client, msg mqtt.Message) {
	var in ingest.MetricInput
	if err := json.Unmarshal(msg.Payload(), &in); err != nil {
		ingest.CountRejection("metric")
		a.logger.Warn("malformed metric payload",
			slog.String("topic", msg.Topic()), slog.Any("error", err))
		return
	}

	if service, name, ok := topicTail(msg.Topic()); ok {
		if in.Service == "" {
			in.Service = service
		}
		if in.Name == "" {
			in.Name = name
		}
	}

	if _, err := a.service.IngestMetric(context.Background(), in); err != nil {
		a.rejectMessage("metric", msg.Topic(), err)
		return
	}
	ingest.CountIngest("mqtt", "metric")
}

// handleLog normalizes an argus/logs/{service}/{level} message.
func (a *MQTTAdapter) handleLog(_ mqtt.Client, msg mqtt.Message) {
	var in ingest.LogInput
	if err := json.Unmarshal(msg.Payload(), &in); err != nil {
		ingest.CountRejection("log")
		a.logger.Warn("malformed log payload",
			slog.String("topic", msg.Topic()), slog.Any("error", err))
		return
	}

	if service, level, ok := topicTail(msg.Topic()); ok {
		if in.Service == "" {
			in.Service = service
		}
		if in.Level == "" {
			in.Level = level
		}
	}

	if _, err := a.service.IngestLog(context.Background(), in); err != nil {
		a.rejectMessage("log", msg.Topic(), err)
		return
	}
	ingest.CountIngest("mqtt", "log")
}

func (a *MQTTAdapter) rejectMessage(recordType, topic string, err error) {
	if utils.IsValidation(err) {
		ingest.CountRejection(recordType)
	}
	a.logger.Warn("mqtt message rejected",
		slog.String("type", recordType),
		slog.String("topic", topic),
		slog.Any("error", err))
}

// topicTail extracts the last two topic segments (argus/<kind>/<a>/<b>).
func topicTail(topic string) (string, string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 {
		return "", "", false
	}
	return parts[2], parts[3], true
}
