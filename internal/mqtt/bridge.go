package mqtt

import (
	"fmt"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"ouralink/internal/model"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	statusTopic    = "status"
)

type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
}

// Bridge mirrors the key wellness metrics onto retained MQTT topics so other
// home-automation consumers can subscribe without talking to the HTTP API.
type Bridge struct {
	client pahomqtt.Client
	prefix string
	log    *zap.SugaredLogger
}

func NewBridge(cfg Config, log *zap.SugaredLogger) (*Bridge, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "ouralink"
	}

	bridge := &Bridge{prefix: cfg.TopicPrefix, log: log}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetWill(bridge.topic(statusTopic), "offline", 1, true).
		SetOnConnectHandler(func(client pahomqtt.Client) {
			log.Infow("mqtt connected", "broker", cfg.BrokerURL)
			token := client.Publish(bridge.topic(statusTopic), 1, true, "online")
			token.WaitTimeout(publishTimeout)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warnw("mqtt connection lost", "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	bridge.client = client
	return bridge, nil
}

// PublishSnapshot mirrors the latest metrics; topics with no backing data
// this cycle are skipped rather than cleared.
func (b *Bridge) PublishSnapshot(snap *model.Snapshot) {
	if sleep := snap.LatestSleep(); sleep != nil {
		if sleep.Score != nil {
			b.publish("sleep/score", strconv.Itoa(*sleep.Score))
		}
		b.publish("sleep/duration", strconv.FormatFloat(sleep.HoursSlept(), 'f', 2, 64))
	}
	if readiness := snap.LatestReadiness(); readiness != nil {
		if readiness.Score != nil {
			b.publish("readiness/score", strconv.Itoa(*readiness.Score))
		}
		if readiness.TemperatureDeviation != nil {
			b.publish("readiness/temperature", strconv.FormatFloat(*readiness.TemperatureDeviation, 'f', 2, 64))
		}
	}
	if activity := snap.LatestActivity(); activity != nil {
		if activity.Steps != nil {
			b.publish("activity/steps", strconv.Itoa(*activity.Steps))
		}
		if activity.TotalCalories != nil {
			b.publish("activity/calories", strconv.Itoa(*activity.TotalCalories))
		}
	}
	b.publish("wellness/phase", string(snap.WellnessPhase))
	b.publish("circadian/score", strconv.Itoa(snap.Circadian.Score))
}

func (b *Bridge) publish(topic, payload string) {
	token := b.client.Publish(b.topic(topic), 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.log.Warnw("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		b.log.Warnw("mqtt publish failed", "topic", topic, "error", err)
	}
}

func (b *Bridge) topic(suffix string) string {
	return b.prefix + "/" + suffix
}

// Close marks the status topic offline and disconnects.
func (b *Bridge) Close() {
	token := b.client.Publish(b.topic(statusTopic), 1, true, "offline")
	token.WaitTimeout(publishTimeout)
	b.client.Disconnect(uint(publishTimeout.Milliseconds()))
}
