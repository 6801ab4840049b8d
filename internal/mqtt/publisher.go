// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mqtt publishes poll snapshots and per-sensor values to an MQTT
// broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/metrics"
	"github.com/ManuGH/camsync/internal/poller"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

const (
	DefaultTopicPrefix    = "camsync"
	DefaultPublishTimeout = 5 * time.Second
	unknownDevice         = "unknown"
)

// Config holds broker and topic settings.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	Retain         bool
	PublishTimeout time.Duration
}

// publisher is the part of paho.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher turns snapshots into MQTT messages. Sensor topics are only
// republished when their value changes; the state topic is sent every
// time.
type Publisher struct {
	cfg    Config
	client publisher
	close  func()

	mu   sync.Mutex
	last map[string]string
}

// Connect dials the broker and announces availability. The broker clears
// it through the last will when the connection drops.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	cfg = withDefaults(cfg)
	logger := xglog.WithComponentFromContext(ctx, "mqtt")

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(availabilityTopic(cfg.TopicPrefix), "offline", cfg.QoS, true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info().Str(xglog.FieldEvent, "mqtt.connected").Str("broker", cfg.Broker).Msg("connected to broker")
		c.Publish(availabilityTopic(cfg.TopicPrefix), cfg.QoS, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "mqtt.connection_lost").Msg("broker connection lost")
	})

	client := paho.NewClient(opts)
	if err := wait(ctx, client.Connect(), cfg.PublishTimeout); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	p := newPublisher(cfg, client)
	p.close = func() {
		_ = wait(context.Background(), client.Publish(availabilityTopic(cfg.TopicPrefix), cfg.QoS, true, "offline"), time.Second)
		client.Disconnect(250)
	}
	return p, nil
}

func newPublisher(cfg Config, client publisher) *Publisher {
	return &Publisher{
		cfg:    withDefaults(cfg),
		client: client,
		close:  func() {},
		last:   make(map[string]string),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	return cfg
}

func availabilityTopic(prefix string) string { return prefix + "/status" }

// Topic builds <prefix>/<device>/<sensor>.
func (p *Publisher) Topic(deviceID, sensor string) string {
	if deviceID == "" {
		deviceID = unknownDevice
	}
	return p.cfg.TopicPrefix + "/" + deviceID + "/" + sensor
}

// stateMessage is the snapshot without the recording list.
type stateMessage struct {
	OperatingState string    `json:"operating_state"`
	MotionStatus   bool      `json:"motion_status"`
	Motion         bool      `json:"motion"`
	SoundStatus    bool      `json:"sound_status"`
	Sound          bool      `json:"sound"`
	IOStatus       bool      `json:"io_status"`
	IO             bool      `json:"io"`
	Recording      bool      `json:"recording"`
	Last           string    `json:"last"`
	CapturedToday  int       `json:"captured_today"`
	CapturedTotal  int       `json:"captured_total"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func sensors(s *poller.Snapshot) map[string]string {
	return map[string]string{
		"operating_state": string(s.OperatingState),
		"motion":          strconv.FormatBool(s.Motion),
		"sound":           strconv.FormatBool(s.Sound),
		"io":              strconv.FormatBool(s.IO),
		"recording":       strconv.FormatBool(s.Recording),
		"last":            s.Last,
		"captured_today":  strconv.Itoa(s.CapturedToday),
		"captured_total":  strconv.Itoa(s.CapturedTotal),
	}
}

// Publish matches poller.Listener. Failures are logged and counted; they
// never fail the tick.
func (p *Publisher) Publish(ctx context.Context, s *poller.Snapshot) {
	logger := xglog.WithComponentFromContext(ctx, "mqtt")
	if err := p.publish(ctx, s); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "mqtt.publish.failed").Msg("publish snapshot")
	}
}

func (p *Publisher) publish(ctx context.Context, s *poller.Snapshot) error {
	payload, err := json.Marshal(stateMessage{
		OperatingState: string(s.OperatingState),
		MotionStatus:   s.MotionStatus,
		Motion:         s.Motion,
		SoundStatus:    s.SoundStatus,
		Sound:          s.Sound,
		IOStatus:       s.IOStatus,
		IO:             s.IO,
		Recording:      s.Recording,
		Last:           s.Last,
		CapturedToday:  s.CapturedToday,
		CapturedTotal:  s.CapturedTotal,
		UpdatedAt:      s.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	var errs []error
	if err := p.send(ctx, p.Topic(s.DeviceID, "state"), payload); err != nil {
		errs = append(errs, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for name, value := range sensors(s) {
		topic := p.Topic(s.DeviceID, name)
		if prev, ok := p.last[topic]; ok && prev == value {
			continue
		}
		if err := p.send(ctx, topic, []byte(value)); err != nil {
			errs = append(errs, err)
			continue
		}
		p.last[topic] = value
	}
	return errors.Join(errs...)
}

func (p *Publisher) send(ctx context.Context, topic string, payload []byte) error {
	if err := wait(ctx, p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload), p.cfg.PublishTimeout); err != nil {
		metrics.IncPublish("mqtt", "failed")
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.IncPublish("mqtt", "ok")
	return nil
}

// Close marks the publisher offline and disconnects.
func (p *Publisher) Close() { p.close() }

func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
