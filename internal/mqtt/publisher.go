// Package mqtt fans emotion events out to analytics consumers over MQTT.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"mindpal/internal/domain"
)

const defaultQoS = 1

type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

type Publisher struct {
	cfg    Config
	client paho.Client
	logger *slog.Logger
}

func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "mindpal"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Start connects to the broker and disconnects when ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.Error("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		p.client.Disconnect(250)
	}()
	return nil
}

// PublishEmotion sends ev to {prefix}/session/{session_id}/emotion with QoS 1.
func (p *Publisher) PublishEmotion(ctx context.Context, ev domain.EmotionEvent) error {
	if p.client == nil {
		return errors.New("mqtt publisher not started")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := p.client.Publish(TopicSessionEmotion(p.cfg.TopicPrefix, ev.SessionID), defaultQoS, false, body)
	return waitToken(ctx, token)
}

// SubscribeEmotions delivers every emotion event published under the prefix.
// Payloads that do not decode are logged and skipped.
func (p *Publisher) SubscribeEmotions(handler func(domain.EmotionEvent)) error {
	if p.client == nil {
		return errors.New("mqtt publisher not started")
	}
	token := p.client.Subscribe(TopicEmotions(p.cfg.TopicPrefix), defaultQoS, func(_ paho.Client, msg paho.Message) {
		sessionID, err := ParseSessionID(msg.Topic(), p.cfg.TopicPrefix)
		if err != nil {
			p.logger.Warn("skip invalid emotion topic", "topic", msg.Topic(), "error", err)
			return
		}
		var ev domain.EmotionEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			p.logger.Warn("invalid emotion payload", "session_id", sessionID, "error", err)
			return
		}
		if ev.SessionID == "" {
			ev.SessionID = sessionID
		}
		handler(ev)
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("mqtt publish timeout")
	}
}
