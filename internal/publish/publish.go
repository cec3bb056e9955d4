// Package publish delivers verdicts and anomaly events to downstream
// consumers over MQTT. Delivery is best-effort; persistence happens before
// publication and a failed publish never blocks the pipeline.
package publish

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/anomaly"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
	"github.com/gojosatorou999/jalscan-sih/internal/risk"
)

var (
	publishLogger   *slog.Logger
	publishLevelVar = new(slog.LevelVar)
)

func init() {
	publishLevelVar.Set(slog.LevelInfo)

	var err error
	publishLogger, _, err = logging.NewFileLogger("logs/publish.log", "publish", publishLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: publishLevelVar})
		publishLogger = slog.New(fbHandler).With("service", "publish")
	}
}

// Client is the transport used to deliver payloads.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Publisher serializes verdicts and events and hands them to the transport.
type Publisher struct {
	client    Client
	baseTopic string
}

// NewPublisher wraps a connected (or connectable) client.
func NewPublisher(client Client, baseTopic string) *Publisher {
	return &Publisher{client: client, baseTopic: baseTopic}
}

// PublishVerdict sends a verdict to <base>/verdicts/<site_id>.
func (p *Publisher) PublishVerdict(ctx context.Context, verdict *risk.Verdict) error {
	return p.publishJSON(ctx, p.baseTopic+"/verdicts/"+verdict.SiteID, verdict)
}

// PublishEvent sends an anomaly event to <base>/events/<site_id>.
func (p *Publisher) PublishEvent(ctx context.Context, event *anomaly.Event) error {
	return p.publishJSON(ctx, p.baseTopic+"/events/"+event.SiteID, event)
}

func (p *Publisher) publishJSON(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryValidation).
			Context("topic", topic).
			Build()
	}

	if !p.client.IsConnected() {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := p.client.Connect(connectCtx); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := p.client.Publish(ctx, topic, payload); err != nil {
		return err
	}
	publishLogger.Debug("payload published",
		"topic", topic,
		"bytes", len(payload),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
