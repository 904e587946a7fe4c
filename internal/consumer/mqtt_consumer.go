package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kerotrack/internal/config"
	"kerotrack/internal/models"
	"kerotrack/internal/publisher"
)

// rtl_433 timestamps look like "2025-01-14 08:30:00".
const rawTimeLayout = "2006-01-02 15:04:05"

// Processor turns a decoded sensor payload into a stored reading.
type Processor interface {
	HandleRaw(ctx context.Context, raw *models.RawReading, at time.Time) error
}

// Consumer subscribes to the raw rtl_433 topic and feeds decoded
// payloads into the processing pipeline.
type Consumer struct {
	config    *config.MQTTConfig
	client    *publisher.Client
	processor Processor
	logger    *zap.Logger
}

// NewConsumer creates a raw-topic consumer.
func NewConsumer(cfg *config.MQTTConfig, client *publisher.Client, processor Processor, logger *zap.Logger) *Consumer {
	return &Consumer{
		config:    cfg,
		client:    client,
		processor: processor,
		logger:    logger,
	}
}

// Start subscribes to the raw topic. Returns once the subscription is
// established; messages arrive on paho's callback goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	handler := func(topic string, payload []byte) error {
		return c.handleMessage(ctx, payload)
	}

	if err := c.client.Subscribe(c.config.RawTopic, 1, handler); err != nil {
		return fmt.Errorf("failed to subscribe to raw topic: %w", err)
	}

	c.logger.Info("Consumer started",
		zap.String("topic", c.config.RawTopic),
	)
	return nil
}

// Stop removes the subscription.
func (c *Consumer) Stop() error {
	return c.client.Unsubscribe(c.config.RawTopic)
}

func (c *Consumer) handleMessage(ctx context.Context, payload []byte) error {
	var raw models.RawReading
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("failed to decode raw payload: %w", err)
	}

	// The Advanced variant identifies itself differently but speaks
	// the same protocol.
	if raw.Model == "Oil-SonicAdv" {
		raw.Model = "Oil-SonicSmart"
	}

	at := time.Now()
	if raw.Time != "" {
		parsed, err := time.ParseInLocation(rawTimeLayout, raw.Time, time.Local)
		if err != nil {
			c.logger.Warn("Unparseable payload timestamp, using receive time",
				zap.String("time", raw.Time),
				zap.Error(err),
			)
		} else {
			at = parsed
		}
	}

	if raw.RSSI != nil {
		c.logger.Info("Signal strength",
			zap.Float64("rssi_dbm", *raw.RSSI),
			zap.String("quality", raw.SignalQuality()),
		)
	}
	if raw.Status != nil {
		c.logger.Info("Sensor status",
			zap.Int("raw_flags", *raw.Status),
			zap.String("description", raw.StatusDescription()),
		)
	}

	return c.processor.HandleRaw(ctx, &raw, at)
}
