package publisher

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

// Sender is the transport used to push messages out. Satisfied by
// *Client; unit tests substitute an in-memory fake.
type Sender interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Publisher pushes processed readings and analysis results to MQTT.
// Both topics are published retained so a dashboard that connects
// later still sees the latest state.
type Publisher struct {
	sender Sender
	config *config.MQTTConfig
	logger *zap.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(sender Sender, cfg *config.MQTTConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		sender: sender,
		config: cfg,
		logger: logger,
	}
}

// PublishReading publishes a processed tank reading.
func (p *Publisher) PublishReading(reading *models.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	if err := p.sender.Publish(p.config.ReadingTopic, 1, true, payload); err != nil {
		return err
	}

	p.logger.Debug("Published reading",
		zap.String("topic", p.config.ReadingTopic),
		zap.Float64("litres_remaining", reading.LitresRemaining),
	)
	return nil
}

// PublishAnalysis publishes an analysis result.
func (p *Publisher) PublishAnalysis(result *models.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	if err := p.sender.Publish(p.config.AnalysisTopic, 1, true, payload); err != nil {
		return err
	}

	p.logger.Debug("Published analysis",
		zap.String("topic", p.config.AnalysisTopic),
		zap.String("run_id", result.RunID),
	)
	return nil
}
