package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kerotrack/internal/config"
	"kerotrack/internal/models"
)

type fakeProcessor struct {
	raw *models.RawReading
	at  time.Time
}

func (f *fakeProcessor) HandleRaw(ctx context.Context, raw *models.RawReading, at time.Time) error {
	f.raw = raw
	f.at = at
	return nil
}

func newTestConsumer(p Processor) *Consumer {
	cfg := &config.MQTTConfig{RawTopic: "rtl_433/oil/Oil-SonicSmart"}
	return NewConsumer(cfg, nil, p, zap.NewNop())
}

func TestHandleMessage_DecodesPayload(t *testing.T) {
	p := &fakeProcessor{}
	c := newTestConsumer(p)

	payload := []byte(`{
		"model": "Oil-SonicSmart",
		"id": 1001,
		"time": "2025-01-14 08:30:00",
		"depth_cm": 27,
		"temperature_C": 5.5,
		"rssi": -62,
		"status": 152
	}`)
	require.NoError(t, c.handleMessage(context.Background(), payload))

	require.NotNil(t, p.raw)
	require.Equal(t, 1001, p.raw.ID)
	require.Equal(t, 27.0, p.raw.DepthCM)
	require.Equal(t, 5.5, p.raw.TemperatureC)
	require.Equal(t, "Good", p.raw.SignalQuality())
	require.Equal(t, "Normal operation", p.raw.StatusDescription())

	want := time.Date(2025, 1, 14, 8, 30, 0, 0, time.Local)
	require.True(t, want.Equal(p.at))
}

func TestHandleMessage_NormalizesAdvancedModelName(t *testing.T) {
	p := &fakeProcessor{}
	c := newTestConsumer(p)

	payload := []byte(`{"model":"Oil-SonicAdv","id":1001,"depth_cm":27,"temperature_C":5.5}`)
	require.NoError(t, c.handleMessage(context.Background(), payload))

	require.Equal(t, "Oil-SonicSmart", p.raw.Model)
}

func TestHandleMessage_MissingTimeUsesReceiveTime(t *testing.T) {
	p := &fakeProcessor{}
	c := newTestConsumer(p)

	before := time.Now()
	payload := []byte(`{"model":"Oil-SonicSmart","id":1001,"depth_cm":27,"temperature_C":5.5}`)
	require.NoError(t, c.handleMessage(context.Background(), payload))

	require.False(t, p.at.Before(before))
	require.False(t, p.at.After(time.Now()))
}

func TestHandleMessage_RejectsMalformedJSON(t *testing.T) {
	p := &fakeProcessor{}
	c := newTestConsumer(p)

	err := c.handleMessage(context.Background(), []byte(`{not json`))
	require.Error(t, err)
	require.Nil(t, p.raw)
}
