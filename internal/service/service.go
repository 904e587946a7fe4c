package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"kerotrack/internal/analysis"
	"kerotrack/internal/cache"
	"kerotrack/internal/config"
	"kerotrack/internal/models"
	"kerotrack/internal/pricing"
	"kerotrack/internal/publisher"
	"kerotrack/internal/repository"
)

// Service owns the reading pipeline and the scheduled analysis loop.
// Readings arrive via HandleRaw (the MQTT consumer's processor hook);
// analysis runs on a timer and immediately after each detected refill.
type Service struct {
	config *config.Config
	logger *zap.Logger

	readingsRepo *repository.ReadingsRepository
	analysisRepo *repository.AnalysisRepository
	hddRepo      *repository.HDDRepository
	cache        *cache.Manager
	publisher    *publisher.Publisher
	pricing      *pricing.Client

	normalizer *analysis.Normalizer
	classifier *analysis.Classifier
	suddenDrop *analysis.SuddenDropDetector
	analyzer   *analysis.Analyzer

	stopCh chan struct{}
}

// New wires the service. Fails only on invalid tank geometry.
func New(
	cfg *config.Config,
	readingsRepo *repository.ReadingsRepository,
	analysisRepo *repository.AnalysisRepository,
	hddRepo *repository.HDDRepository,
	cacheManager *cache.Manager,
	pub *publisher.Publisher,
	pricingClient *pricing.Client,
	logger *zap.Logger,
) (*Service, error) {
	normalizer, err := analysis.NewNormalizer(cfg.Tank, cfg.Thermal)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}

	return &Service{
		config:       cfg,
		logger:       logger,
		readingsRepo: readingsRepo,
		analysisRepo: analysisRepo,
		hddRepo:      hddRepo,
		cache:        cacheManager,
		publisher:    pub,
		pricing:      pricingClient,
		normalizer:   normalizer,
		classifier:   analysis.NewClassifier(cfg.Detection, cfg.Thermal, logger),
		suddenDrop:   analysis.NewSuddenDropDetector(cfg.Detection, logger),
		analyzer:     analysis.NewAnalyzer(cfg, readingsRepo, hddRepo, logger),
		stopCh:       make(chan struct{}),
	}, nil
}

// HandleRaw processes one decoded sensor payload: normalize, classify
// against the previous stored reading, price, persist, publish. A
// detected refill triggers an immediate analysis run.
func (s *Service) HandleRaw(ctx context.Context, raw *models.RawReading, at time.Time) error {
	normalized := s.normalizer.Normalize(raw.DepthCM, raw.TemperatureC)

	prev, err := s.readingsRepo.GetLatest(ctx)
	if err != nil {
		return fmt.Errorf("failed to load previous reading: %w", err)
	}

	classification := s.classifier.Classify(normalized, at, prev)

	learningWindow := time.Duration(s.config.Detection.LearningPeriodHours) * time.Hour
	history, err := s.readingsRepo.GetTrailing(ctx, at, learningWindow)
	if err != nil {
		return fmt.Errorf("failed to load trailing readings: %w", err)
	}
	suddenDrop := s.suddenDrop.Check(raw.DepthCM, at, history)

	reading := s.buildReading(ctx, raw, at, normalized, classification, suddenDrop, prev)

	if err := s.readingsRepo.Append(ctx, reading); err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}

	if err := s.cache.SetLatestReading(ctx, reading); err != nil {
		s.logger.Warn("Failed to cache reading", zap.Error(err))
	}
	if err := s.publisher.PublishReading(reading); err != nil {
		s.logger.Warn("Failed to publish reading", zap.Error(err))
	}

	s.logger.Info("Reading processed",
		zap.Time("timestamp", at),
		zap.Float64("litres_remaining", reading.LitresRemaining),
		zap.Float64("air_gap_cm", reading.AirGapCM),
		zap.String("refill_detected", reading.RefillDetected),
		zap.String("leak_detected", reading.LeakDetected),
		zap.String("sudden_drop", reading.SuddenDrop),
	)

	if classification.Refill {
		if err := s.RunAnalysis(ctx, at); err != nil {
			s.logger.Error("Post-refill analysis failed", zap.Error(err))
		}
	}

	return nil
}

func (s *Service) buildReading(
	ctx context.Context,
	raw *models.RawReading,
	at time.Time,
	normalized analysis.Normalized,
	classification analysis.Classification,
	suddenDrop bool,
	prev *models.Reading,
) *models.Reading {
	reading := &models.Reading{
		ID:                  strconv.Itoa(raw.ID),
		Timestamp:           at,
		TemperatureC:        raw.TemperatureC,
		LitresRemaining:     classification.Volume,
		RawLitres:           classification.RawVolume,
		PercentageRemaining: normalized.Percentage,
		OilDepthCM:          normalized.OilDepthCM,
		AirGapCM:            normalized.AirGapCM,
		HeatingDegreeDays:   normalized.HeatingDegreeDays,
		SeasonalEfficiency:  analysis.SeasonalEfficiency(int(at.Month())),
		LitresToOrder:       normalized.LitresToOrder,
		BarsRemaining:       normalized.BarsRemaining,
		RefillDetected:      models.FlagNo,
		LeakDetected:        models.FlagNo,
		SuddenDrop:          models.FlagNo,
		RawFlags:            raw.Status,
	}
	if classification.Refill {
		reading.RefillDetected = models.FlagYes
	}
	if classification.Leak {
		reading.LeakDetected = models.FlagYes
	}
	if suddenDrop {
		reading.SuddenDrop = models.FlagYes
	}

	// A clamp rewrites the stored volume, so the fields derived from
	// the raw normalization no longer match it. Re-derive them; the
	// pre-clamp value stays visible via RawLitres.
	if classification.Clamped {
		reading.PercentageRemaining, reading.LitresToOrder, reading.BarsRemaining =
			s.normalizer.DisplayFor(classification.Volume)
	}

	if prev != nil && !classification.Refill {
		reading.LitresUsedSinceLast = maxf(prev.LitresRemaining-reading.LitresRemaining, 0)
	}

	// Pricing is best effort; a missing quote leaves the cost fields
	// unset rather than blocking the reading.
	if quote := s.pricing.FetchQuote(ctx); quote != nil {
		if ppl, err := pricing.PPLForVolume(reading.LitresToOrder, quote); err == nil {
			reading.CurrentPPL = &ppl
			costUsed := reading.LitresUsedSinceLast * ppl / 100
			costToFill := reading.LitresToOrder * ppl / 100
			reading.CostUsed = &costUsed
			reading.CostToFill = &costToFill
		}
	}

	return reading
}

// RunAnalysis performs one analysis pass, persists and publishes the
// result. When the pass fails, the last good cached result is
// republished so downstream consumers keep a usable (if stale) state.
func (s *Service) RunAnalysis(ctx context.Context, now time.Time) error {
	result, err := s.analyzer.Run(ctx, now)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			s.logger.Info("Not enough readings for analysis yet")
			return nil
		}
		s.serveStale(ctx, err)
		return err
	}

	if err := s.analysisRepo.Save(ctx, result); err != nil {
		s.logger.Error("Failed to persist analysis result", zap.Error(err))
	}
	if err := s.cache.SetLatestAnalysis(ctx, result); err != nil {
		s.logger.Warn("Failed to cache analysis result", zap.Error(err))
	}
	if err := s.publisher.PublishAnalysis(result); err != nil {
		s.logger.Warn("Failed to publish analysis result", zap.Error(err))
	}
	return nil
}

// serveStale republishes the last good analysis after a failed run.
func (s *Service) serveStale(ctx context.Context, cause error) {
	stale, age, err := s.cache.GetLatestAnalysis(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Failed to load cached analysis", zap.Error(err))
		}
		// Cache empty: fall back to the database copy.
		stale, err = s.analysisRepo.GetLatest(ctx)
		if err != nil || stale == nil {
			s.logger.Error("Analysis failed with no previous result to serve",
				zap.Error(cause),
			)
			return
		}
		age = time.Since(stale.AnalysisDate)
	}

	s.logger.Warn("Analysis failed, serving last good result",
		zap.Error(cause),
		zap.String("stale_run_id", stale.RunID),
		zap.Duration("age", age),
	)
	if err := s.publisher.PublishAnalysis(stale); err != nil {
		s.logger.Warn("Failed to republish stale analysis", zap.Error(err))
	}
}

// Start runs the scheduled analysis loop until ctx is cancelled or
// Stop is called.
func (s *Service) Start(ctx context.Context) error {
	interval := time.Duration(s.config.Analysis.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Analysis loop started",
		zap.Duration("interval", interval),
	)

	// One pass up front so a restart does not wait a full interval.
	if err := s.RunAnalysis(ctx, time.Now()); err != nil {
		s.logger.Error("Initial analysis failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if err := s.RunAnalysis(ctx, time.Now()); err != nil {
				s.logger.Error("Scheduled analysis failed", zap.Error(err))
			}
		}
	}
}

// Stop terminates the analysis loop.
func (s *Service) Stop() {
	close(s.stopCh)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
