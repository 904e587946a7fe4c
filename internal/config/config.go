package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT broker settings and topic map.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte

	// Topics. RawTopic carries the rtl_433 sensor payload; readings and
	// analysis are published retained so dashboards pick up the last
	// value on subscribe.
	RawTopic      string
	ReadingTopic  string
	AnalysisTopic string
}

// TankConfig physical tank geometry. Dimensions in cm, capacity in litres.
type TankConfig struct {
	Length   float64
	Width    float64
	Height   float64
	Capacity float64
}

// ThermalConfig thermal compensation constants.
type ThermalConfig struct {
	ReferenceTemperature     float64 // °C, volume is normalized to this
	ExpansionCoefficient     float64 // per °C
	OilDensityAtReference    float64 // kg/m³
	HDDBaseTemperature       float64 // °C, for the temperature-derived HDD fallback
	WarmTemperatureThreshold float64 // °C, switches max-consumption clamp band
}

// DetectionConfig refill/leak/sudden-drop thresholds.
type DetectionConfig struct {
	RefillThreshold         float64 // litres
	RefillAirGapDropMin     float64 // cm of corroborating air-gap decrease
	LeakThreshold           float64 // litres
	LeakRatePerDay          float64 // litres/day of explainable loss
	MaxDailyConsumptionCold float64 // litres/day
	MaxDailyConsumptionWarm float64 // litres/day

	// Sudden drop detector.
	SuddenDropRateCMPerHour float64
	SuddenDropMinAirGapCM   float64
	LearningPeriodHours     int
	LearningMinReadings     int
}

// EstimatorConfig consumption estimator tuning.
type EstimatorConfig struct {
	EMAAlpha               float64
	MinimumConsumptionRate float64 // litres/day floor for the EMA rate
	ShortWindowDays        int
	LongWindowDays         int
	ShortWindowWeight      float64
	MinHeatingLitres       float64 // absolute heating band
	MaxHeatingLitres       float64
	HDDRatioFloor          float64 // clamp on today/7-day-average HDD ratio
	HDDRatioCeil           float64
	MaxRefillCycles        int // refill cycles considered for the historical average
}

// BoilerConfig hot water and boiler parameters.
type BoilerConfig struct {
	FuelRate            float64 // litres/hour while firing
	OutputKW            float64
	Efficiency          float64
	WeeklySessionCount  float64 // scheduled hot water sessions per week
	SessionDurationHrs  float64
	HotWaterBufferRatio float64 // e.g. 1.1 for a 10% ad hoc margin
}

// AnalysisConfig run-level analysis settings.
type AnalysisConfig struct {
	CO2PerLitre      float64 // kg CO2 per litre burned
	ProjectionCapHDD float64 // days cap when current HDD > 0
	ProjectionCapOff float64 // days cap when current HDD == 0
	PollInterval     int     // seconds between scheduled analysis runs
	CacheTTL         int     // seconds to keep the latest result in Redis
}

// PricingConfig live price-per-litre source.
type PricingConfig struct {
	QuoteURL       string
	TimeoutSeconds int
	RetryCount     int
}

// Config immutable engine configuration, loaded once at startup and
// passed into every constructor. No component reads ambient state.
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Tank      TankConfig
	Thermal   ThermalConfig
	Detection DetectionConfig
	Estimator EstimatorConfig
	Boiler    BoilerConfig
	Analysis  AnalysisConfig
	Pricing   PricingConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables with defaults
// matching the reference installation (1225L bunded tank, kerosene
// constants), then validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "kerotrack")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "kerotrack")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.RawTopic = getEnv("MQTT_RAW_TOPIC", "rtl_433/oil/Oil-SonicSmart")
	cfg.MQTT.ReadingTopic = getEnv("MQTT_READING_TOPIC", "kerotrack/readings")
	cfg.MQTT.AnalysisTopic = getEnv("MQTT_ANALYSIS_TOPIC", "kerotrack/analytics")

	cfg.Tank.Length = getEnvFloat("TANK_LENGTH_CM", 179)
	cfg.Tank.Width = getEnvFloat("TANK_WIDTH_CM", 74)
	cfg.Tank.Height = getEnvFloat("TANK_HEIGHT_CM", 108)
	cfg.Tank.Capacity = getEnvFloat("TANK_CAPACITY_L", 1225)

	cfg.Thermal.ReferenceTemperature = getEnvFloat("REFERENCE_TEMPERATURE", 15)
	cfg.Thermal.ExpansionCoefficient = getEnvFloat("THERMAL_EXPANSION_COEFFICIENT", 0.0007)
	cfg.Thermal.OilDensityAtReference = getEnvFloat("OIL_DENSITY_AT_REFERENCE", 810)
	cfg.Thermal.HDDBaseTemperature = getEnvFloat("HDD_BASE_TEMPERATURE", 15.5)
	cfg.Thermal.WarmTemperatureThreshold = getEnvFloat("WARM_TEMPERATURE_THRESHOLD", 15)

	cfg.Detection.RefillThreshold = getEnvFloat("REFILL_THRESHOLD_L", 100)
	cfg.Detection.RefillAirGapDropMin = getEnvFloat("REFILL_AIR_GAP_DROP_CM", 5)
	cfg.Detection.LeakThreshold = getEnvFloat("LEAK_THRESHOLD_L", 100)
	cfg.Detection.LeakRatePerDay = getEnvFloat("LEAK_RATE_PER_DAY_L", 10)
	cfg.Detection.MaxDailyConsumptionCold = getEnvFloat("MAX_DAILY_CONSUMPTION_COLD_L", 25)
	cfg.Detection.MaxDailyConsumptionWarm = getEnvFloat("MAX_DAILY_CONSUMPTION_WARM_L", 15)
	cfg.Detection.SuddenDropRateCMPerHour = getEnvFloat("SUDDEN_DROP_RATE_CM_PER_HOUR", 1.5)
	cfg.Detection.SuddenDropMinAirGapCM = getEnvFloat("SUDDEN_DROP_MIN_AIR_GAP_CM", 25)
	cfg.Detection.LearningPeriodHours = getEnvInt("LEARNING_PERIOD_HOURS", 24)
	cfg.Detection.LearningMinReadings = getEnvInt("LEARNING_MIN_READINGS", 48)

	cfg.Estimator.EMAAlpha = getEnvFloat("EMA_ALPHA", 0.3)
	cfg.Estimator.MinimumConsumptionRate = getEnvFloat("MINIMUM_CONSUMPTION_RATE_L", 0.01)
	cfg.Estimator.ShortWindowDays = getEnvInt("ESTIMATOR_SHORT_WINDOW_DAYS", 7)
	cfg.Estimator.LongWindowDays = getEnvInt("ESTIMATOR_LONG_WINDOW_DAYS", 30)
	cfg.Estimator.ShortWindowWeight = getEnvFloat("ESTIMATOR_SHORT_WINDOW_WEIGHT", 0.65)
	cfg.Estimator.MinHeatingLitres = getEnvFloat("MIN_HEATING_L", 0.5)
	cfg.Estimator.MaxHeatingLitres = getEnvFloat("MAX_HEATING_L", 15)
	cfg.Estimator.HDDRatioFloor = getEnvFloat("HDD_RATIO_FLOOR", 0.6)
	cfg.Estimator.HDDRatioCeil = getEnvFloat("HDD_RATIO_CEIL", 1.6)
	cfg.Estimator.MaxRefillCycles = getEnvInt("MAX_REFILL_CYCLES", 5)

	cfg.Boiler.FuelRate = getEnvFloat("BOILER_FUEL_RATE_LPH", 2.4)
	cfg.Boiler.OutputKW = getEnvFloat("BOILER_OUTPUT_KW", 26)
	cfg.Boiler.Efficiency = getEnvFloat("BOILER_EFFICIENCY", 0.85)
	cfg.Boiler.WeeklySessionCount = getEnvFloat("HOT_WATER_SESSIONS_PER_WEEK", 10)
	cfg.Boiler.SessionDurationHrs = getEnvFloat("HOT_WATER_SESSION_HOURS", 0.5)
	cfg.Boiler.HotWaterBufferRatio = getEnvFloat("HOT_WATER_BUFFER_RATIO", 1.1)

	cfg.Analysis.CO2PerLitre = getEnvFloat("CO2_PER_LITRE_KG", 2.54)
	cfg.Analysis.ProjectionCapHDD = getEnvFloat("PROJECTION_CAP_HEATING_DAYS", 400)
	cfg.Analysis.ProjectionCapOff = getEnvFloat("PROJECTION_CAP_NO_HEATING_DAYS", 700)
	cfg.Analysis.PollInterval = getEnvInt("ANALYSIS_POLL_INTERVAL_SECONDS", 1800)
	cfg.Analysis.CacheTTL = getEnvInt("ANALYSIS_CACHE_TTL_SECONDS", 7200)

	cfg.Pricing.QuoteURL = getEnv("PRICE_QUOTE_URL", "")
	cfg.Pricing.TimeoutSeconds = getEnvInt("PRICE_TIMEOUT_SECONDS", 10)
	cfg.Pricing.RetryCount = getEnvInt("PRICE_RETRY_COUNT", 2)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with. These are
// construction-time errors: a zero-capacity tank cannot produce a
// percentage and must never reach the analysis path.
func (c *Config) Validate() error {
	if c.Tank.Capacity <= 0 {
		return fmt.Errorf("invalid config: tank capacity must be positive, got %v", c.Tank.Capacity)
	}
	if c.Tank.Length <= 0 || c.Tank.Width <= 0 || c.Tank.Height <= 0 {
		return fmt.Errorf("invalid config: tank dimensions must be positive (%vx%vx%v)",
			c.Tank.Length, c.Tank.Width, c.Tank.Height)
	}
	if c.Estimator.EMAAlpha <= 0 || c.Estimator.EMAAlpha > 1 {
		return fmt.Errorf("invalid config: ema alpha must be in (0,1], got %v", c.Estimator.EMAAlpha)
	}
	if c.Estimator.ShortWindowWeight < 0 || c.Estimator.ShortWindowWeight > 1 {
		return fmt.Errorf("invalid config: short window weight must be in [0,1], got %v", c.Estimator.ShortWindowWeight)
	}
	if c.Estimator.HDDRatioFloor > c.Estimator.HDDRatioCeil {
		return fmt.Errorf("invalid config: hdd ratio floor %v above ceiling %v",
			c.Estimator.HDDRatioFloor, c.Estimator.HDDRatioCeil)
	}
	if c.Estimator.MinHeatingLitres > c.Estimator.MaxHeatingLitres {
		return fmt.Errorf("invalid config: min heating %vL above max heating %vL",
			c.Estimator.MinHeatingLitres, c.Estimator.MaxHeatingLitres)
	}
	if c.Detection.RefillThreshold <= 0 {
		return fmt.Errorf("invalid config: refill threshold must be positive, got %v", c.Detection.RefillThreshold)
	}
	if c.Boiler.HotWaterBufferRatio < 1 {
		return fmt.Errorf("invalid config: hot water buffer ratio must be >= 1, got %v", c.Boiler.HotWaterBufferRatio)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
