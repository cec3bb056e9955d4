// config.go: settings struct and functions to load and save the settings for the risk engine.
package conf

import (
	_ "embed" // embed default config
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var defaultConfig []byte

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // path to the log file
	Rotation RotationType // type of log rotation
	MaxSize  int64        // max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// RiskSettings contains settings for the risk classifier and rule engine.
type RiskSettings struct {
	ArtifactPath     string        // path to trained model artifact, empty for embedded default
	InferenceTimeout time.Duration // hard deadline for a single classifier inference
	TopFactors       int           // number of ranked contributing factors on a verdict
	HorizonHours     int           // forward-looking window a verdict is asserted for
}

// FeatureSettings contains settings for the telemetry feature extractor.
type FeatureSettings struct {
	WindowsHours   []int         // rolling delta windows in hours
	MonsoonMonths  []int         // months considered monsoon season
	DeltaTolerance time.Duration // max distance of the nearest reading at or before t-delta
}

// HSVEnvelope describes one water color class as bounds in HSV space.
type HSVEnvelope struct {
	Class       string  // color class name
	HueMin      float64 // inclusive, degrees 0-360
	HueMax      float64
	SatMin      float64 // 0-255 scale
	SatMax      float64
	ValMin      float64 // 0-255 scale
	ValMax      float64
	ClassWeight float64 // fixed per-class constant in [0,1] used by the color index
}

// ROISettings describes the analyzed region of an image frame.
type ROISettings struct {
	BottomFraction float64 // fraction of frame height kept, measured from the bottom
	CenterFraction float64 // fraction of frame width kept, centered
}

// FlowThresholds maps flow magnitude (px/frame) to the ordinal flow classes.
type FlowThresholds struct {
	Still    float64 // below this magnitude the water is considered still
	Low      float64
	Moderate float64
	High     float64 // above this magnitude the flow is turbulent
}

// ErosionThresholds maps structural similarity to erosion classes.
type ErosionThresholds struct {
	StableSSIM float64 // similarity above this is stable
	MinorSSIM  float64 // similarity above this (but below stable) is minor erosion
}

// VisionSettings contains settings for the visual state analyzer.
type VisionSettings struct {
	ROI            ROISettings       // region of interest within each frame
	ColorEnvelopes []HSVEnvelope     // 6 class envelopes, matched in fixed priority order
	Flow           FlowThresholds    // multi-frame magnitude thresholds
	TextureFlow    FlowThresholds    // single-frame texture score thresholds
	Erosion        ErosionThresholds // SSIM class boundaries
}

// AnomalyWeights holds the tunable weight of each fusion rule.
type AnomalyWeights struct {
	RapidRise     float64
	RapidFall     float64
	ColorChange   float64
	FlowSpike     float64
	CombinedAlert float64
}

// AnomalyThresholds holds the trigger thresholds of the fusion rules.
type AnomalyThresholds struct {
	RiseDelta1h    float64 // cm over 1h that counts as a rapid rise
	RiseDelta3h    float64 // cm over 3h that counts as a rapid rise
	FallDelta1h    float64 // cm over 1h that counts as a rapid fall (positive value)
	ColorIndex     float64 // absolute color index change over the comparison window
	TurbulenceJump float64 // turbulence score change that counts as a flow spike
}

// AnomalySettings contains settings for the anomaly fusion detector.
type AnomalySettings struct {
	Weights       AnomalyWeights    // rule weights, configuration not contract
	Thresholds    AnomalyThresholds // rule trigger thresholds
	EmitThreshold float64           // fused score above which an event is emitted
}

// TamperSettings contains settings for reading tamper analysis.
type TamperSettings struct {
	Enabled bool // true to score submissions for tampering
}

// MQTTSettings contains settings for the MQTT verdict/event sink.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT
	Broker   string // MQTT broker (tcp://host:port)
	Topic    string // base topic for published payloads
	Username string // MQTT username
	Password string // MQTT password
	Retain   bool   // true to retain messages at the broker
}

// TelemetrySettings contains settings for the metrics endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to expose prometheus metrics
	Listen  string // listen address, e.g. "0.0.0.0:8090"
}

// RealtimeSettings contains settings for the continuous assessment loop.
type RealtimeSettings struct {
	Interval  int               // assessment interval in seconds
	MQTT      MQTTSettings      // MQTT sink settings
	Telemetry TelemetrySettings // metrics endpoint settings
}

// SentrySettings contains settings for error telemetry.
type SentrySettings struct {
	Enabled bool   // true to report enhanced errors to Sentry
	DSN     string // Sentry DSN
}

// Settings is the root configuration of the risk engine.
type Settings struct {
	Debug bool // true to enable debug output

	Main struct {
		Name string    // node name
		Log  LogConfig // default rotation settings for file loggers
	}

	Risk     RiskSettings     // classifier and rule engine settings
	Features FeatureSettings  // feature extractor settings
	Vision   VisionSettings   // visual state analyzer settings
	Anomaly  AnomalySettings  // anomaly fusion settings
	Tamper   TamperSettings   // tamper analysis settings
	Realtime RealtimeSettings // realtime loop settings

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite store
			Path    string // path to sqlite database
		}
		MySQL struct {
			Enabled  bool   // true to enable mysql store
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}

	Sentry SentrySettings // error telemetry settings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	settingsMutex.RLock()
	if settingsInstance != nil {
		defer settingsMutex.RUnlock()
		return settingsInstance
	}
	settingsMutex.RUnlock()

	settings, err := Load()
	if err != nil {
		// A broken config file must not leave callers with a nil settings
		// struct; fall back to compiled-in defaults.
		settings = defaultSettings()
		settingsMutex.Lock()
		settingsInstance = settings
		settingsMutex.Unlock()
	}
	return settings
}

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	applyStructuredDefaults(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// SetTestSettings installs a settings instance directly, for tests.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first config path.
func createDefaultConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the config search paths in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}, nil
	}
	return []string{
		".",
		filepath.Join(homeDir, ".config", "jalscan"),
		"/etc/jalscan",
	}, nil
}

// defaultSettings returns a settings struct populated with compiled-in defaults,
// used as a safety net when no config can be read.
func defaultSettings() *Settings {
	s := &Settings{}
	s.Main.Name = "jalscan"
	s.Risk.InferenceTimeout = 5 * time.Second
	s.Risk.TopFactors = 6
	s.Risk.HorizonHours = 6
	s.Realtime.Interval = 300
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "jalscan.db"
	applyStructuredDefaults(s)
	return s
}

// applyStructuredDefaults fills in slice-valued settings that viper defaults
// cannot express cleanly.
func applyStructuredDefaults(s *Settings) {
	if len(s.Features.WindowsHours) == 0 {
		s.Features.WindowsHours = []int{1, 3, 6, 12, 24}
	}
	if len(s.Features.MonsoonMonths) == 0 {
		s.Features.MonsoonMonths = []int{6, 7, 8, 9}
	}
	if s.Features.DeltaTolerance == 0 {
		s.Features.DeltaTolerance = 45 * time.Minute
	}
	if len(s.Vision.ColorEnvelopes) == 0 {
		s.Vision.ColorEnvelopes = DefaultColorEnvelopes()
	}
	if s.Vision.ROI.BottomFraction == 0 {
		s.Vision.ROI.BottomFraction = 0.5
	}
	if s.Vision.ROI.CenterFraction == 0 {
		s.Vision.ROI.CenterFraction = 0.5
	}
	if s.Vision.Flow == (FlowThresholds{}) {
		s.Vision.Flow = FlowThresholds{Still: 2, Low: 8, Moderate: 20, High: 40}
	}
	if s.Vision.TextureFlow == (FlowThresholds{}) {
		s.Vision.TextureFlow = FlowThresholds{Still: 0.5, Low: 1.5, Moderate: 3, High: 5}
	}
	if s.Vision.Erosion == (ErosionThresholds{}) {
		s.Vision.Erosion = ErosionThresholds{StableSSIM: 0.95, MinorSSIM: 0.85}
	}
	if s.Anomaly.Weights == (AnomalyWeights{}) {
		s.Anomaly.Weights = AnomalyWeights{
			RapidRise:     0.4,
			RapidFall:     0.35,
			ColorChange:   0.3,
			FlowSpike:     0.3,
			CombinedAlert: 0.6,
		}
	}
	if s.Anomaly.Thresholds == (AnomalyThresholds{}) {
		s.Anomaly.Thresholds = AnomalyThresholds{
			RiseDelta1h:    30,
			RiseDelta3h:    50,
			FallDelta1h:    30,
			ColorIndex:     0.3,
			TurbulenceJump: 40,
		}
	}
	if s.Anomaly.EmitThreshold == 0 {
		s.Anomaly.EmitThreshold = 0.3
	}
	if s.Risk.InferenceTimeout == 0 {
		s.Risk.InferenceTimeout = 5 * time.Second
	}
	if s.Risk.TopFactors == 0 {
		s.Risk.TopFactors = 6
	}
	if s.Risk.HorizonHours == 0 {
		s.Risk.HorizonHours = 6
	}
}

// DefaultColorEnvelopes returns the 6 built-in water color class envelopes.
// Order matters: envelopes are matched first to last, so overlapping classes
// resolve to the earlier, higher-priority class.
func DefaultColorEnvelopes() []HSVEnvelope {
	return []HSVEnvelope{
		{Class: "polluted", HueMin: 60, HueMax: 180, SatMin: 80, SatMax: 255, ValMin: 20, ValMax: 140, ClassWeight: 1.0},
		{Class: "muddy", HueMin: 10, HueMax: 50, SatMin: 60, SatMax: 255, ValMin: 40, ValMax: 200, ClassWeight: 0.9},
		{Class: "green", HueMin: 70, HueMax: 160, SatMin: 40, SatMax: 200, ValMin: 60, ValMax: 220, ClassWeight: 0.4},
		{Class: "silt", HueMin: 20, HueMax: 60, SatMin: 20, SatMax: 120, ValMin: 100, ValMax: 255, ClassWeight: 0.6},
		{Class: "dark", HueMin: 0, HueMax: 360, SatMin: 0, SatMax: 255, ValMin: 0, ValMax: 60, ClassWeight: 0.5},
		{Class: "clear", HueMin: 160, HueMax: 260, SatMin: 0, SatMax: 90, ValMin: 90, ValMax: 255, ClassWeight: 0.1},
	}
}
