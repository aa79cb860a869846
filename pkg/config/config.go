package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Mock     MockConfig     `yaml:"mock"`
	Output   OutputConfig   `yaml:"output"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Publish  PublishConfig  `yaml:"publish"`
	Log      LogConfig      `yaml:"log"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate"`
	StartupDelay time.Duration `yaml:"startup_delay"` // The board resets when the port opens
}

// AnalysisConfig contains estimator parameters that are safe to tune.
// Smoothing window, peak distance and the valid-peak rule are fixed in the
// oscillometry package.
type AnalysisConfig struct {
	MinSamples int    `yaml:"min_samples"` // Live buffers shorter than this are not analysed
	Method     string `yaml:"method"`      // "ordinal" or "ratio"
}

// MockConfig contains synthetic cuff configuration.
type MockConfig struct {
	SampleRate           time.Duration `yaml:"sample_rate"`
	InflationSamples     int           `yaml:"inflation_samples"`
	DeflationSamples     int           `yaml:"deflation_samples"`
	PeakPressure         float64       `yaml:"peak_pressure"`         // mmHg at the inflation apex
	EndPressure          float64       `yaml:"end_pressure"`          // mmHg when deflation ends
	OscillationPeriod    int           `yaml:"oscillation_period"`    // Samples per heart beat
	OscillationAmplitude float64       `yaml:"oscillation_amplitude"` // mmHg at the strongest beat
	NoiseLines           int           `yaml:"noise_lines"`           // Emit a garbage line every N samples (0 = never)
	Systolic             float64       `yaml:"systolic"`              // Reported in the HASIL line
	Diastolic            float64       `yaml:"diastolic"`
	BPM                  float64       `yaml:"bpm"`
}

// OutputConfig controls where session CSV and log files are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ArchiveConfig points at the SQLite session archive. Empty path disables it.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// PublishConfig selects where estimation results are published.
type PublishConfig struct {
	Backend string `yaml:"backend"` // "none", "nats" or "mqtt"
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"` // NATS subject or MQTT topic
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         "COM14", // "/dev/ttyACM0" or "/dev/ttyUSB0" on Linux
			BaudRate:     115200,
			StartupDelay: 2 * time.Second,
		},
		Analysis: AnalysisConfig{
			MinSamples: 50,
			Method:     "ordinal",
		},
		Mock: MockConfig{
			SampleRate:           10 * time.Millisecond,
			InflationSamples:     60,
			DeflationSamples:     1000,
			PeakPressure:         180,
			EndPressure:          40,
			OscillationPeriod:    20,
			OscillationAmplitude: 3,
			NoiseLines:           97,
			Systolic:             120,
			Diastolic:            80,
			BPM:                  72,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Publish: PublishConfig{
			Backend: "none",
			Subject: "nibp.results",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Analysis.MinSamples == 0 {
		c.Analysis.MinSamples = def.Analysis.MinSamples
	}
	if c.Analysis.Method == "" {
		c.Analysis.Method = def.Analysis.Method
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.InflationSamples == 0 {
		c.Mock.InflationSamples = def.Mock.InflationSamples
	}
	if c.Mock.DeflationSamples == 0 {
		c.Mock.DeflationSamples = def.Mock.DeflationSamples
	}
	if c.Mock.PeakPressure == 0 {
		c.Mock.PeakPressure = def.Mock.PeakPressure
	}
	if c.Mock.EndPressure == 0 {
		c.Mock.EndPressure = def.Mock.EndPressure
	}
	if c.Mock.OscillationPeriod == 0 {
		c.Mock.OscillationPeriod = def.Mock.OscillationPeriod
	}
	if c.Mock.OscillationAmplitude == 0 {
		c.Mock.OscillationAmplitude = def.Mock.OscillationAmplitude
	}

	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}

	if c.Publish.Backend == "" {
		c.Publish.Backend = def.Publish.Backend
	}
	if c.Publish.Subject == "" {
		c.Publish.Subject = def.Publish.Subject
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}
