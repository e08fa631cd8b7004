package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"airguard/internal/model"
)

const (
	HumidityRelative = "relative"
	HumidityAbsolute = "absolute"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	Loop        LoopConfig        `json:"loop" yaml:"loop"`
	Bridge      BridgeConfig      `json:"bridge" yaml:"bridge"`
	Humidity    HumidityConfig    `json:"humidity" yaml:"humidity"`
	Calibration CalibrationConfig `json:"calibration" yaml:"calibration"`
	Drift       DriftConfig       `json:"drift" yaml:"drift"`
	History     HistoryConfig     `json:"history" yaml:"history"`
	Classifier  ClassifierConfig  `json:"classifier" yaml:"classifier"`
	Alarm       AlarmConfig       `json:"alarm" yaml:"alarm"`
	RecordLog   RecordLogConfig   `json:"record_log" yaml:"record_log"`
	Dashboard   DashboardConfig   `json:"dashboard" yaml:"dashboard"`
	API         APIConfig         `json:"api" yaml:"api"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
	Alerts      AlertsConfig      `json:"alerts" yaml:"alerts"`
}

type LoopConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
}

type BridgeConfig struct {
	Driver string             `json:"driver" yaml:"driver"`
	HTTP   HTTPBridgeConfig   `json:"http" yaml:"http"`
	Replay ReplayBridgeConfig `json:"replay" yaml:"replay"`
	Kafka  KafkaConfig        `json:"kafka" yaml:"kafka"`
}

type HTTPBridgeConfig struct {
	Addr    string        `json:"addr" yaml:"addr"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type ReplayBridgeConfig struct {
	Path string `json:"path" yaml:"path"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type HumidityConfig struct {
	Model               string  `json:"model" yaml:"model"`
	Coefficient         float64 `json:"coefficient" yaml:"coefficient"`
	ReferencePct        float64 `json:"reference_pct" yaml:"reference_pct"`
	AbsoluteCoefficient float64 `json:"absolute_coefficient" yaml:"absolute_coefficient"`
}

type CalibrationConfig struct {
	Steps          int     `json:"steps" yaml:"steps"`
	Smoothing      bool    `json:"smoothing" yaml:"smoothing"`
	SmoothingAlpha float64 `json:"smoothing_alpha" yaml:"smoothing_alpha"`
}

type DriftConfig struct {
	Enabled             bool    `json:"enabled" yaml:"enabled"`
	Window              int     `json:"window" yaml:"window"`
	Blend               float64 `json:"blend" yaml:"blend"`
	ReportThresholdOhms float64 `json:"report_threshold_ohms" yaml:"report_threshold_ohms"`
}

// HistoryConfig sizes the VOC window shared by trend and z-score. The window
// includes the current value, so |z| can never exceed (size-1)/sqrt(size);
// Validate rejects an alarm.z_threshold at or above that bound.
type HistoryConfig struct {
	Size              int           `json:"size" yaml:"size"`
	Horizon           time.Duration `json:"horizon" yaml:"horizon"`
	TrendEpsilon      float64       `json:"trend_epsilon" yaml:"trend_epsilon"`
	TrendMinSamples   int           `json:"trend_min_samples" yaml:"trend_min_samples"`
	AnomalyMinSamples int           `json:"anomaly_min_samples" yaml:"anomaly_min_samples"`
}

type ClassifierConfig struct {
	SignatureFile  string  `json:"signature_file" yaml:"signature_file"`
	MatchThreshold float64 `json:"match_threshold" yaml:"match_threshold"`
	NominalName    string  `json:"nominal_name" yaml:"nominal_name"`
	HumidityScale  float64 `json:"humidity_scale" yaml:"humidity_scale"`
	VOCWeight      float64 `json:"voc_weight" yaml:"voc_weight"`
}

type AlarmConfig struct {
	High       float64 `json:"high" yaml:"high"`
	Low        float64 `json:"low" yaml:"low"`
	ZThreshold float64 `json:"z_threshold" yaml:"z_threshold"`
}

type RecordLogConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

type DashboardConfig struct {
	Enabled  bool             `json:"enabled" yaml:"enabled"`
	Driver   string           `json:"driver" yaml:"driver"`
	Interval time.Duration    `json:"interval" yaml:"interval"`
	Timeout  time.Duration    `json:"timeout" yaml:"timeout"`
	Adafruit AdafruitConfig   `json:"adafruit" yaml:"adafruit"`
	Influx   InfluxSinkConfig `json:"influx" yaml:"influx"`
}

type AdafruitConfig struct {
	BaseURL  string `json:"base_url" yaml:"base_url"`
	Username string `json:"username" yaml:"username"`
	Key      string `json:"key" yaml:"key"`
	KeyEnv   string `json:"key_env" yaml:"key_env"`
}

type InfluxSinkConfig struct {
	URL         string `json:"url" yaml:"url"`
	Token       string `json:"token" yaml:"token"`
	TokenEnv    string `json:"token_env" yaml:"token_env"`
	Org         string `json:"org" yaml:"org"`
	Bucket      string `json:"bucket" yaml:"bucket"`
	Measurement string `json:"measurement" yaml:"measurement"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type MetricsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Loop:     LoopConfig{Interval: 1 * time.Second},
		Bridge: BridgeConfig{
			Driver: "http",
			HTTP:   HTTPBridgeConfig{Addr: "http://127.0.0.1:5775", Timeout: 2 * time.Second},
		},
		Humidity: HumidityConfig{
			Model:               HumidityRelative,
			Coefficient:         0.017,
			ReferencePct:        40,
			AbsoluteCoefficient: 0.025,
		},
		Calibration: CalibrationConfig{Steps: 25, Smoothing: false, SmoothingAlpha: 0.7},
		Drift:       DriftConfig{Enabled: true, Window: 300, Blend: 0.01, ReportThresholdOhms: 50},
		History: HistoryConfig{
			Size:              20,
			Horizon:           30 * time.Second,
			TrendEpsilon:      0.005,
			TrendMinSamples:   5,
			AnomalyMinSamples: 10,
		},
		Classifier: ClassifierConfig{
			SignatureFile:  "signature_file.json",
			MatchThreshold: 2.5,
			NominalName:    "Normal Air",
			HumidityScale:  1,
			VOCWeight:      1,
		},
		Alarm:     AlarmConfig{High: 0.45, Low: 0.25, ZThreshold: 3.0},
		RecordLog: RecordLogConfig{Enabled: true, Path: "air_quality_log.csv"},
		Dashboard: DashboardConfig{
			Enabled:  false,
			Driver:   "adafruit",
			Interval: 15 * time.Second,
			Timeout:  5 * time.Second,
			Adafruit: AdafruitConfig{BaseURL: "https://io.adafruit.com/api/v2", KeyEnv: "AIO_KEY"},
			Influx:   InfluxSinkConfig{TokenEnv: "INFLUX_TOKEN", Measurement: "air_quality"},
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:airguard.db?_pragma=busy_timeout(5000)"},
		Metrics: MetricsConfig{StoreLimit: 1000},
		Alerts:  AlertsConfig{StoreLimit: 500},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if LooksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LooksLikeJSON reports whether the first non-blank rune opens a JSON value.
func LooksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Loop.Interval <= 0 {
		cfg.Loop.Interval = def.Loop.Interval
	}
	if cfg.Bridge.Driver == "" {
		cfg.Bridge.Driver = def.Bridge.Driver
	}
	if cfg.Bridge.HTTP.Timeout <= 0 {
		cfg.Bridge.HTTP.Timeout = def.Bridge.HTTP.Timeout
	}
	if cfg.Humidity.Model == "" {
		cfg.Humidity.Model = HumidityRelative
	}
	if cfg.Calibration.SmoothingAlpha <= 0 || cfg.Calibration.SmoothingAlpha >= 1 {
		cfg.Calibration.SmoothingAlpha = def.Calibration.SmoothingAlpha
	}
	if cfg.Drift.Blend <= 0 {
		cfg.Drift.Blend = def.Drift.Blend
	}
	if cfg.History.Horizon <= 0 {
		cfg.History.Horizon = def.History.Horizon
	}
	if cfg.History.TrendMinSamples <= 0 {
		cfg.History.TrendMinSamples = def.History.TrendMinSamples
	}
	if cfg.History.AnomalyMinSamples <= 0 {
		cfg.History.AnomalyMinSamples = def.History.AnomalyMinSamples
	}
	if cfg.History.TrendEpsilon <= 0 {
		cfg.History.TrendEpsilon = def.History.TrendEpsilon
	}
	if cfg.Classifier.NominalName == "" {
		cfg.Classifier.NominalName = def.Classifier.NominalName
	}
	if cfg.Classifier.HumidityScale <= 0 {
		cfg.Classifier.HumidityScale = 1
	}
	if cfg.Classifier.VOCWeight <= 0 {
		cfg.Classifier.VOCWeight = 1
	}
	if cfg.Alarm.ZThreshold <= 0 {
		cfg.Alarm.ZThreshold = def.Alarm.ZThreshold
	}
	if cfg.Dashboard.Interval <= 0 {
		cfg.Dashboard.Interval = def.Dashboard.Interval
	}
	if cfg.Dashboard.Timeout <= 0 {
		cfg.Dashboard.Timeout = def.Dashboard.Timeout
	}
	if cfg.Dashboard.Adafruit.BaseURL == "" {
		cfg.Dashboard.Adafruit.BaseURL = def.Dashboard.Adafruit.BaseURL
	}
	if cfg.Dashboard.Influx.Measurement == "" {
		cfg.Dashboard.Influx.Measurement = def.Dashboard.Influx.Measurement
	}
	if cfg.Metrics.StoreLimit <= 0 {
		cfg.Metrics.StoreLimit = def.Metrics.StoreLimit
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = def.Alerts.StoreLimit
	}
}

func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Bridge.Driver) {
	case "http":
		if cfg.Bridge.HTTP.Addr == "" {
			return errors.New("bridge.http.addr required when bridge.driver is http")
		}
	case "replay":
		if cfg.Bridge.Replay.Path == "" {
			return errors.New("bridge.replay.path required when bridge.driver is replay")
		}
	case "kafka":
		if len(cfg.Bridge.Kafka.Brokers) == 0 || cfg.Bridge.Kafka.Topic == "" || cfg.Bridge.Kafka.GroupID == "" {
			return errors.New("bridge.kafka requires brokers, topic, group_id")
		}
	default:
		return fmt.Errorf("unsupported bridge.driver: %q", cfg.Bridge.Driver)
	}
	switch cfg.Humidity.Model {
	case HumidityRelative, HumidityAbsolute:
	default:
		return fmt.Errorf("humidity.model must be %q or %q, got %q", HumidityRelative, HumidityAbsolute, cfg.Humidity.Model)
	}
	if cfg.Calibration.Steps <= 0 {
		return errors.New("calibration.steps must be > 0")
	}
	if cfg.Drift.Enabled && cfg.Drift.Window <= 0 {
		return errors.New("drift.window must be > 0 when drift.enabled is true")
	}
	if cfg.Drift.Blend > 1 {
		return errors.New("drift.blend must be <= 1")
	}
	if cfg.History.Size <= 0 {
		return errors.New("history.size must be > 0")
	}
	if cfg.History.Size < cfg.History.TrendMinSamples || cfg.History.Size < cfg.History.AnomalyMinSamples {
		return fmt.Errorf("history.size (%d) must be at least trend_min_samples (%d) and anomaly_min_samples (%d)",
			cfg.History.Size, cfg.History.TrendMinSamples, cfg.History.AnomalyMinSamples)
	}
	if maxZ := MaxZScore(cfg.History.Size); cfg.Alarm.ZThreshold >= maxZ {
		return fmt.Errorf("alarm.z_threshold (%v) is unreachable with history.size %d (max |z| %.3f)",
			cfg.Alarm.ZThreshold, cfg.History.Size, maxZ)
	}
	if cfg.Classifier.MatchThreshold <= 0 {
		return errors.New("classifier.match_threshold must be > 0")
	}
	if cfg.Alarm.Low >= cfg.Alarm.High {
		return fmt.Errorf("alarm.low (%v) must be strictly below alarm.high (%v)", cfg.Alarm.Low, cfg.Alarm.High)
	}
	if cfg.Alarm.Low <= model.VOCFloor {
		return fmt.Errorf("alarm.low (%v) must be above the VOC floor %v or ALARM can never clear", cfg.Alarm.Low, model.VOCFloor)
	}
	if cfg.RecordLog.Enabled && cfg.RecordLog.Path == "" {
		return errors.New("record_log.path required when record_log.enabled is true")
	}
	if cfg.Dashboard.Enabled {
		switch strings.ToLower(cfg.Dashboard.Driver) {
		case "adafruit":
			if cfg.Dashboard.Adafruit.Username == "" {
				return errors.New("dashboard.adafruit.username required when dashboard driver is adafruit")
			}
		case "influx":
			if cfg.Dashboard.Influx.URL == "" || cfg.Dashboard.Influx.Org == "" || cfg.Dashboard.Influx.Bucket == "" {
				return errors.New("dashboard.influx requires url, org, bucket")
			}
		default:
			return fmt.Errorf("unsupported dashboard.driver: %q", cfg.Dashboard.Driver)
		}
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	return nil
}

// MaxZScore is the largest |z| a window of n samples can produce when the
// scored value is itself in the window.
func MaxZScore(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n-1) / math.Sqrt(float64(n))
}

// Secret returns value, or the named environment variable when value is empty.
func Secret(value, env string) string {
	if value != "" || env == "" {
		return value
	}
	return os.Getenv(env)
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
