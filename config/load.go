package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stock-tracker-go/infrastructure/logger"
	"stock-tracker-go/network"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Candles   CandleConfig    `yaml:"candles"`
	Symbols   []string        `yaml:"symbols"`
	Generator GeneratorConfig `yaml:"generator"`
	Redis     RedisConfig     `yaml:"redis"`
	Network   NetworkConfig   `yaml:"network"`
	Alerts    AlertConfig     `yaml:"alerts"`
	Log       logger.Config   `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Addr                string `yaml:"addr"`
	BroadcastIntervalMs int    `yaml:"broadcastIntervalMs"` // 进行中K线的推送间隔
	ReadLimitBytes      int64  `yaml:"readLimitBytes"`      // 客户端订阅消息大小上限
}

type CandleConfig struct {
	IntervalSec  int    `yaml:"intervalSec"`
	RetentionMin int    `yaml:"retentionMin"` // 超过该时长的K线会被清理
	MaxPerSymbol int    `yaml:"maxPerSymbol"`
	PruneCron    string `yaml:"pruneCron"`
}

// GeneratorConfig 模拟成交源。
type GeneratorConfig struct {
	Enabled    bool               `yaml:"enabled"`
	TickMs     int                `yaml:"tickMs"`
	Seed       int64              `yaml:"seed"`
	BasePrices map[string]float64 `yaml:"basePrices"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// NetworkConfig 客户端使用的开发地址表。
type NetworkConfig struct {
	Port        int               `yaml:"port"`
	DefaultHost string            `yaml:"defaultHost"`
	Hosts       map[string]string `yaml:"hosts"`
}

// Resolver 把配置转换成 network.Resolver；平台名统一小写。
func (n NetworkConfig) Resolver() *network.Resolver {
	r := &network.Resolver{
		Port:        n.Port,
		DefaultHost: n.DefaultHost,
		Hosts:       make(map[network.Platform]string, len(n.Hosts)),
	}
	for p, h := range n.Hosts {
		r.Hosts[network.Platform(strings.ToLower(strings.TrimSpace(p)))] = h
	}
	return r
}

// AlertConfig 行情中断告警。
type AlertConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StaleAfterSec int    `yaml:"staleAfterSec"` // 超过该时长无成交即告警
	ThrottleSec   int    `yaml:"throttleSec"`   // 同一告警的最小间隔
	CheckCron     string `yaml:"checkCron"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 留空则关闭
}

// Default returns the values used for fields left empty in YAML.
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Server: ServerConfig{
			Addr:                ":3000",
			BroadcastIntervalMs: 500,
			ReadLimitBytes:      4096,
		},
		Candles: CandleConfig{
			IntervalSec:  60,
			RetentionMin: 20,
			PruneCron:    "@every 1m",
		},
		Symbols: []string{"AAPL", "AMZN"},
		Generator: GeneratorConfig{
			Enabled: true,
			TickMs:  250,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "stock:candles",
		},
		Network: NetworkConfig{
			Port:        3000,
			DefaultHost: "localhost",
			Hosts:       map[string]string{"android": "192.168.165.165"},
		},
		Alerts: AlertConfig{
			Enabled:       true,
			StaleAfterSec: 120,
			ThrottleSec:   300,
			CheckCron:     "@every 30s",
		},
		Log:     logger.DefaultConfig(),
		Metrics: MetricsConfig{Addr: ":9100"},
	}
}

// Load reads YAML config from path, fills defaults and validates.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	normalize(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides fields from env vars if present.
// A .env file next to the config (or in the working directory) is loaded first.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	if err := loadDotEnv(path); err != nil {
		return AppConfig{}, err
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("STOCK_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STOCK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("STOCK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("STOCK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, Validate(cfg)
}

// godotenv.Load never overrides variables that are already set.
func loadDotEnv(configPath string) error {
	for _, p := range []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"} {
		err := godotenv.Load(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("load %s: %w", p, err)
	}
	return nil
}

func normalize(cfg *AppConfig) {
	seen := make(map[string]bool, len(cfg.Symbols))
	symbols := cfg.Symbols[:0]
	for _, s := range cfg.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	cfg.Symbols = symbols

	if len(cfg.Generator.BasePrices) > 0 {
		prices := make(map[string]float64, len(cfg.Generator.BasePrices))
		for s, p := range cfg.Generator.BasePrices {
			prices[strings.ToUpper(strings.TrimSpace(s))] = p
		}
		cfg.Generator.BasePrices = prices
	}
}

func (c AppConfig) CandleInterval() time.Duration {
	return time.Duration(c.Candles.IntervalSec) * time.Second
}

func (c AppConfig) BroadcastInterval() time.Duration {
	return time.Duration(c.Server.BroadcastIntervalMs) * time.Millisecond
}

// Retention 为 0 表示不清理。
func (c AppConfig) Retention() time.Duration {
	return time.Duration(c.Candles.RetentionMin) * time.Minute
}

func (c AppConfig) GeneratorTick() time.Duration {
	return time.Duration(c.Generator.TickMs) * time.Millisecond
}

func (c AppConfig) StaleAfter() time.Duration {
	return time.Duration(c.Alerts.StaleAfterSec) * time.Second
}

func (c AppConfig) AlertThrottle() time.Duration {
	return time.Duration(c.Alerts.ThrottleSec) * time.Second
}
