package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if cfg.Server.Addr == "" {
		return ErrInvalid("server.addr is required")
	}
	if cfg.Server.BroadcastIntervalMs <= 0 {
		return ErrInvalid("server.broadcastIntervalMs must be > 0")
	}
	if cfg.Server.ReadLimitBytes < 0 {
		return ErrInvalid("server.readLimitBytes must be >= 0")
	}
	if cfg.Candles.IntervalSec <= 0 {
		return ErrInvalid("candles.intervalSec must be > 0")
	}
	if cfg.Candles.RetentionMin < 0 {
		return ErrInvalid("candles.retentionMin must be >= 0")
	}
	if cfg.Candles.RetentionMin > 0 {
		if _, err := cron.ParseStandard(cfg.Candles.PruneCron); err != nil {
			return ErrInvalid(fmt.Sprintf("candles.pruneCron %q: %v", cfg.Candles.PruneCron, err))
		}
	}
	if cfg.Candles.MaxPerSymbol < 0 {
		return ErrInvalid("candles.maxPerSymbol must be >= 0")
	}
	if len(cfg.Symbols) == 0 {
		return ErrInvalid("symbols config is required")
	}
	if cfg.Generator.Enabled && cfg.Generator.TickMs <= 0 {
		return ErrInvalid("generator.tickMs must be > 0")
	}
	for sym, p := range cfg.Generator.BasePrices {
		if p < 0 {
			return ErrInvalid(fmt.Sprintf("generator.basePrices[%s] must be >= 0", sym))
		}
	}
	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			return ErrInvalid("redis.addr is required when redis is enabled")
		}
		if cfg.Redis.Channel == "" {
			return ErrInvalid("redis.channel is required when redis is enabled")
		}
	}
	if cfg.Alerts.Enabled {
		if cfg.Alerts.StaleAfterSec <= 0 {
			return ErrInvalid("alerts.staleAfterSec must be > 0")
		}
		if cfg.Alerts.ThrottleSec < 0 {
			return ErrInvalid("alerts.throttleSec must be >= 0")
		}
		if _, err := cron.ParseStandard(cfg.Alerts.CheckCron); err != nil {
			return ErrInvalid(fmt.Sprintf("alerts.checkCron %q: %v", cfg.Alerts.CheckCron, err))
		}
	}
	if cfg.Network.Port < 0 || cfg.Network.Port > 65535 {
		return ErrInvalid(fmt.Sprintf("network.port %d out of range", cfg.Network.Port))
	}
	return nil
}
