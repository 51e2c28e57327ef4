package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stock-tracker-go/config"
	"stock-tracker-go/infrastructure/alert"
	"stock-tracker-go/infrastructure/logger"
	"stock-tracker-go/infrastructure/monitor"
	"stock-tracker-go/internal/api"
	"stock-tracker-go/internal/bus"
	"stock-tracker-go/internal/hub"
	"stock-tracker-go/internal/scheduler"
	"stock-tracker-go/market"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg        *config.AppConfig
	configPath string

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor

	// 核心服务
	market    *market.Service
	throttle  *market.Throttle
	generator *market.Generator
	bus       bus.Bus
	hub       *hub.Hub
	api       *api.Handler
	scheduler *scheduler.Scheduler
	staleFeed *alert.StaleFeedChecker

	// HTTP服务器
	apiServer     *httpServerComponent
	metricsServer *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 从配置文件创建 Container，并在 Start 后监听配置变更
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	c := NewWithConfig(cfg)
	c.configPath = configPath
	return c, nil
}

// NewWithConfig 使用已加载的配置创建 Container（不监听配置文件）
func NewWithConfig(cfg config.AppConfig) *Container {
	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildBus(); err != nil {
		return fmt.Errorf("build bus failed: %w", err)
	}

	c.buildCoreServices()
	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(monitor.DefaultConfig())

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildBus() error {
	if !c.cfg.Redis.Enabled {
		c.bus = bus.NewLocal(256)
		c.logger.Info("using in-process bus")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := bus.NewRedis(ctx, c.cfg.Redis.Addr, c.cfg.Redis.Password, c.cfg.Redis.DB, c.cfg.Redis.Channel)
	if err != nil {
		return err
	}
	r.OnDecodeError = func(err error) {
		c.monitor.RecordBusError()
		c.logger.LogError(err, map[string]interface{}{"action": "decode_update"})
	}
	c.bus = r
	c.logger.Logger.Info(fmt.Sprintf("using redis bus %s channel %s", c.cfg.Redis.Addr, c.cfg.Redis.Channel))
	return nil
}

func (c *Container) buildCoreServices() {
	agg := market.NewCandleAggregator(c.cfg.CandleInterval())
	store := market.NewMemoryStore(c.cfg.Candles.MaxPerSymbol)
	c.market = market.NewService(agg, store, market.NewPublisher(1024))
	c.market.OnClosed = func(candle market.Candle) {
		c.monitor.RecordCandleClosed(candle.Symbol, candle.Close)
		c.logger.LogCandle("closed", candle.Symbol, map[string]interface{}{
			"timestamp": candle.Timestamp,
			"open":      candle.Open,
			"high":      candle.High,
			"low":       candle.Low,
			"close":     candle.Close,
		})
	}

	c.throttle = market.NewThrottle(c.cfg.BroadcastInterval())

	if c.cfg.Generator.Enabled {
		c.generator = market.NewGenerator(c.cfg.Symbols, c.cfg.GeneratorTick(), c.cfg.Generator.Seed)
		for sym, p := range c.cfg.Generator.BasePrices {
			c.generator.BasePrices[sym] = p
		}
	}

	c.hub = hub.New(hub.Config{ReadLimitBytes: c.cfg.Server.ReadLimitBytes}, c.logger, c.monitor)

	c.api = api.New(c.market, c.cfg.Symbols, c.logger, c.monitor)
	c.api.Health = c.HealthCheck

	c.scheduler = scheduler.New(c.market, c.cfg.Retention(), c.logger, c.monitor)

	if c.cfg.Alerts.Enabled {
		alerts := alert.NewManager([]alert.Channel{alert.NewLogChannel("log", c.logger)}, c.cfg.AlertThrottle(), c.monitor)
		c.staleFeed = alert.NewStaleFeedChecker(c.market, c.cfg.Symbols, c.cfg.StaleAfter(), alerts)
	}

	c.logger.Info("core services built")
}

func (c *Container) registerLifecycleComponents() {
	if err := c.scheduler.Register(c.cfg.Candles.PruneCron); err != nil {
		// Validate 已检查过表达式，这里只记录
		c.logger.LogError(err, map[string]interface{}{"action": "register_prune"})
	}
	if c.staleFeed != nil {
		if err := c.scheduler.AddTask("stale_feed", c.cfg.Alerts.CheckCron, c.checkStaleFeed); err != nil {
			c.logger.LogError(err, map[string]interface{}{"action": "register_stale_feed"})
		}
	}
	c.lifecycle.Register("scheduler", c.scheduler)

	// bus -> hub；同步订阅，保证之后发布的更新不会丢失
	var updates <-chan market.Update
	c.lifecycle.Register("hub_relay", &taskComponent{
		name:   "hub_relay",
		logger: c.logger,
		prepare: func(ctx context.Context) error {
			ch, err := c.bus.Subscribe(ctx)
			if err != nil {
				return fmt.Errorf("subscribe bus: %w", err)
			}
			updates = ch
			return nil
		},
		run: func(ctx context.Context) error {
			c.hub.Run(ctx, updates)
			return ctx.Err()
		},
	})

	// publisher -> throttle -> bus
	in := c.market.Publisher().Subscribe()
	c.lifecycle.Register("throttle", &taskComponent{
		name:   "throttle",
		logger: c.logger,
		run: func(ctx context.Context) error {
			c.throttle.Run(ctx, in, func(u market.Update) {
				if err := c.bus.Publish(context.Background(), u); err != nil {
					c.monitor.RecordBusError()
					c.logger.LogError(err, map[string]interface{}{"action": "publish", "symbol": u.Candle.Symbol})
				}
			})
			return ctx.Err()
		},
	})

	if c.generator != nil {
		c.lifecycle.Register("generator", &taskComponent{
			name:   "generator",
			logger: c.logger,
			run: func(ctx context.Context) error {
				return c.generator.Run(ctx, c.OnTrade)
			},
		})
	}

	mux := http.NewServeMux()
	c.api.Register(mux)
	mux.Handle("/ws", c.hub)
	c.apiServer = &httpServerComponent{
		name:       "api_server",
		handler:    mux,
		addr:       c.cfg.Server.Addr,
		logger:     c.logger,
		onShutdown: c.hub.Shutdown,
	}
	c.lifecycle.Register("api_server", c.apiServer)

	if c.cfg.Metrics.Addr != "" {
		c.metricsServer = &httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    c.cfg.Metrics.Addr,
			logger:  c.logger,
		}
		c.lifecycle.Register("metrics_server", c.metricsServer)
	}

	if c.configPath != "" {
		w := config.Watcher{
			Path: c.configPath,
			OnError: func(err error) {
				c.logger.LogError(err, map[string]interface{}{"action": "config_reload"})
			},
		}
		c.lifecycle.Register("config_watcher", &taskComponent{
			name:   "config_watcher",
			logger: c.logger,
			run: func(ctx context.Context) error {
				return w.Start(ctx, c.ApplyConfig)
			},
		})
	}
}

func (c *Container) checkStaleFeed() {
	if _, err := c.staleFeed.Check(); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stale_feed_alert"})
	}
}

// OnTrade 接收一笔成交（模拟源或外部输入）
func (c *Container) OnTrade(t market.Trade) {
	c.monitor.RecordTrade(t.Symbol)
	c.market.OnTrade(t)
}

// ApplyConfig 热更新可在运行中调整的配置：推送间隔与日志级别。
// 其余字段需要重启生效。
func (c *Container) ApplyConfig(cfg config.AppConfig) {
	c.throttle.SetInterval(cfg.BroadcastInterval())
	if err := c.logger.SetLevel(cfg.Log.Level); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "set_log_level"})
	}
	c.logger.Logger.Info(fmt.Sprintf("config reloaded: broadcast interval %s, log level %s",
		c.throttle.Interval(), c.logger.Level()))
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	if cerr := c.bus.Close(); cerr != nil {
		c.logger.LogError(cerr, map[string]interface{}{"action": "close_bus"})
	}

	c.logger.Info("container stopped")
	_ = c.logger.Close()
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// APIAddr 返回 API 实际监听地址。
func (c *Container) APIAddr() string { return c.apiServer.Addr() }

func (c *Container) Market() *market.Service { return c.market }

func (c *Container) Monitor() *monitor.Monitor { return c.monitor }

func (c *Container) Logger() *logger.Logger { return c.logger }

func (c *Container) Config() config.AppConfig { return *c.cfg }
