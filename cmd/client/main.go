package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"stock-tracker-go/config"
	"stock-tracker-go/infrastructure/logger"
	"stock-tracker-go/internal/hub"
	"stock-tracker-go/market"
	"stock-tracker-go/network"
	"stock-tracker-go/trend"
)

func main() {
	configPath := flag.String("config", "", "可选：从配置文件的 network 段读取地址表")
	platform := flag.String("platform", "web", "客户端平台：android, ios, web")
	host := flag.String("host", "", "覆盖平台对应的主机")
	port := flag.Int("port", network.DefaultPort, "服务端端口")
	symbols := flag.String("symbols", "AAPL,AMZN", "初始订阅（逗号分隔），之后可从 stdin 输入新的订阅")
	mode := flag.String("mode", "line", "图表模式：line 或 candlesticks")
	maxCandles := flag.Int("max", 20, "每个 symbol 保留的 K 线数量")
	flag.Parse()

	displayMode, err := trend.ParseDisplayMode(*mode)
	if err != nil {
		log.Fatalf("参数错误: %v", err)
	}
	p := network.Platform(strings.ToLower(*platform))
	portSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			portSet = true
		}
	})
	var override *int
	if portSet {
		override = port
	}
	resolver, err := newResolver(*configPath, p, *host, override)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	lg, err := logger.New(logger.Config{Level: "info", Outputs: []string{"stdout"}, Format: "console"})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := newViewer(displayMode, *maxCandles, os.Stdout)
	httpBase := resolver.BaseURL(network.HTTP, p)
	wsBase := resolver.BaseURL(network.WS, p)

	initial := hub.ParseSymbols(*symbols)
	for _, sym := range initial {
		if err := v.loadHistory(ctx, http.DefaultClient, httpBase, sym); err != nil {
			lg.LogError(err, map[string]interface{}{"action": "load_history", "symbol": sym})
		}
	}
	v.printAll()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsBase+"/ws", nil)
	if err != nil {
		lg.LogError(err, map[string]interface{}{"action": "dial", "url": wsBase + "/ws"})
		os.Exit(1)
	}
	defer conn.Close()
	lg.Info(fmt.Sprintf("connected to %s", wsBase))

	var writeMu sync.Mutex
	subscribe := func(syms []string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, []byte(strings.Join(syms, ",")))
	}
	if err := subscribe(initial); err != nil {
		lg.LogError(err, map[string]interface{}{"action": "subscribe"})
		os.Exit(1)
	}

	// stdin 每行替换整个订阅集合
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			syms := hub.ParseSymbols(scanner.Text())
			if len(syms) == 0 {
				continue
			}
			for _, sym := range syms {
				if !v.tracking(sym) {
					if err := v.loadHistory(ctx, http.DefaultClient, httpBase, sym); err != nil {
						lg.LogError(err, map[string]interface{}{"action": "load_history", "symbol": sym})
					}
				}
			}
			v.retain(syms)
			if err := subscribe(syms); err != nil {
				lg.LogError(err, map[string]interface{}{"action": "subscribe"})
				return
			}
			lg.Info(fmt.Sprintf("subscribed to %s", strings.Join(syms, ",")))
		}
	}()

	go func() {
		<-ctx.Done()
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		writeMu.Unlock()
		_ = conn.Close()
	}()

	for {
		var u market.Update
		if err := conn.ReadJSON(&u); err != nil {
			if ctx.Err() == nil {
				lg.LogError(err, map[string]interface{}{"action": "read"})
			}
			return
		}
		v.print(v.apply(u))
	}
}

// newResolver 以配置文件（为空时用默认值）为基础，命令行参数覆盖其中的主机和端口。
func newResolver(configPath string, p network.Platform, host string, port *int) (*network.Resolver, error) {
	resolver := network.DefaultResolver()
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		resolver = cfg.Network.Resolver()
	}
	if port != nil {
		resolver.Port = *port
	}
	if host != "" {
		resolver.Hosts[p] = host
	}
	return resolver, nil
}

// viewer 为每个订阅的 symbol 维护一个 trend.Tracker。
type viewer struct {
	mode       trend.DisplayMode
	maxCandles int
	out        io.Writer

	mu       sync.Mutex
	trackers map[string]*trend.Tracker
}

func newViewer(mode trend.DisplayMode, maxCandles int, out io.Writer) *viewer {
	return &viewer{
		mode:       mode,
		maxCandles: maxCandles,
		out:        out,
		trackers:   make(map[string]*trend.Tracker),
	}
}

func (v *viewer) tracker(symbol string) *trend.Tracker {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.trackers[symbol]
	if !ok {
		t = trend.NewTracker(v.mode)
		v.trackers[symbol] = t
	}
	return t
}

func (v *viewer) tracking(symbol string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.trackers[symbol]
	return ok
}

// retain 丢弃不在 symbols 中的 tracker。
func (v *viewer) retain(symbols []string) {
	keep := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		keep[s] = true
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for s := range v.trackers {
		if !keep[s] {
			delete(v.trackers, s)
		}
	}
}

// apply 把推送的 K 线并入对应 tracker，返回最新一行。
func (v *viewer) apply(u market.Update) trend.Row {
	t := v.tracker(u.Candle.Symbol)
	t.Append(u.Candle)
	res := t.Trim(v.maxCandles)
	return trend.RowFrom(u.Candle.Symbol, res)
}

func (v *viewer) loadHistory(ctx context.Context, client *http.Client, base, symbol string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		base+"/stocks-candles?symbol="+url.QueryEscape(symbol), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET candles for %s: status %d", symbol, resp.StatusCode)
	}
	var candles []market.Candle
	if err := json.NewDecoder(resp.Body).Decode(&candles); err != nil {
		return fmt.Errorf("decode candles for %s: %w", symbol, err)
	}
	t := v.tracker(symbol)
	t.Update(candles)
	t.Trim(v.maxCandles)
	return nil
}

func (v *viewer) printAll() {
	v.mu.Lock()
	symbols := make([]string, 0, len(v.trackers))
	for s := range v.trackers {
		symbols = append(symbols, s)
	}
	v.mu.Unlock()
	sort.Strings(symbols)
	for _, s := range symbols {
		v.print(trend.RowFrom(s, v.tracker(s).Current()))
	}
}

func (v *viewer) print(r trend.Row) {
	fmt.Fprintf(v.out, "%-6s %12s %22s %-5s %d pts\n", r.Symbol, r.Price, r.Change, r.Color, len(r.Series))
}
