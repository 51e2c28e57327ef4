package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestWatcherStopsOnContextCancel(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)
	w := Watcher{Path: path, Cooldown: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Start(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)

	w := Watcher{Path: path, Cooldown: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 1)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) {
			select {
			case ch <- cfg:
			default:
			}
		})
	}()

	updated := minimalYAML + "\nserver:\n  broadcastIntervalMs: 1500\n"
	deadline := time.After(2 * time.Second)
	for {
		// 监听可能尚未注册，重复写入直到收到回调
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		select {
		case cfg := <-ch:
			if cfg.BroadcastInterval() != 1500*time.Millisecond {
				t.Fatalf("unexpected reloaded interval %v", cfg.BroadcastInterval())
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("expected update callback")
		}
	}
}

func TestWatcherReportsInvalidReload(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)

	errs := make(chan error, 1)
	w := Watcher{Path: path, Cooldown: 5 * time.Millisecond, OnError: func(err error) {
		select {
		case errs <- err:
		default:
		}
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, func(AppConfig) { t.Errorf("invalid config must not be applied") }) }()

	deadline := time.After(2 * time.Second)
	for {
		if err := os.WriteFile(path, []byte("env: dev\nsymbols: []\n"), 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		select {
		case <-errs:
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("expected reload error")
		}
	}
}
