package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaultsFillsDispatchSettings(t *testing.T) {
	cfg := Config{}

	applyDefaults(&cfg)

	if cfg.Dispatch.TickSeconds != 30 {
		t.Fatalf("unexpected tick: %d", cfg.Dispatch.TickSeconds)
	}
	if cfg.Dispatch.NotifyTimeoutSec != 10 {
		t.Fatalf("unexpected notify timeout: %d", cfg.Dispatch.NotifyTimeoutSec)
	}
	if cfg.Dispatch.BriefingTime != "08:00" {
		t.Fatalf("unexpected briefing time: %q", cfg.Dispatch.BriefingTime)
	}
	if cfg.Telegram.PollIntervalSec != 2 {
		t.Fatalf("unexpected poll interval: %d", cfg.Telegram.PollIntervalSec)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Dispatch: DispatchConfig{TickSeconds: 5, BriefingTime: "07:30"},
		Storage:  StorageConfig{DataDir: "/var/lib/focusbot"},
	}

	applyDefaults(&cfg)

	if cfg.Dispatch.TickSeconds != 5 {
		t.Fatalf("tick overwritten: %d", cfg.Dispatch.TickSeconds)
	}
	if cfg.Dispatch.BriefingTime != "07:30" {
		t.Fatalf("briefing time overwritten: %q", cfg.Dispatch.BriefingTime)
	}
	if cfg.Storage.DataDir != "/var/lib/focusbot" {
		t.Fatalf("data dir overwritten: %q", cfg.Storage.DataDir)
	}
}

func TestManagerCreatesFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.json")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if got := mgr.Get().API.ListenAddr; got != "127.0.0.1:8990" {
		t.Fatalf("unexpected listen addr: %q", got)
	}
}

func TestManagerRoundTripsUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.Update(func(cfg *Config) {
		cfg.Telegram.BotToken = "secret"
		cfg.Telegram.OwnerChatID = "42"
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Get().Telegram.BotToken; got != "secret" {
		t.Fatalf("token lost: %q", got)
	}
}

func TestValidateRequiresOwnerAndToken(t *testing.T) {
	cfg := defaultConfig()
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing token")
	}
	cfg.Telegram.BotToken = "token"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing owner chat")
	}
	cfg.Telegram.OwnerChatID = "42"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
