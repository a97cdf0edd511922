package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Storage  StorageConfig  `json:"storage"`
	Dispatch DispatchConfig `json:"dispatch"`
	API      APIConfig      `json:"api"`
}

type TelegramConfig struct {
	BotToken        string `json:"bot_token"`
	OwnerChatID     string `json:"owner_chat_id"`
	APIRoot         string `json:"api_root"`
	PollIntervalSec int    `json:"poll_interval_sec"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

type DispatchConfig struct {
	TickSeconds      int    `json:"tick_seconds"`
	NotifyTimeoutSec int    `json:"notify_timeout_sec"`
	BriefingTime     string `json:"briefing_time"`
}

type APIConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func DefaultPath() string {
	return filepath.Join("config", "config.json")
}

// NewManager loads the config file at path, creating it with defaults when
// it does not exist.
func NewManager(path string) (*Manager, error) {
	mgr := &Manager{
		path: path,
		cfg:  defaultConfig(),
	}
	if err := mgr.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := mgr.save(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Update(apply func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.cfg)
	applyDefaults(&m.cfg)
	if err := m.saveLocked(); err != nil {
		return Config{}, err
	}
	return m.cfg, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.cfg = fileCfg
	applyDefaults(&m.cfg)
	return nil
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

// Validate reports the settings the bot cannot start without. Defaults
// cannot fill these in, so they are checked separately.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return errors.New("telegram.bot_token is required")
	}
	if strings.TrimSpace(cfg.Telegram.OwnerChatID) == "" {
		return errors.New("telegram.owner_chat_id is required")
	}
	return nil
}

// LoadConfigFile reads and normalizes a config file without mutating it
// on disk.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			DataDir: "data",
		},
		Dispatch: DispatchConfig{
			TickSeconds:      30,
			NotifyTimeoutSec: 10,
			BriefingTime:     "08:00",
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:8990",
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.PollIntervalSec <= 0 {
		cfg.Telegram.PollIntervalSec = 2
	}
	if cfg.Telegram.TimeoutSeconds <= 0 {
		cfg.Telegram.TimeoutSeconds = 20
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Dispatch.TickSeconds <= 0 {
		cfg.Dispatch.TickSeconds = 30
	}
	if cfg.Dispatch.NotifyTimeoutSec <= 0 {
		cfg.Dispatch.NotifyTimeoutSec = 10
	}
	if strings.TrimSpace(cfg.Dispatch.BriefingTime) == "" {
		cfg.Dispatch.BriefingTime = "08:00"
	}
	if strings.TrimSpace(cfg.API.ListenAddr) == "" {
		cfg.API.ListenAddr = "127.0.0.1:8990"
	}
}
