package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ampm/internal/server"
	"github.com/danmuck/ampm/internal/telemetry"
	"github.com/danmuck/ampm/internal/transport"
)

// ClientConfig is the sample host application's setup.
type ClientConfig struct {
	Telemetry telemetry.Config
	Tick      time.Duration
	LogFile   string
}

// ServerConfig is the listening server's setup.
type ServerConfig struct {
	Server  server.Config
	LogFile string
}

type clientFile struct {
	Transport  string `toml:"transport"`
	LocalHost  string `toml:"local_host"`
	LocalPort  int    `toml:"local_port"`
	DestHost   string `toml:"dest_host"`
	SendPort   int    `toml:"send_port"`
	ListenHost string `toml:"listen_host"`
	RecvPort   int    `toml:"recv_port"`
	ConfigURL  string `toml:"config_url"`
	Tick       string `toml:"tick"`
	LogFile    string `toml:"log_file"`
}

type serverFile struct {
	ID               string   `toml:"id"`
	Transport        string   `toml:"transport"`
	OSCReceiveAddr   string   `toml:"osc_receive_addr"`
	OSCSendPort      int      `toml:"osc_send_port"`
	HTTPAddr         string   `toml:"http_addr"`
	ConfigPath       string   `toml:"config_path"`
	KillClientsAfter string   `toml:"kill_clients_after"`
	UpdateThrottle   string   `toml:"update_throttle"`
	RecentLogs       int      `toml:"recent_logs"`
	CorsOrigins      []string `toml:"cors_origins"`
	LogFile          string   `toml:"log_file"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Telemetry: telemetry.DefaultConfig(),
		Tick:      time.Second,
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{Server: server.DefaultConfig()}
}

func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config (%s): %w", path, err)
	}

	if meta.IsDefined("transport") {
		mode, err := transport.ParseMode(raw.Transport)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse transport: %w", err)
		}
		cfg.Telemetry.Transport = mode
	}
	if meta.IsDefined("local_host") {
		cfg.Telemetry.LocalHost = strings.TrimSpace(raw.LocalHost)
	}
	if meta.IsDefined("local_port") {
		cfg.Telemetry.LocalPort = raw.LocalPort
	}
	if meta.IsDefined("dest_host") {
		cfg.Telemetry.DestHost = strings.TrimSpace(raw.DestHost)
	}
	if meta.IsDefined("send_port") {
		cfg.Telemetry.DestPort = raw.SendPort
	}
	if meta.IsDefined("listen_host") {
		cfg.Telemetry.ListenHost = strings.TrimSpace(raw.ListenHost)
	}
	if meta.IsDefined("recv_port") {
		cfg.Telemetry.RecvPort = raw.RecvPort
	}
	if meta.IsDefined("config_url") {
		cfg.Telemetry.ConfigURL = strings.TrimSpace(raw.ConfigURL)
	}
	if meta.IsDefined("tick") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Tick))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse tick: %w", err)
		}
		cfg.Tick = d
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}

	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("load server config (%s): %w", path, err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.Server.ID = id
		}
	}
	if meta.IsDefined("transport") {
		mode, err := transport.ParseMode(raw.Transport)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse transport: %w", err)
		}
		cfg.Server.Transport = mode
	}
	if meta.IsDefined("osc_receive_addr") {
		cfg.Server.OSCReceiveAddr = strings.TrimSpace(raw.OSCReceiveAddr)
	}
	if meta.IsDefined("osc_send_port") {
		cfg.Server.OSCSendPort = raw.OSCSendPort
	}
	if meta.IsDefined("http_addr") {
		cfg.Server.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("config_path") {
		cfg.Server.ConfigPath = strings.TrimSpace(raw.ConfigPath)
	}
	if meta.IsDefined("kill_clients_after") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.KillClientsAfter))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse kill_clients_after: %w", err)
		}
		cfg.Server.KillClientsAfter = d
	}
	if meta.IsDefined("update_throttle") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.UpdateThrottle))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse update_throttle: %w", err)
		}
		cfg.Server.UpdateThrottle = d
	}
	if meta.IsDefined("recent_logs") {
		cfg.Server.RecentLogs = raw.RecentLogs
	}
	if meta.IsDefined("cors_origins") {
		cfg.Server.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}

	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if err := cfg.Telemetry.Validate(); err != nil {
		return fmt.Errorf("client config invalid: %w", err)
	}
	if cfg.Tick <= 0 {
		return fmt.Errorf("client config tick must be positive")
	}
	if strings.TrimSpace(cfg.Telemetry.ConfigURL) == "" {
		return fmt.Errorf("client config missing config_url")
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	s := cfg.Server
	if strings.TrimSpace(s.OSCReceiveAddr) == "" {
		return fmt.Errorf("server config missing osc_receive_addr")
	}
	if strings.TrimSpace(s.HTTPAddr) == "" {
		return fmt.Errorf("server config missing http_addr")
	}
	if s.OSCSendPort <= 0 || s.OSCSendPort > 65535 {
		return fmt.Errorf("server config osc_send_port out of range: %d", s.OSCSendPort)
	}
	if strings.TrimSpace(s.ConfigPath) == "" {
		return fmt.Errorf("server config missing config_path")
	}
	if s.KillClientsAfter < 0 {
		return fmt.Errorf("server config kill_clients_after must not be negative")
	}
	if s.UpdateThrottle < 0 {
		return fmt.Errorf("server config update_throttle must not be negative")
	}
	return nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
