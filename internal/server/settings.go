package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/nestguide/internal/config"
)

const (
	// DefaultHost is the loopback interface used when no host is configured.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default TCP port for the session API.
	DefaultPort = 8080
	// DefaultMaxBodyBytes limits request payloads to 64 KB.
	DefaultMaxBodyBytes int64 = 64 << 10
	// DefaultSessionTTL expires sessions nobody touched for half an hour.
	DefaultSessionTTL = 30 * time.Minute
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the HTTP session API.
type Settings struct {
	Host         string
	Port         int
	Region       string
	MaxBodyBytes int64
	SessionTTL   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from the loaded nestguide.yaml. Env
// overrides were already applied by config.Load.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{Port: DefaultPort}
	if cfg != nil {
		settings.Host = cfg.Server.Host
		settings.Port = cfg.Server.Port
		settings.Region = cfg.Region
		settings.MaxBodyBytes = cfg.Server.MaxBodyBytes
		settings.SessionTTL = cfg.Server.SessionTTL
	}
	settings.normalize()
	return settings
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	// Port 0 is kept so tests can bind an ephemeral port.
	if s.Port < 0 || s.Port > 65535 {
		s.Port = DefaultPort
	}
	s.Region = strings.TrimSpace(s.Region)
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = DefaultSessionTTL
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}
