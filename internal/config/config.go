// Package config loads server settings from a .env file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every server setting.
type Config struct {
	TCPAddr           string
	WSAddr            string
	HTTPAddr          string
	UnifiedAddr       string // empty disables the single-port listener
	BroadcastCapacity int
	MailboxCapacity   int
	ShutdownTimeout   time.Duration
	LogLevel          string
	LogFormat         string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		TCPAddr:           ":8080",
		WSAddr:            ":8081",
		HTTPAddr:          ":8082",
		BroadcastCapacity: 1000,
		MailboxCapacity:   256,
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads .env (if present), then the environment, then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse(os.LookupEnv, args)
}

// Parse builds a Config from lookup and args without touching the process
// environment.
func Parse(lookup func(string) (string, bool), args []string) (Config, error) {
	cfg := Default()
	var errs []error

	envString(lookup, "CHAT_TCP_ADDR", &cfg.TCPAddr)
	envString(lookup, "CHAT_WS_ADDR", &cfg.WSAddr)
	envString(lookup, "CHAT_HTTP_ADDR", &cfg.HTTPAddr)
	envString(lookup, "CHAT_UNIFIED_ADDR", &cfg.UnifiedAddr)
	errs = append(errs, envInt(lookup, "CHAT_BROADCAST_CAPACITY", &cfg.BroadcastCapacity))
	errs = append(errs, envInt(lookup, "CHAT_MAILBOX_CAPACITY", &cfg.MailboxCapacity))
	errs = append(errs, envDuration(lookup, "CHAT_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout))
	envString(lookup, "LOG_LEVEL", &cfg.LogLevel)
	envString(lookup, "LOG_FORMAT", &cfg.LogFormat)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	fset := flag.NewFlagSet("server", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "TCP listen address")
	fset.StringVar(&cfg.WSAddr, "ws", cfg.WSAddr, "WebSocket listen address")
	fset.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP API listen address")
	fset.StringVar(&cfg.UnifiedAddr, "unified", cfg.UnifiedAddr, "single-port listen address for both protocols")
	fset.IntVar(&cfg.BroadcastCapacity, "broadcast-capacity", cfg.BroadcastCapacity, "envelopes retained by the broadcast")
	fset.IntVar(&cfg.MailboxCapacity, "mailbox-capacity", cfg.MailboxCapacity, "events queued per gateway user")
	fset.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fset.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	if err := fset.Parse(args); err != nil {
		return Config{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.TCPAddr == "" {
		errs = append(errs, errors.New("tcp address is empty"))
	}
	if c.WSAddr == "" {
		errs = append(errs, errors.New("websocket address is empty"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is empty"))
	}
	if c.BroadcastCapacity <= 0 {
		errs = append(errs, fmt.Errorf("broadcast capacity must be positive, got %d", c.BroadcastCapacity))
	}
	if c.MailboxCapacity <= 0 {
		errs = append(errs, fmt.Errorf("mailbox capacity must be positive, got %d", c.MailboxCapacity))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by c.
func NewLogger(c Config, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func envString(lookup func(string) (string, bool), key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func envInt(lookup func(string) (string, bool), key string, dst *int) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(lookup func(string) (string, bool), key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
