package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLoginURL       = "https://refreshezprintsubscription.brother-usa.com/Account/#/account/login?sessionlogout=logout"
	DefaultDeviceURL      = "https://refreshezprintsubscription.brother-usa.com/api/device/getdevicelist?checkSwap=false"
	DefaultTelegramAPIURL = "https://api.telegram.org"
)

type Config struct {
	PortalEmail      string
	PortalPassword   string
	LoginURL         string
	DeviceURL        string
	TelegramToken    string
	TelegramAPIURL   string
	AuthorizedUserID int64
	TokenFile        string
	CookieFile       string
	ListenAddr       string
	TokenTimeout     time.Duration
	LoginTimeout     time.Duration
	PollTimeout      time.Duration
	Headless         bool
	ChromePath       string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		PortalEmail:    strings.TrimSpace(os.Getenv("BROTHERBOT_PORTAL_EMAIL")),
		PortalPassword: os.Getenv("BROTHERBOT_PORTAL_PASSWORD"),
		LoginURL:       envOrDefault("BROTHERBOT_LOGIN_URL", DefaultLoginURL),
		DeviceURL:      envOrDefault("BROTHERBOT_DEVICE_URL", DefaultDeviceURL),
		TelegramToken:  strings.TrimSpace(os.Getenv("BROTHERBOT_TELEGRAM_TOKEN")),
		TelegramAPIURL: strings.TrimRight(envOrDefault("BROTHERBOT_TELEGRAM_API_URL", DefaultTelegramAPIURL), "/"),
		TokenFile:      envOrDefault("BROTHERBOT_TOKEN_FILE", ".token"),
		CookieFile:     envOrDefault("BROTHERBOT_COOKIE_FILE", ".cookies"),
		ListenAddr:     envOrDefault("BROTHERBOT_LISTEN_ADDR", "127.0.0.1:8080"),
		TokenTimeout:   time.Duration(ParsePositiveIntEnv("BROTHERBOT_TOKEN_TIMEOUT_SECONDS", 30)) * time.Second,
		LoginTimeout:   time.Duration(ParsePositiveIntEnv("BROTHERBOT_LOGIN_TIMEOUT_SECONDS", 90)) * time.Second,
		PollTimeout:    time.Duration(ParsePositiveIntEnv("BROTHERBOT_POLL_TIMEOUT_SECONDS", 30)) * time.Second,
		Headless:       parseBoolEnv("BROTHERBOT_HEADLESS", true),
		ChromePath:     strings.TrimSpace(os.Getenv("BROTHERBOT_CHROME_PATH")),
	}
	if strings.EqualFold(cfg.ListenAddr, "off") {
		cfg.ListenAddr = ""
	}

	if cfg.PortalEmail == "" {
		return Config{}, fmt.Errorf("BROTHERBOT_PORTAL_EMAIL is required")
	}
	if cfg.PortalPassword == "" {
		return Config{}, fmt.Errorf("BROTHERBOT_PORTAL_PASSWORD is required")
	}
	if raw := strings.TrimSpace(os.Getenv("BROTHERBOT_AUTHORIZED_USER_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Config{}, fmt.Errorf("BROTHERBOT_AUTHORIZED_USER_ID must be a positive integer")
		}
		cfg.AuthorizedUserID = id
	}
	if cfg.TokenFile == cfg.CookieFile {
		return Config{}, fmt.Errorf("BROTHERBOT_TOKEN_FILE and BROTHERBOT_COOKIE_FILE must differ")
	}
	if cfg.TokenTimeout > cfg.LoginTimeout {
		return Config{}, fmt.Errorf("BROTHERBOT_TOKEN_TIMEOUT_SECONDS must not exceed BROTHERBOT_LOGIN_TIMEOUT_SECONDS")
	}
	return cfg, nil
}

// RequireBot reports the settings that only the Telegram loop needs.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("BROTHERBOT_TELEGRAM_TOKEN is required")
	}
	if c.AuthorizedUserID == 0 {
		return fmt.Errorf("BROTHERBOT_AUTHORIZED_USER_ID is required")
	}
	return nil
}

func envOrDefault(k, v string) string {
	if raw := os.Getenv(k); raw != "" {
		return raw
	}
	return v
}

func ParsePositiveIntEnv(k string, d int) int {
	raw := os.Getenv(k)
	if raw == "" {
		return d
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return d
	}
	return n
}

func parseBoolEnv(k string, d bool) bool {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return d
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return d
	}
	return b
}
