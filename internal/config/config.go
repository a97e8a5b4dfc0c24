package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all bot configuration, loaded once at startup. It is never
// mutated afterwards; handlers receive it by reference.
type Config struct {
	// Telegram
	BotToken        string
	AllowedUserIDs  []int64
	AllowedGroupIDs []int64
	AdminUserID     int64

	// AI backend (external claude CLI)
	AIEnabled    bool
	AIModel      string
	SystemPrompt string
	AllowedTools []string
	ToolNotify   bool
	AITimeout    time.Duration
	ClaudeBin    string
	WorkDir      string

	// Image generation backend credential, passed through to the CLI
	// environment so its image tools can authenticate.
	GeminiAPIKey string

	// Sentry
	SentryDSN         string
	SentryEnvironment string
}

// DefaultAllowedTools is the tool allow-list used when AI_ALLOWED_TOOLS is
// not set.
var DefaultAllowedTools = []string{"WebSearch", "WebFetch", "Read"}

// Load reads .env (if present) and populates a Config from environment
// variables. envFile overrides the default .env location when non-empty.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil {
		// No .env is fine; plain environment variables still apply.
	}

	cfg := Config{
		BotToken:        strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		AllowedUserIDs:  envIDList("ALLOWED_USER_IDS"),
		AllowedGroupIDs: envIDList("ALLOWED_GROUP_IDS"),
		AdminUserID:     envInt64("ADMIN_USER_ID", 0),

		AIEnabled:    envBool("AI_ENABLED", true),
		AIModel:      envOr("AI_MODEL", "sonnet"),
		SystemPrompt: os.Getenv("AI_SYSTEM_PROMPT"),
		AllowedTools: envList("AI_ALLOWED_TOOLS", DefaultAllowedTools),
		ToolNotify:   envBool("AI_TOOL_NOTIFY", true),
		AITimeout:    envDuration("AI_TIMEOUT", 3*time.Minute),
		ClaudeBin:    os.Getenv("CLAUDE_BIN"),
		WorkDir:      envOr("AI_WORK_DIR", defaultWorkDir()),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),

		SentryDSN:         os.Getenv("SENTRY_DSN"),
		SentryEnvironment: envOr("SENTRY_ENVIRONMENT", "production"),
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	return cfg, nil
}

func defaultWorkDir() string {
	return filepath.Join(os.TempDir(), "gramd-cli")
}

// DataDir returns ~/.local/share/gramd, creating it if needed.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "share", "gramd")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigDir returns the config directory for gramd (~/.config/gramd).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gramd")
}

// ---------------------------------------------------------------------------
// env helpers
// ---------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	// Accept both Go duration syntax ("90s") and bare seconds ("90").
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// envIDList parses a comma-separated list of int64 identifiers. Malformed
// entries are skipped rather than failing the whole list.
func envIDList(key string) []int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
