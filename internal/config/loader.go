package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/moolen/spectre/internal/logging"
)

var loaderLog = logging.GetLogger("config.loader")

// Load reads path (if it exists) with koanf, fills every field the
// file leaves unset from its environment variable, and returns a
// validated Config. A value in the file takes precedence over the
// environment. A missing file is not an error: every field falls back
// to its environment or built-in default.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		APIPort:             k.Int("api_port"),
		BackendURL:          firstNonEmpty(k.String("backend_url"), os.Getenv("BACKEND_URL")),
		LogIndexPrefix:      firstNonEmpty(k.String("log_index_prefix"), os.Getenv("LOG_INDEX_PREFIX"), "app-logs"),
		TemplatesIndex:      firstNonEmpty(k.String("templates_index"), os.Getenv("TEMPLATES_INDEX"), "event-templates"),
		BackendQueryTimeout: 30 * time.Second,
		CursorFilePath:      firstNonEmpty(k.String("cursor_file_path"), os.Getenv("CURSOR_FILE_PATH"), "./data/cursor.json"),
		LLMAPIKey:           firstNonEmpty(k.String("llm_api_key"), os.Getenv("ANTHROPIC_API_KEY")),
		LLMModel:            firstNonEmpty(k.String("llm_model"), os.Getenv("LLM_MODEL"), "claude-sonnet-4-5"),
		Alert:               loadAlertDefaults(k),
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = envInt("API_PORT", 8080)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAlertDefaults(k *koanf.Koanf) AlertDefaults {
	defaults := DefaultAlertDefaults()
	return AlertDefaults{
		WindowHours:     orDefaultInt(k.Int("alert.window_hours"), envInt("ANOMALY_ALERT_WINDOW_HOURS", defaults.WindowHours)),
		Threshold:       orDefaultInt(k.Int("alert.threshold"), envInt("ANOMALY_ALERT_THRESHOLD", defaults.Threshold)),
		Levels:          orDefaultLevels(k.Strings("alert.levels"), envCSV("ANOMALY_ALERT_LEVELS", defaults.Levels)),
		CooldownSeconds: orDefaultInt(k.Int("alert.cooldown_seconds"), envInt("ANOMALY_ALERT_COOLDOWN_SECONDS", defaults.CooldownSeconds)),
		WebhookURL:      firstNonEmpty(k.String("alert.webhook_url"), os.Getenv("SLACK_WEBHOOK_URL")),
	}
}

// WatchAlertConfig watches path for changes and invokes onChange with
// the freshly reloaded alert-tuning subset whenever the file is
// written. The immutable subset of Config is not re-read: only alert
// thresholds, levels, cooldown, and webhook URL are expected to change
// without a restart.
func WatchAlertConfig(path string, onChange func(AlertDefaults)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := watcher.Add(path); err != nil {
			loaderLog.WarnWithFields("failed to watch config file for hot reload", logging.Field("path", path), logging.Field("error", err.Error()))
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				k := koanf.New(".")
				if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
					loaderLog.WarnWithFields("failed to reload config on change", logging.Field("error", err.Error()))
					continue
				}
				onChange(loadAlertDefaults(k))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				loaderLog.WarnWithFields("config watcher error", logging.Field("error", err.Error()))
			}
		}
	}()
	return watcher, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefaultInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orDefaultLevels(v, fallback []string) []string {
	if len(v) > 0 {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envCSV(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	return strings.Split(raw, ",")
}
