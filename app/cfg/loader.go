package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Remote content service
	ServerURL string `long:"server-url" env:"SERVER_URL" default:"http://localhost:3001" description:"Base URL of the content service"`
	BoardID   string `long:"board-id" env:"BOARD_ID" description:"Identifier of this board (required)"`
	APIKey    string `long:"api-key" env:"API_KEY" description:"Bearer token for the content service (optional)"`

	// Cadences, in seconds
	SyncInterval    int `long:"sync-interval" env:"CONTENT_UPDATE_INTERVAL" default:"30" description:"Content sync interval in seconds"`
	StatusInterval  int `long:"status-interval" env:"STATUS_UPDATE_INTERVAL" default:"60" description:"Status push interval in seconds"`
	CleanupInterval int `long:"cleanup-interval" env:"CLEANUP_INTERVAL" default:"1" description:"Retention pass interval in seconds"`

	// Local cache
	StorageDir    string `long:"storage-dir" env:"STORAGE_DIR" default:"/var/lib/raspberry-display" description:"Directory for the content database and attachments"`
	RetentionDays int    `long:"retention-days" env:"ATTACHMENT_RETENTION_DAYS" default:"7" description:"Days an unviewed recurring item is kept"`
	MaxStorageMB  int    `long:"max-storage-mb" env:"MAX_STORAGE_SIZE_MB" default:"1024" description:"Attachment storage quota in MB"`
	EnforceQuota  bool   `long:"enforce-quota" env:"ENFORCE_QUOTA" description:"Evict recurring content when the quota is exceeded"`

	// Push channel
	MQTTBroker   string `long:"mqtt-broker" env:"MQTT_BROKER" description:"MQTT broker URL, e.g. tcp://broker:1883 (optional)"`
	MQTTTopic    string `long:"mqtt-topic" env:"MQTT_TOPIC" default:"notices/published" description:"Topic that triggers a content sync"`
	MQTTUsername string `long:"mqtt-username" env:"MQTT_USERNAME" description:"MQTT username"`
	MQTTPassword string `long:"mqtt-password" env:"MQTT_PASSWORD" description:"MQTT password"`

	// Optional sources and local surfaces
	FeedURL      string `long:"feed-url" env:"FEED_URL" description:"RSS/Atom feed shown as low-priority ticker content (optional)"`
	ProfileFile  string `long:"profile" env:"PROFILE_FILE" description:"Board profile YAML file (optional)"`
	StatusAddr   string `long:"status-addr" env:"STATUS_ADDR" default:"127.0.0.1:8090" description:"Listen address of the local status API, empty to disable"`
	StatusAPIKey string `long:"status-api-key" env:"STATUS_API_KEY" description:"Key required by POST /api/sync (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"board-cache/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" description:"Timezone for schedules and timestamps (e.g., UTC, Europe/Berlin)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment. It returns nil, nil when help
// was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		ServerURL:       strings.TrimRight(raw.ServerURL, "/"),
		BoardID:         strings.TrimSpace(raw.BoardID),
		APIKey:          raw.APIKey,
		SyncInterval:    seconds(raw.SyncInterval),
		StatusInterval:  seconds(raw.StatusInterval),
		CleanupInterval: seconds(raw.CleanupInterval),
		StorageDir:      raw.StorageDir,
		RetentionDays:   raw.RetentionDays,
		MaxStorageMB:    raw.MaxStorageMB,
		MaxStorageSize:  int64(raw.MaxStorageMB) * 1024 * 1024,
		EnforceQuota:    raw.EnforceQuota,
		MQTTBroker:      raw.MQTTBroker,
		MQTTTopic:       raw.MQTTTopic,
		MQTTUsername:    raw.MQTTUsername,
		MQTTPassword:    raw.MQTTPassword,
		FeedURL:         raw.FeedURL,
		ProfileFile:     raw.ProfileFile,
		StatusAddr:      raw.StatusAddr,
		StatusAPIKey:    raw.StatusAPIKey,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.BoardID == "" {
		return fmt.Errorf("board id is required (--board-id or BOARD_ID)")
	}
	if cfg.ServerURL == "" {
		return fmt.Errorf("server url is required (--server-url or SERVER_URL)")
	}
	if cfg.StorageDir == "" {
		return fmt.Errorf("storage dir is required (--storage-dir or STORAGE_DIR)")
	}

	nonNegativeFields := map[string]int{
		"retention days": cfg.RetentionDays,
		"max storage":    cfg.MaxStorageMB,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	positiveFields := map[string]time.Duration{
		"sync interval":    cfg.SyncInterval,
		"status interval":  cfg.StatusInterval,
		"cleanup interval": cfg.CleanupInterval,
	}
	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	slog.Debug("Timezone configured", "timezone", timezone)
	return nil
}
