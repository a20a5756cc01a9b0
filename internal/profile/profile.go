package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultTimezone is the deployment timezone used when none is configured.
	DefaultTimezone = "America/New_York"
	// DefaultOpenHour and DefaultCloseHour are the default working hours.
	DefaultOpenHour  = 9
	DefaultCloseHour = 17
	// DefaultSlotStep is the only recognized slot step, in minutes.
	DefaultSlotStep = 30
	// DefaultRateLimit is requests per second allowed per client.
	DefaultRateLimit = 10
	// DefaultRateBurst is the burst allowed per client.
	DefaultRateBurst = 20

	PrecisionHour   = "hour"
	PrecisionMinute = "minute"
)

var supportedDrivers = map[string]bool{
	"memory":   true,
	"csv":      true,
	"sqlite":   true,
	"postgres": true,
	"caldav":   true,
	"google":   true,
}

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where the event store keeps its data
	DSN string
	// Driver is the event store driver (memory, csv, sqlite, postgres, caldav, google)
	Driver string
	// Version is the current version of server
	Version string

	// Timezone is the IANA name of the deployment timezone.
	Timezone string
	// OpenHour and CloseHour define working hours in the deployment timezone.
	OpenHour  int
	CloseHour int
	// SlotStep is the slot enumeration step in minutes.
	SlotStep int
	// WorkingHoursPrecision is "hour" or "minute".
	WorkingHoursPrecision string // AGENDA_WORKING_HOURS_PRECISION

	RateLimit int // AGENDA_RATE_LIMIT
	RateBurst int

	// Redis lock, enabled when RedisAddr is set.
	RedisAddr     string // AGENDA_REDIS_ADDR
	RedisPassword string // AGENDA_REDIS_PASSWORD
	RedisDB       int    // AGENDA_REDIS_DB
	RedisLockKey  string // AGENDA_REDIS_LOCK_KEY (default: agenda:calendar:lock)

	// Kafka change events, enabled when KafkaBrokers is set.
	KafkaBrokers []string // AGENDA_KAFKA_BROKERS
	KafkaTopic   string   // AGENDA_KAFKA_TOPIC (default: agenda.events)

	CalDAVURL      string // AGENDA_CALDAV_URL
	CalDAVUsername string // AGENDA_CALDAV_USERNAME
	CalDAVPassword string // AGENDA_CALDAV_PASSWORD
	CalDAVCalendar string // AGENDA_CALDAV_CALENDAR

	GoogleCalendarID  string // AGENDA_GOOGLE_CALENDAR_ID (default: primary)
	GoogleCredentials string // AGENDA_GOOGLE_CREDENTIALS
	GoogleToken       string // AGENDA_GOOGLE_TOKEN
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Location returns the deployment timezone.
// It falls back to UTC when the profile has not been validated.
func (p *Profile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsRedisEnabled reports whether mutations are serialized through Redis.
func (p *Profile) IsRedisEnabled() bool {
	return p.RedisAddr != ""
}

// IsKafkaEnabled reports whether change events are published.
func (p *Profile) IsKafkaEnabled() bool {
	return len(p.KafkaBrokers) > 0
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring invalid integer env value", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return n
}

// FromEnv loads integration settings from environment variables.
func (p *Profile) FromEnv() {
	p.WorkingHoursPrecision = strings.ToLower(getEnvOrDefault("AGENDA_WORKING_HOURS_PRECISION", PrecisionHour))
	p.RateLimit = getIntEnvOrDefault("AGENDA_RATE_LIMIT", DefaultRateLimit)
	p.RateBurst = DefaultRateBurst

	p.RedisAddr = os.Getenv("AGENDA_REDIS_ADDR")
	p.RedisPassword = os.Getenv("AGENDA_REDIS_PASSWORD")
	p.RedisDB = getIntEnvOrDefault("AGENDA_REDIS_DB", 0)
	p.RedisLockKey = getEnvOrDefault("AGENDA_REDIS_LOCK_KEY", "agenda:calendar:lock")

	p.KafkaBrokers = nil
	for _, broker := range strings.Split(os.Getenv("AGENDA_KAFKA_BROKERS"), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			p.KafkaBrokers = append(p.KafkaBrokers, broker)
		}
	}
	p.KafkaTopic = getEnvOrDefault("AGENDA_KAFKA_TOPIC", "agenda.events")

	p.CalDAVURL = os.Getenv("AGENDA_CALDAV_URL")
	p.CalDAVUsername = os.Getenv("AGENDA_CALDAV_USERNAME")
	p.CalDAVPassword = os.Getenv("AGENDA_CALDAV_PASSWORD")
	p.CalDAVCalendar = os.Getenv("AGENDA_CALDAV_CALENDAR")

	p.GoogleCalendarID = getEnvOrDefault("AGENDA_GOOGLE_CALENDAR_ID", "primary")
	p.GoogleCredentials = os.Getenv("AGENDA_GOOGLE_CREDENTIALS")
	p.GoogleToken = os.Getenv("AGENDA_GOOGLE_TOKEN")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return errors.Wrapf(err, "invalid timezone %q", p.Timezone)
	}
	if p.OpenHour < 0 || p.OpenHour > 23 || p.CloseHour < 0 || p.CloseHour > 23 {
		return errors.Errorf("working hours must be within [0,24), got (%d,%d)", p.OpenHour, p.CloseHour)
	}
	if p.OpenHour >= p.CloseHour {
		return errors.Errorf("open hour %d must be before close hour %d", p.OpenHour, p.CloseHour)
	}
	if p.SlotStep == 0 {
		p.SlotStep = DefaultSlotStep
	}
	if p.SlotStep != DefaultSlotStep {
		return errors.Errorf("unsupported slot step %d, only %d minutes is recognized", p.SlotStep, DefaultSlotStep)
	}
	switch p.WorkingHoursPrecision {
	case "":
		p.WorkingHoursPrecision = PrecisionHour
	case PrecisionHour, PrecisionMinute:
	default:
		return errors.Errorf("unsupported working hours precision %q", p.WorkingHoursPrecision)
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if !supportedDrivers[p.Driver] {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.RateLimit <= 0 {
		p.RateLimit = DefaultRateLimit
	}
	if p.RateBurst <= 0 {
		p.RateBurst = DefaultRateBurst
	}

	// Only file-backed drivers need a data directory.
	if p.Driver != "sqlite" && p.Driver != "csv" {
		return nil
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "agenda")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/agenda"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		switch p.Driver {
		case "sqlite":
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("agenda_%s.db", p.Mode))
		case "csv":
			p.DSN = filepath.Join(dataDir, "calendar.csv")
		}
	}

	return nil
}
