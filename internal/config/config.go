package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "ADVENTKIT"
	defaultDataDir        = "adventkit-data"
	defaultLogLevel       = "info"
	defaultDoorCount      = 24
	defaultGridColumns    = 4
	defaultCalendarTitle  = "My Calendar"
	defaultNotifyLeadMins = 10
	defaultSchedulerTick  = "@every 1s"
)

// AppConfig captures runtime configuration for the calendar application.
type AppConfig struct {
	DataDir           string
	LogLevel          string
	UserID            string
	StrictStorage     bool
	CalendarTitle     string
	CalendarDoors     int
	CalendarColumns   int
	NotifyLeadMinutes int
	SchedulerTick     string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("data.dir", defaultDataDir)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("user.id", "")
	configViper.SetDefault("storage.strict", false)
	configViper.SetDefault("calendar.title", defaultCalendarTitle)
	configViper.SetDefault("calendar.doors", defaultDoorCount)
	configViper.SetDefault("calendar.columns", defaultGridColumns)
	configViper.SetDefault("notify.lead_minutes", defaultNotifyLeadMins)
	configViper.SetDefault("scheduler.tick", defaultSchedulerTick)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DataDir:           configViper.GetString("data.dir"),
		LogLevel:          configViper.GetString("log.level"),
		UserID:            configViper.GetString("user.id"),
		StrictStorage:     configViper.GetBool("storage.strict"),
		CalendarTitle:     configViper.GetString("calendar.title"),
		CalendarDoors:     configViper.GetInt("calendar.doors"),
		CalendarColumns:   configViper.GetInt("calendar.columns"),
		NotifyLeadMinutes: configViper.GetInt("notify.lead_minutes"),
		SchedulerTick:     configViper.GetString("scheduler.tick"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.CalendarDoors <= 0 {
		return fmt.Errorf("calendar.doors must be positive")
	}
	if c.CalendarColumns <= 0 {
		return fmt.Errorf("calendar.columns must be positive")
	}
	if c.NotifyLeadMinutes < 0 {
		return fmt.Errorf("notify.lead_minutes must not be negative")
	}
	return nil
}
