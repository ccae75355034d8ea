package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Panel describes how to reach and authenticate against one control panel.
type Panel struct {
	Host        string
	Port        uint16
	UDLPassword string
}

// Notify describes the subprocess the default Notifier invokes on
// connection-lost/regained transitions (pkgs/notify).
type Notify struct {
	LostCommand     string
	RegainedCommand string
}

type Configuration struct {
	Panel Panel

	Heartbeat     time.Duration
	OutputEvents  bool
	LogLevel      string
	MetricsAddr   string

	Notify Notify
}

// NewConfig reads .texecom.yaml from the current directory or $HOME,
// overridable by TEXECOM_-prefixed environment variables, mirroring the
// viper setup the rest of the pack uses for per-host application config.
func NewConfig() (*Configuration, error) {
	config := Configuration{}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(".texecom")
	v.AddConfigPath("$HOME/")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TEXECOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are only seen by Unmarshal once bound.
	_ = v.BindEnv("panel.host")
	_ = v.BindEnv("panel.udlpassword")
	_ = v.BindEnv("notify.lostcommand")
	_ = v.BindEnv("notify.regainedcommand")

	v.SetDefault("panel.port", 10001)
	v.SetDefault("heartbeat", "300s")
	v.SetDefault("outputevents", true)
	v.SetDefault("loglevel", "info")
	v.SetDefault("metricsaddr", "")

	_ = v.SafeWriteConfig()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return &Configuration{}, fmt.Errorf("cannot parse config: %w", err)
		}
	}
	if err := v.Unmarshal(&config); err != nil {
		return &config, fmt.Errorf("cannot parse config: %w", err)
	}

	if config.Panel.Host == "" {
		return &config, fmt.Errorf("panel.host is required (set in .texecom.yaml or TEXECOM_PANEL_HOST)")
	}

	return &config, nil
}
