package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, loaded once at startup. Output file
// locations are deployment configuration; nothing in the reconciliation
// code hard-codes a path.
type Config struct {
	Redis       RedisConfig `yaml:"redis"`
	TemplateDir string      `yaml:"template_dir" validate:"required"`
	Paths       Paths       `yaml:"paths"`

	// LogDir enables file logging when set (daily-rotated under
	// <log_dir>/logs).
	LogDir string `yaml:"log_dir"`

	// MetricsListen enables the Prometheus endpoint when set, e.g.
	// "127.0.0.1:9153".
	MetricsListen string `yaml:"metrics_listen"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Password string `yaml:"password"`
}

// Paths lists every file the daemon owns or edits.
type Paths struct {
	NSSwitchConf       string `yaml:"nsswitch_conf" validate:"required"`
	RadiusNSSConf      string `yaml:"radius_nss_conf" validate:"required"`
	TacplusNSSConf     string `yaml:"tacplus_nss_conf" validate:"required"`
	PAMRadiusConf      string `yaml:"pam_radius_conf" validate:"required"`
	PAMRadiusServerDir string `yaml:"pam_radius_server_dir" validate:"required"`
	PAMAuthFragment    string `yaml:"pam_auth_fragment" validate:"required"`

	// ServiceStacks are the hand-maintained per-service PAM stack files the
	// daemon edits in place (never creates).
	ServiceStacks []string `yaml:"service_stacks" validate:"min=1,dive,required"`
}

func Default() Config {
	return Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   4,
		},
		TemplateDir: "/usr/share/authcfgd/templates",
		Paths: Paths{
			NSSwitchConf:       "/etc/nsswitch.conf",
			RadiusNSSConf:      "/etc/radius_nss.conf",
			TacplusNSSConf:     "/etc/tacplus_nss.conf",
			PAMRadiusConf:      "/etc/pam_radius_auth.conf",
			PAMRadiusServerDir: "/etc/pam_radius_auth.d",
			PAMAuthFragment:    "/etc/pam.d/common-auth-sonic",
			ServiceStacks:      []string{"/etc/pam.d/sshd", "/etc/pam.d/login"},
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
