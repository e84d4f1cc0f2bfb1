// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Site      SiteConfig      `yaml:"site"`
	Contact   ContactConfig   `yaml:"contact"`
	Relay     RelayConfig     `yaml:"relay"`
	Particles ParticlesConfig `yaml:"particles"`
	Store     StoreConfig     `yaml:"store"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr      string `yaml:"addr" default:":8080"`
	Mode      string `yaml:"mode" default:"release" validate:"oneof=debug release test"`
	Templates string `yaml:"templates" default:"templates/*"`
	Public    string `yaml:"public" default:"."`
}

// SiteConfig represents page rendering configuration.
type SiteConfig struct {
	Content string        `yaml:"content"`
	ViewTTL time.Duration `yaml:"view_ttl" default:"30m" validate:"gt=0"`
}

// ContactConfig represents contact form behaviour.
type ContactConfig struct {
	Timeout       time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
	FallbackEmail string        `yaml:"fallback_email" validate:"omitempty,email"`
}

// RelayConfig selects the email relay.
type RelayConfig struct {
	Driver  string        `yaml:"driver" default:"emailjs" validate:"oneof=emailjs smtp"`
	EmailJS EmailJSConfig `yaml:"emailjs"`
	SMTP    SMTPConfig    `yaml:"smtp"`
}

// EmailJSConfig represents EmailJS identifiers. They are public values.
type EmailJSConfig struct {
	ServiceID   string `yaml:"service_id"`
	TemplateID  string `yaml:"template_id"`
	PublicKey   string `yaml:"public_key"`
	AccessToken string `yaml:"access_token"`
	URL         string `yaml:"url" validate:"omitempty,url"`
}

// SMTPConfig represents direct SMTP delivery settings.
type SMTPConfig struct {
	Host string `yaml:"host" default:"smtp.gmail.com"`
	Port string `yaml:"port" default:"587"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	To   string `yaml:"to" validate:"omitempty,email"`
}

// ParticlesConfig represents the hero particle animation.
type ParticlesConfig struct {
	Disabled bool          `yaml:"disabled"`
	Interval time.Duration `yaml:"interval" default:"300ms" validate:"gt=0"`
	Lifetime time.Duration `yaml:"lifetime" default:"6s" validate:"gt=0"`
	MaxLive  int           `yaml:"max_live" default:"30" validate:"gte=1,lte=500"`
}

// StoreConfig represents the operational database.
type StoreConfig struct {
	Path      string        `yaml:"path" default:"portfolio.db"`
	Retention time.Duration `yaml:"retention" default:"8760h" validate:"gt=0"`
}

// AdminConfig represents admin login credentials.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// Load loads configuration from a YAML file. A missing file is not an
// error: defaults and environment variables are used instead.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config file")
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("RELAY_DRIVER"); v != "" {
		c.Relay.Driver = v
	}
	if v := os.Getenv("EMAILJS_SERVICE_ID"); v != "" {
		c.Relay.EmailJS.ServiceID = v
	}
	if v := os.Getenv("EMAILJS_TEMPLATE_ID"); v != "" {
		c.Relay.EmailJS.TemplateID = v
	}
	if v := os.Getenv("EMAILJS_PUBLIC_KEY"); v != "" {
		c.Relay.EmailJS.PublicKey = v
	}
	if v := os.Getenv("EMAILJS_ACCESS_TOKEN"); v != "" {
		c.Relay.EmailJS.AccessToken = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Relay.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		c.Relay.SMTP.Port = v
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.Relay.SMTP.User = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.Relay.SMTP.Pass = v
	}
	if v := os.Getenv("TO_EMAIL"); v != "" {
		c.Relay.SMTP.To = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		c.Admin.Username = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.Admin.Password = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Particles.Lifetime < c.Particles.Interval {
		return errors.Newf("particles.lifetime (%s) must not be shorter than particles.interval (%s)",
			c.Particles.Lifetime, c.Particles.Interval)
	}

	return nil
}

// RelayConfigured reports whether the selected relay has its credentials.
func (c *Config) RelayConfigured() bool {
	switch c.Relay.Driver {
	case "smtp":
		return c.Relay.SMTP.User != "" && c.Relay.SMTP.Pass != "" && c.Relay.SMTP.To != ""
	default:
		e := c.Relay.EmailJS
		return e.ServiceID != "" && e.TemplateID != "" && e.PublicKey != ""
	}
}
