package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	bot "github.com/zegheim/nuffield-book-classes"
)

// Config is read from a dotenv file, with environment variables taking
// precedence.
type Config struct {
	Email           string        `env:"EMAIL" validate:"required,email"`
	Password        string        `env:"PASSWORD" validate:"required"`
	AppID           string        `env:"APP_ID" validate:"required"`
	AppKey          string        `env:"APP_KEY" validate:"required"`
	APIURL          string        `env:"API_URL" validate:"required,url"`
	SiteID          int           `env:"SITE_ID" validate:"gt=0"`
	LoginURL        string        `env:"LOGIN_URL" validate:"required,url"`
	AccountURL      string        `env:"ACCOUNT_URL" validate:"required,url"`
	Timezone        string        `env:"TIMEZONE" validate:"required"`
	BookingOpenHour int           `env:"BOOKING_OPEN_HOUR" validate:"gte=0,lte=23"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`

	Location *time.Location `validate:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_URL", bot.DefaultAPIURL)
	v.SetDefault("SITE_ID", bot.DefaultSiteID)
	v.SetDefault("LOGIN_URL", bot.DefaultLoginURL)
	v.SetDefault("ACCOUNT_URL", bot.DefaultAccountURL)
	v.SetDefault("TIMEZONE", bot.DefaultTimezone)
	v.SetDefault("BOOKING_OPEN_HOUR", 7)
	v.SetDefault("HTTP_TIMEOUT", "30s")
}

// Load reads the configuration file at path. A missing file is not an
// error as long as the environment provides every required value.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if !slices.Contains(viper.SupportedExts, ext) {
		v.SetConfigType("env")
	}
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Email:      v.GetString("EMAIL"),
		Password:   v.GetString("PASSWORD"),
		AppID:      v.GetString("APP_ID"),
		AppKey:     v.GetString("APP_KEY"),
		APIURL:     v.GetString("API_URL"),
		LoginURL:   v.GetString("LOGIN_URL"),
		AccountURL: v.GetString("ACCOUNT_URL"),
		Timezone:   v.GetString("TIMEZONE"),
	}

	// viper's typed getters turn malformed values into zero.
	var msgs []string
	parseInt := func(key string, dst *int) {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			msgs = append(msgs, key+" must be an integer")
			return
		}
		*dst = n
	}
	parseInt("SITE_ID", &cfg.SiteID)
	parseInt("BOOKING_OPEN_HOUR", &cfg.BookingOpenHour)
	timeout, err := time.ParseDuration(strings.TrimSpace(v.GetString("HTTP_TIMEOUT")))
	if err != nil {
		msgs = append(msgs, "HTTP_TIMEOUT must be a duration such as 30s")
	}
	cfg.HTTPTimeout = timeout

	if err := validate(cfg, msgs...); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return cfg, nil
}

// Bot returns the booking client configuration.
func (c *Config) Bot() bot.Config {
	return bot.Config{
		Email:      c.Email,
		Password:   c.Password,
		AppID:      c.AppID,
		AppKey:     c.AppKey,
		APIURL:     c.APIURL,
		SiteID:     c.SiteID,
		LoginURL:   c.LoginURL,
		AccountURL: c.AccountURL,
		Timeout:    c.HTTPTimeout,
	}
}

// validate checks cfg and reports its failures along with msgs, skipping
// fields msgs already complain about.
func validate(cfg *Config, msgs ...string) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	err := v.Struct(cfg)
	var validationErrors validator.ValidationErrors
	if err != nil && !errors.As(err, &validationErrors) {
		return err
	}

	for _, e := range validationErrors {
		field := e.Field()
		if slices.ContainsFunc(msgs, func(m string) bool { return strings.HasPrefix(m, field+" ") }) {
			continue
		}
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		case "gt":
			msgs = append(msgs, field+" must be greater than "+e.Param())
		case "gte":
			msgs = append(msgs, field+" must be greater than or equal to "+e.Param())
		case "lte":
			msgs = append(msgs, field+" must be less than or equal to "+e.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
