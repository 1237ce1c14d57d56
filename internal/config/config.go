// Package config provides functionality for managing configuration options
// for the console and the mock API using command-line flags, environment
// variables, a .env file and an optional config file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load,
// e.g. INVENTARIS_BASE_URL.
const EnvPrefix = "INVENTARIS"

// Options holds the configuration values for the application.
type Options struct {
	// BaseURL is the origin that /users/* and /products/* requests are sent to.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// AssetOrigin is prepended to relative product image paths for display.
	AssetOrigin string `mapstructure:"asset_origin" validate:"omitempty,url"`

	// SessionFile is where the bearer token is persisted between runs.
	SessionFile string `mapstructure:"session_file" validate:"required"`

	// Timeout bounds every API call.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`

	// CAFile is an optional PEM bundle trusted in addition to system roots.
	CAFile string `mapstructure:"ca_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// SearchDebounce is the quiet period before a search query is applied.
	SearchDebounce time.Duration `mapstructure:"search_debounce" validate:"gte=0"`

	// MockAddr is the listen address of cmd/mockapi.
	MockAddr string `mapstructure:"mock_addr" validate:"required"`

	// MockSecret signs tokens issued by cmd/mockapi.
	MockSecret string `mapstructure:"mock_secret" validate:"required"`

	// MockTLSDir, when set, makes cmd/mockapi serve HTTPS with a development
	// CA and server certificate kept in this directory.
	MockTLSDir string `mapstructure:"mock_tls_dir"`

	// Config is the path to an optional config file (yaml, json or toml).
	Config string `mapstructure:"-"`
}

var defaults = map[string]any{
	"base_url":             "https://inventaris-app-backend.vercel.app",
	"asset_origin":         "https://inventaris-app-backend.vercel.app",
	"session_file":         "session.json",
	"timeout":              10 * time.Second,
	"insecure_skip_verify": false,
	"ca_file":              "",
	"log_level":            "info",
	"search_debounce":      300 * time.Millisecond,
	"mock_addr":            "localhost:8081",
	"mock_secret":          "inventaris-dev-secret",
	"mock_tls_dir":         "",
}

// flagKeys maps command-line flag names to option keys.
var flagKeys = map[string]string{
	"url":      "base_url",
	"assets":   "asset_origin",
	"session":  "session_file",
	"timeout":  "timeout",
	"insecure": "insecure_skip_verify",
	"ca":       "ca_file",
	"log":      "log_level",
	"debounce": "search_debounce",
	"a":        "mock_addr",
	"secret":   "mock_secret",
	"tls":      "mock_tls_dir",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse parses os.Args and the environment. It returns a pointer to the
// Options struct containing the parsed configuration values.
func Parse() (*Options, error) {
	return Load(os.Args[1:])
}

// Load builds Options from args, a .env file in the working directory,
// INVENTARIS_* environment variables and an optional config file.
// Precedence, highest first: flags, environment, config file, defaults.
func Load(args []string) (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	fs := flag.NewFlagSet("inventaris", flag.ContinueOnError)
	fs.String("url", "", "API base URL")
	fs.String("assets", "", "origin for relative image paths")
	fs.String("session", "", "path to the session file")
	fs.Duration("timeout", 0, "API call timeout")
	fs.Bool("insecure", false, "skip TLS certificate verification")
	fs.String("ca", "", "path to an extra CA bundle")
	fs.String("log", "", "log level: debug | info | warn | error")
	fs.Duration("debounce", 0, "search debounce window")
	fs.String("a", "", "mock API listen address (ip:port)")
	fs.String("secret", "", "mock API token signing secret")
	fs.String("tls", "", "mock API certificate directory; enables HTTPS")
	configPath := fs.String("config", "", "path to config file")
	fs.StringVar(configPath, "c", "", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" && *configPath == "" {
		*configPath = p
	}
	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error while reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	opts := &Options{
		BaseURL:            strings.TrimRight(v.GetString("base_url"), "/"),
		AssetOrigin:        strings.TrimRight(v.GetString("asset_origin"), "/"),
		SessionFile:        v.GetString("session_file"),
		Timeout:            v.GetDuration("timeout"),
		InsecureSkipVerify: v.GetBool("insecure_skip_verify"),
		CAFile:             v.GetString("ca_file"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		SearchDebounce:     v.GetDuration("search_debounce"),
		MockAddr:           v.GetString("mock_addr"),
		MockSecret:         v.GetString("mock_secret"),
		MockTLSDir:         v.GetString("mock_tls_dir"),
		Config:             *configPath,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks option values.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
