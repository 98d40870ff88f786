// Package config handles loading and resolving emdash configuration.
// Resolution order (later layers win):
//  1. built-in defaults
//  2. emdash.json in the current working directory
//  3. .env in the current working directory
//  4. process environment (EMDASH_*)
//  5. CLI flag --api-url
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/derickschaefer/emdash/internal/model"
)

const (
	DefaultConfigFile      = "emdash.json"
	DefaultDotEnvFile      = ".env"
	DefaultAPIURL          = "http://localhost:8000"
	DefaultFormat          = "table"
	DefaultTimeout         = 30 * time.Second
	DefaultRate            = 10.0
	DefaultLogLevel        = "info"
	DefaultRefreshInterval = time.Minute
	DefaultListenAddr      = ":8080"
	DefaultCORSOrigins     = "http://localhost:5173"

	EnvAPIURL          = "EMDASH_API_URL"
	EnvDBPath          = "EMDASH_DB_PATH"
	EnvLogLevel        = "EMDASH_LOG_LEVEL"
	EnvStation         = "EMDASH_STATION"
	EnvParameter       = "EMDASH_PARAMETER"
	EnvRefreshInterval = "EMDASH_REFRESH_INTERVAL"
	EnvListenAddr      = "EMDASH_LISTEN_ADDR"
	EnvTimeout         = "EMDASH_TIMEOUT"
	EnvRate            = "EMDASH_RATE"
	EnvCORSOrigins     = "EMDASH_CORS_ORIGINS"
)

// Keys lists every settable key, in File field order.
var Keys = []string{
	"api_url", "default_format", "timeout", "rate", "db_path",
	"default_station", "default_parameter", "log_level",
	"refresh_interval", "listen_addr", "cors_origins",
}

// File is the on-disk representation of emdash.json.
type File struct {
	APIURL           string  `json:"api_url"`
	DefaultFormat    string  `json:"default_format"`
	Timeout          string  `json:"timeout"`
	Rate             float64 `json:"rate"`
	DBPath           string  `json:"db_path"`
	DefaultStation   string  `json:"default_station"`
	DefaultParameter string  `json:"default_parameter"`
	LogLevel         string  `json:"log_level"`
	RefreshInterval  string  `json:"refresh_interval"`
	ListenAddr       string  `json:"listen_addr"`
	CORSOrigins      string  `json:"cors_origins"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	APIURL          string
	Format          string
	Timeout         time.Duration
	Rate            float64
	DBPath          string
	Station         string
	Parameter       model.Parameter
	LogLevel        string
	RefreshInterval time.Duration
	ListenAddr      string
	CORSOrigins     string // comma-separated origins allowed by `emdash serve`
	ConfigPath      string // path of the emdash.json that was loaded (empty if none found)
	DotEnvPath      string // path of the .env that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet     bool
	Verbose   bool
	Debug     bool
	LogFormat string
}

// Load resolves configuration from all sources.
// flagAPIURL is the value of --api-url (empty string if not set).
// A malformed emdash.json is an error; a missing one is not.
func Load(flagAPIURL string) (*Config, error) {
	cfg := &Config{
		APIURL:          DefaultAPIURL,
		Format:          DefaultFormat,
		Timeout:         DefaultTimeout,
		Rate:            DefaultRate,
		Station:         model.DefaultStationID,
		Parameter:       model.PM25,
		LogLevel:        DefaultLogLevel,
		RefreshInterval: DefaultRefreshInterval,
		ListenAddr:      DefaultListenAddr,
		CORSOrigins:     DefaultCORSOrigins,
	}

	f, path, err := loadFile()
	switch {
	case err == nil:
		if err := applyFile(cfg, f, path); err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	dotenv, dotenvPath := loadDotEnv()
	cfg.DotEnvPath = dotenvPath
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if flagAPIURL != "" {
		cfg.APIURL = flagAPIURL
	}

	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, ".emdash", "emdash.db")
		}
	}
	return cfg, nil
}

// Validate checks the resolved values a command is about to rely on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_url %q: expected http(s)://host[:port]\n\n"+
			"Set it one of these ways:\n"+
			"  1. CLI flag:        emdash --api-url http://localhost:8000 ...\n"+
			"  2. Environment:     export %s=http://localhost:8000\n"+
			"  3. emdash.json:     {\"api_url\": \"http://localhost:8000\"}", c.APIURL, EnvAPIURL)
	}
	if !c.Parameter.Valid() {
		return fmt.Errorf("invalid default_parameter %q: expected one of %s", c.Parameter, model.ParameterList())
	}
	if strings.TrimSpace(c.Station) == "" {
		return errors.New("default_station must not be empty")
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("refresh_interval %s is below the 1s minimum", c.RefreshInterval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0 (0 disables it), got %s", c.Timeout)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must be >= 0, got %g", c.Rate)
	}
	return nil
}

// Selection returns the configured default selection.
func (c *Config) Selection() model.Selection {
	return model.Selection{StationID: c.Station, Parameter: c.Parameter}
}

// loadFile attempts to read emdash.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%s not found at %s: %w", DefaultConfigFile, path, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("reading %s: %w", DefaultConfigFile, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", DefaultConfigFile, err)
	}
	return &f, path, nil
}

// loadDotEnv reads .env without touching the process environment.
func loadDotEnv() (map[string]string, string) {
	path, err := filepath.Abs(DefaultDotEnvFile)
	if err != nil {
		return nil, ""
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		return nil, ""
	}
	return vals, path
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) error {
	cfg.ConfigPath = path
	if f.APIURL != "" {
		cfg.APIURL = f.APIURL
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.DefaultStation != "" {
		cfg.Station = f.DefaultStation
	}
	if f.DefaultParameter != "" {
		p, err := model.ParseParameter(f.DefaultParameter)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cfg.Parameter = p
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.RefreshInterval != "" {
		d, err := time.ParseDuration(f.RefreshInterval)
		if err != nil {
			return fmt.Errorf("%s: invalid refresh_interval: %w", path, err)
		}
		cfg.RefreshInterval = d
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.CORSOrigins != "" {
		cfg.CORSOrigins = f.CORSOrigins
	}
	return nil
}

// applyEnv copies EMDASH_* values found by lookup into cfg.
func applyEnv(cfg *Config, lookup func(string) string) error {
	if v := lookup(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := lookup(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := lookup(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := lookup(EnvStation); v != "" {
		cfg.Station = v
	}
	if v := lookup(EnvParameter); v != "" {
		p, err := model.ParseParameter(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParameter, err)
		}
		cfg.Parameter = p
	}
	if v := lookup(EnvRefreshInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRefreshInterval, err)
		}
		cfg.RefreshInterval = d
	}
	if v := lookup(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := lookup(EnvCORSOrigins); v != "" {
		cfg.CORSOrigins = v
	}
	if v := lookup(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	if v := lookup(EnvRate); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRate, err)
		}
		cfg.Rate = r
	}
	return nil
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial emdash.json via `emdash config init`.
func Template() File {
	return File{
		APIURL:           DefaultAPIURL,
		DefaultFormat:    DefaultFormat,
		Timeout:          DefaultTimeout.String(),
		Rate:             DefaultRate,
		DefaultStation:   model.DefaultStationID,
		DefaultParameter: string(model.PM25),
		LogLevel:         DefaultLogLevel,
		RefreshInterval:  DefaultRefreshInterval.String(),
		ListenAddr:       DefaultListenAddr,
		CORSOrigins:      DefaultCORSOrigins,
	}
}

// ReadFile parses the emdash.json at path.
func ReadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// Get returns the string form of key in f.
func (f File) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return f.APIURL, nil
	case "default_format":
		return f.DefaultFormat, nil
	case "timeout":
		return f.Timeout, nil
	case "rate":
		return strconv.FormatFloat(f.Rate, 'g', -1, 64), nil
	case "db_path":
		return f.DBPath, nil
	case "default_station":
		return f.DefaultStation, nil
	case "default_parameter":
		return f.DefaultParameter, nil
	case "log_level":
		return f.LogLevel, nil
	case "refresh_interval":
		return f.RefreshInterval, nil
	case "listen_addr":
		return f.ListenAddr, nil
	case "cors_origins":
		return f.CORSOrigins, nil
	}
	return "", unknownKey(key)
}

// Set parses value and stores it under key, rejecting malformed values.
func (f *File) Set(key, value string) error {
	switch key {
	case "api_url":
		f.APIURL = value
	case "default_format":
		f.DefaultFormat = value
	case "timeout", "refresh_interval":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "timeout" {
			f.Timeout = value
		} else {
			f.RefreshInterval = value
		}
	case "rate":
		r, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		f.Rate = r
	case "db_path":
		f.DBPath = value
	case "default_station":
		f.DefaultStation = value
	case "default_parameter":
		p, err := model.ParseParameter(value)
		if err != nil {
			return err
		}
		f.DefaultParameter = string(p)
	case "log_level":
		f.LogLevel = value
	case "listen_addr":
		f.ListenAddr = value
	case "cors_origins":
		f.CORSOrigins = value
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
}
