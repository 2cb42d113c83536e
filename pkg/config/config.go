package config

import (
	"cmp"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds application-wide configuration
type Config struct {
	REST     RESTConfig    `mapstructure:"rest"`
	DB       DBConfig      `mapstructure:"db"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
	LogLevel string        `mapstructure:"logLevel"`
	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type RESTConfig struct {
	ListenAddr      string        `mapstructure:"listenAddr"`
	BaseURL         string        `mapstructure:"baseURL"`
	PageSize        int           `mapstructure:"pageSize"`
	MaxPageSize     int           `mapstructure:"maxPageSize"`
	VerifyCatalog   bool          `mapstructure:"verifyCatalog"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
}

// DBConfig holds the parts of the database URL. ConnString, when set, is used
// as is.
type DBConfig struct {
	DriverName  string        `mapstructure:"driverName"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Name        string        `mapstructure:"name"`
	Query       string        `mapstructure:"query"`
	ConnString  string        `mapstructure:"connString"`
	Schema      string        `mapstructure:"schema"`
	PingTimeout time.Duration `mapstructure:"pingTimeout"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the metrics server
}

func Default() Config {
	return Config{
		REST: RESTConfig{
			ListenAddr:      ":8080",
			PageSize:        10,
			MaxPageSize:     100,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		DB: DBConfig{
			DriverName:  "postgres",
			Host:        "localhost",
			Port:        5432,
			PingTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// database variables kept for compatibility with existing deployments
var envBindings = map[string]string{
	"db.driverName": "DB_DRIVER_NAME",
	"db.username":   "DB_USERNAME",
	"db.password":   "DB_PASSWORD",
	"db.host":       "DB_HOST",
	"db.port":       "DB_PORT",
	"db.name":       "DB_NAME",
	"db.query":      "DB_QUERY",
	"db.connString": "DB_CONN_STRING",
}

var ErrNoDatabase = errors.New("database name or connection string required")

// Load reads config from file or environment. Environment variables use the
// RESTABLE_ prefix with dots replaced by underscores (RESTABLE_REST_LISTENADDR),
// except the DB_* variables which are read unprefixed.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("restable")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RESTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("rest.listenAddr", d.REST.ListenAddr)
	v.SetDefault("rest.pageSize", d.REST.PageSize)
	v.SetDefault("rest.maxPageSize", d.REST.MaxPageSize)
	v.SetDefault("rest.shutdownTimeout", d.REST.ShutdownTimeout)
	v.SetDefault("rest.allowedOrigins", d.REST.AllowedOrigins)
	v.SetDefault("rest.baseURL", d.REST.BaseURL)
	v.SetDefault("rest.verifyCatalog", d.REST.VerifyCatalog)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("db.schema", d.DB.Schema)
	v.SetDefault("db.driverName", d.DB.DriverName)
	v.SetDefault("db.host", d.DB.Host)
	v.SetDefault("db.port", d.DB.Port)
	v.SetDefault("db.pingTimeout", d.DB.PingTimeout)
}

// URL returns the PostgreSQL URL assembled from the parts, or
// ConnString when it is set. Driver suffixes such as "+psycopg2" are dropped.
func (c DBConfig) URL() (string, error) {
	if c.ConnString != "" {
		return c.ConnString, nil
	}
	if c.Name == "" {
		return "", ErrNoDatabase
	}

	scheme, _, _ := strings.Cut(cmp.Or(c.DriverName, "postgres"), "+")
	switch scheme {
	case "postgres", "postgresql":
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.DriverName)
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Host,
		Path:     "/" + c.Name,
		RawQuery: c.Query,
	}
	if c.Port != 0 {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = url.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = url.User(c.Username)
	}
	return u.String(), nil
}
