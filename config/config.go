/*
Package config builds the process configuration.

PURPOSE:
  One Config value is constructed at start-up and handed to each component
  constructor. Nothing reads the environment after Load returns.

SOURCES (later wins):
  1. Defaults set in Load
  2. YAML file (skipped when envOnly is true)
  3. REPORT_* environment variables, "." replaced by "_"
     e.g. REPORT_DB_DSN, REPORT_PDF_ENGINE, REPORT_SERVER_HTTP_ADDR

SEE ALSO:
  - cmd/server/main.go: Loads config and wires components
  - logger/logger.go: Consumes LogConfig
*/
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "REPORT"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Report ReportConfig `mapstructure:"report"`
	PDF    PDFConfig    `mapstructure:"pdf"`
}

type ServerConfig struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	PublicBaseURL  string        `mapstructure:"public_base_url"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxUploadMB    int64         `mapstructure:"max_upload_mb"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig selects the backing store. Driver is "sqlite3", "postgres" or
// "memory" (server only, nothing persisted).
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type ReportConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	TemplateDir string `mapstructure:"template_dir"`
	UploadDir   string `mapstructure:"upload_dir"`
}

// PDFConfig configures the HTML to PDF engine. Engine is "wkhtmltopdf",
// "chrome" or "none".
type PDFConfig struct {
	Engine                string        `mapstructure:"engine"`
	BinaryPath            string        `mapstructure:"binary_path"`
	Timeout               time.Duration `mapstructure:"timeout"`
	PageSize              string        `mapstructure:"page_size"`
	MarginMM              float64       `mapstructure:"margin_mm"`
	Encoding              string        `mapstructure:"encoding"`
	FooterRight           string        `mapstructure:"footer_right"`
	EnableLocalFileAccess bool          `mapstructure:"enable_local_file_access"`
}

// Load reads the configuration. With envOnly, or an empty path, no file is
// read and only defaults and environment variables apply.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly && path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", "127.0.0.1:8080")
	v.SetDefault("server.public_base_url", "http://127.0.0.1:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5678", "http://127.0.0.1:5678"})
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", true)

	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "investors.db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")

	v.SetDefault("report.output_dir", "generated_reports")
	v.SetDefault("report.template_dir", "report_template")
	v.SetDefault("report.upload_dir", "uploads")

	v.SetDefault("pdf.engine", "wkhtmltopdf")
	v.SetDefault("pdf.binary_path", "")
	v.SetDefault("pdf.timeout", "60s")
	v.SetDefault("pdf.page_size", "A4")
	v.SetDefault("pdf.margin_mm", 15)
	v.SetDefault("pdf.encoding", "UTF-8")
	v.SetDefault("pdf.footer_right", "[page] of [topage]")
	v.SetDefault("pdf.enable_local_file_access", true)
}
