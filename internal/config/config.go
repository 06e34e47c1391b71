package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultFundCodes are pushed when no codes are configured
var DefaultFundCodes = []string{"020670", "016942", "159934"}

// Config holds all configuration for one fundpush run.
type Config struct {
	// Funds to report on, in the order given
	FundCodes []string `mapstructure:"-"`

	// ServerChan credential and message title
	SendKey string `mapstructure:"sendkey"`
	Title   string `mapstructure:"title"`

	// Base URLs for API endpoints (configurable for testing)
	FundgzBaseURL     string `mapstructure:"fundgz_base_url"`
	ServerChanBaseURL string `mapstructure:"serverchan_base_url"`
	ServerChanPushURL string `mapstructure:"serverchan_push_url"`

	// Transport
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Concurrency    int           `mapstructure:"concurrency"`
	QuoteRateLimit float64       `mapstructure:"quote_rate_limit"`

	// Extra fields sent with every push (channel, openid, short, noip)
	PushOptions map[string]any `mapstructure:"push_options"`

	ShowTime  bool   `mapstructure:"show_time"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DryRun    bool   `mapstructure:"dry_run"`
}

// BindFlags registers the command-line flags Load understands on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (default ./config.yaml or $HOME/.fundpush/config.yaml)")
	fs.String("codes", "", "fund codes, comma or space separated (env FUND_CODES)")
	fs.String("sendkey", "", "ServerChan sendkey (env SENDKEY)")
	fs.String("title", "", "push message title (env PUSH_TITLE)")
	fs.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	fs.Bool("show-time", false, "append the estimate time to each fund line")
	fs.Bool("dry-run", false, "print the report instead of pushing it")
}

var flagKeys = map[string]string{
	"codes":     "fund_codes",
	"sendkey":   "sendkey",
	"title":     "title",
	"log-level": "log_level",
	"show-time": "show_time",
	"dry-run":   "dry_run",
}

// Load reads configuration from command-line flags, environment variables
// and an optional config file, in that order of precedence. flags may be nil.
//
// Expected environment variables:
//   - SENDKEY or SERVERCHAN_SENDKEY (required unless dry-run)
//   - FUND_CODES (optional, defaults to 020670,016942,159934)
//   - PUSH_TITLE (optional)
//   - FUNDGZ_BASE_URL, SERVERCHAN_BASE_URL, SERVERCHAN_PUSH_URL (optional, defaults to production)
//   - REQUEST_TIMEOUT, RETRY_COUNT, RETRY_BASE_DELAY, CONCURRENCY, QUOTE_RATE_LIMIT (optional)
//   - SHOW_TIME, LOG_LEVEL, LOG_FORMAT (optional)
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.SetDefault("fund_codes", strings.Join(DefaultFundCodes, ","))
	v.SetDefault("title", "基金数据推送")
	v.SetDefault("fundgz_base_url", "https://fundgz.1234567.com.cn")
	v.SetDefault("serverchan_base_url", "https://sctapi.ftqq.com")
	v.SetDefault("serverchan_push_url", "https://{num}.push.ft07.com")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("retry_count", 3)
	v.SetDefault("retry_base_delay", time.Second)
	v.SetDefault("concurrency", 5)
	v.SetDefault("quote_rate_limit", 0)
	v.SetDefault("show_time", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("dry_run", false)

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.fundpush")

	explicit := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("fund_codes", "FUND_CODES")
	v.BindEnv("sendkey", "SENDKEY", "SERVERCHAN_SENDKEY")
	v.BindEnv("title", "PUSH_TITLE")

	v.BindEnv("fundgz_base_url", "FUNDGZ_BASE_URL")
	v.BindEnv("serverchan_base_url", "SERVERCHAN_BASE_URL")
	v.BindEnv("serverchan_push_url", "SERVERCHAN_PUSH_URL")

	v.BindEnv("request_timeout", "REQUEST_TIMEOUT")
	v.BindEnv("retry_count", "RETRY_COUNT")
	v.BindEnv("retry_base_delay", "RETRY_BASE_DELAY")
	v.BindEnv("concurrency", "CONCURRENCY")
	v.BindEnv("quote_rate_limit", "QUOTE_RATE_LIMIT")

	v.BindEnv("show_time", "SHOW_TIME")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("log_format", "LOG_FORMAT")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	codes, err := ParseCodes(v.Get("fund_codes"))
	if err != nil {
		return nil, err
	}
	config.FundCodes = codes

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the fields Load cannot default.
func (c *Config) Validate() error {
	if c.SendKey == "" && !c.DryRun {
		return errors.New("missing required configuration: SENDKEY")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request_timeout %s: must be positive", c.RequestTimeout)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("invalid retry_count %d: must not be negative", c.RetryCount)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency %d: must be positive", c.Concurrency)
	}
	if c.QuoteRateLimit < 0 {
		return fmt.Errorf("invalid quote_rate_limit %v: must not be negative", c.QuoteRateLimit)
	}
	return nil
}

// ParseCodes accepts either a single string of codes separated by commas
// (ASCII or full-width) or whitespace, or a list of such strings.
func ParseCodes(raw any) ([]string, error) {
	var items []string
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case string:
		items = []string{v}
	default:
		var err error
		items, err = cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("invalid fund_codes: %w", err)
		}
	}

	codes := []string{}
	for _, item := range items {
		codes = append(codes, strings.FieldsFunc(item, isCodeSeparator)...)
	}
	return codes, nil
}

func isCodeSeparator(r rune) bool {
	return r == ',' || r == '，' || unicode.IsSpace(r)
}
