package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	AutoMigrate  bool   `mapstructure:"AUTO_MIGRATE"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	ClientOrigin string `mapstructure:"CLIENT_ORIGIN"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`

	StripeAPIKey   string `mapstructure:"STRIPE_API_KEY"`
	StripeCurrency string `mapstructure:"STRIPE_CURRENCY"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
	AWSRegion    string `mapstructure:"AWS_REGION"`
	SESFrom      string `mapstructure:"SES_FROM"`
	SESTo        string `mapstructure:"SES_TO"`

	Timezone        string `mapstructure:"TIMEZONE"`
	ShopDeliveryFee string `mapstructure:"SHOP_DELIVERY_FEE"`

	Location    *time.Location  `mapstructure:"-"`
	DeliveryFee decimal.Decimal `mapstructure:"-"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":       "8080",
	"AUTO_MIGRATE":      false,
	"CLIENT_ORIGIN":     "*",
	"LOG_LEVEL":         "INFO",
	"STRIPE_CURRENCY":   "inr",
	"AMQP_EXCHANGE":     "order_events",
	"KAFKA_TOPIC":       "order-events",
	"AWS_REGION":        "ap-south-1",
	"TIMEZONE":          "Local",
	"SHOP_DELIVERY_FEE": "0",
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Unmarshal only sees keys viper knows about, so bind every field.
	for _, k := range []string{"DATABASE_URL", "JWT_SECRET", "STRIPE_API_KEY", "AMQP_URL", "KAFKA_BROKERS", "SES_FROM", "SES_TO"} {
		_ = v.BindEnv(k)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Info("No .env file found, using environment only.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish validates required values and parses derived ones.
func (c *Config) finish() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("config: TIMEZONE: %w", err)
	}
	c.Location = loc

	fee, err := decimal.NewFromString(c.ShopDeliveryFee)
	if err != nil || fee.IsNegative() {
		return fmt.Errorf("config: SHOP_DELIVERY_FEE must be a non-negative number, got %q", c.ShopDeliveryFee)
	}
	c.DeliveryFee = fee
	return nil
}

// KafkaBrokerList splits the comma separated broker list.
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// SESRecipients splits the comma separated recipient list.
func (c *Config) SESRecipients() []string {
	return splitList(c.SESTo)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GommonLevel maps LOG_LEVEL onto the echo logger's levels.
func (c *Config) GommonLevel() log.Lvl {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return log.DEBUG
	case "WARN":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	}
	return log.INFO
}
