package notifier_config

import (
	"github.com/ben458-1/URL-Server-Monitor/internal/notifier"
	"github.com/ben458-1/URL-Server-Monitor/internal/obs"
	pginfra "github.com/ben458-1/URL-Server-Monitor/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type AlertCfg struct {
	Recipients []string `mapstructure:"recipients"`
}

type Config struct {
	DB          pginfra.Config      `mapstructure:"db"`
	Kafka       KafkaIn             `mapstructure:"kafka"`
	SMTP        notifier.SMTPConfig `mapstructure:"smtp"`
	Alert       AlertCfg            `mapstructure:"alert"`
	MetricsAddr string              `mapstructure:"metrics_addr"`
	OTEL        obs.OTELConfig      `mapstructure:"otel"`
	LogLevel    string              `mapstructure:"log_level"`
}
