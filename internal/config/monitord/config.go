package monitord_config

import (
	"time"

	"github.com/ben458-1/URL-Server-Monitor/internal/obs"
	"github.com/ben458-1/URL-Server-Monitor/internal/probe"
	pginfra "github.com/ben458-1/URL-Server-Monitor/internal/repository/postgres"
	"github.com/ben458-1/URL-Server-Monitor/internal/scheduler"
)

type AppCfg struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type LogCfg struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

func (c LogCfg) AsLoggerConfig(app AppCfg) obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Level,
		Pretty: c.Pretty,
		File:   c.File,
		App:    app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type ServerCfg struct {
	HTTPAddr     string        `mapstructure:"http_addr"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type HubCfg struct {
	QueueSize int `mapstructure:"queue_size"`
}

type KafkaCfg struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Config struct {
	App    AppCfg           `mapstructure:"app"`
	DB     pginfra.Config   `mapstructure:"db"`
	Sched  scheduler.Config `mapstructure:"sched"`
	Probe  probe.HTTPConfig `mapstructure:"probe"`
	Server ServerCfg        `mapstructure:"server"`
	Hub    HubCfg           `mapstructure:"hub"`
	Kafka  KafkaCfg         `mapstructure:"kafka"`
	OTEL   obs.OTELConfig   `mapstructure:"otel"`
	Log    LogCfg           `mapstructure:"log"`
}
