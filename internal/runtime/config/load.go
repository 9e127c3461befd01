package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Server         string `toml:"server"`
	Encoding       string `toml:"encoding"`
	HTTPTimeout    string `toml:"http_timeout"`
	MaxMessageSize int    `toml:"max_message_size"`
	PollInterval   string `toml:"poll_interval"`
	JobTimeout     string `toml:"job_timeout"`

	Cache struct {
		Dir         string `toml:"dir"`
		Compression string `toml:"compression"`
	} `toml:"cache"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Metrics struct {
		Namespace string `toml:"namespace"`
	} `toml:"metrics"`

	Events struct {
		Transport          string   `toml:"transport"`
		Topic              string   `toml:"topic"`
		KafkaBrokers       []string `toml:"kafka_brokers"`
		KafkaConsumerGroup string   `toml:"kafka_consumer_group"`
		RabbitMQURL        string   `toml:"rabbitmq_url"`
		NATSURL            string   `toml:"nats_url"`
		HTTPListenAddress  string   `toml:"http_listen_address"`
		HTTPPublisherURL   string   `toml:"http_publisher_url"`
		AWSRegion          string   `toml:"aws_region"`
		AWSAccountID       string   `toml:"aws_account_id"`
		AWSAccessKeyID     string   `toml:"aws_access_key_id"`
		AWSSecretAccessKey string   `toml:"aws_secret_access_key"`
		AWSEndpoint        string   `toml:"aws_endpoint"`
	} `toml:"events"`
}

// Load reads a TOML file on top of Default. Keys absent from the file keep
// their default. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	setString := func(dst *string, src string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(src)
		}
	}
	setDuration := func(dst *time.Duration, src string, key ...string) error {
		if !meta.IsDefined(key...) {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(src))
		if err != nil {
			return fmt.Errorf("parse %s: %w", strings.Join(key, "."), err)
		}
		*dst = d
		return nil
	}

	setString(&cfg.ServerURL, raw.Server, "server")
	setString(&cfg.Encoding, raw.Encoding, "encoding")
	if err := setDuration(&cfg.HTTPTimeout, raw.HTTPTimeout, "http_timeout"); err != nil {
		return Config{}, err
	}
	if meta.IsDefined("max_message_size") {
		cfg.MaxMessageSize = raw.MaxMessageSize
	}
	if err := setDuration(&cfg.PollInterval, raw.PollInterval, "poll_interval"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.JobTimeout, raw.JobTimeout, "job_timeout"); err != nil {
		return Config{}, err
	}

	setString(&cfg.CacheDir, raw.Cache.Dir, "cache", "dir")
	setString(&cfg.CacheCompression, raw.Cache.Compression, "cache", "compression")
	setString(&cfg.LogLevel, raw.Log.Level, "log", "level")
	setString(&cfg.LogFormat, raw.Log.Format, "log", "format")
	setString(&cfg.MetricsNamespace, raw.Metrics.Namespace, "metrics", "namespace")

	ev := &cfg.Events
	setString(&ev.Transport, raw.Events.Transport, "events", "transport")
	setString(&ev.Topic, raw.Events.Topic, "events", "topic")
	if meta.IsDefined("events", "kafka_brokers") {
		ev.KafkaBrokers = normalizeList(raw.Events.KafkaBrokers)
	}
	setString(&ev.KafkaConsumerGroup, raw.Events.KafkaConsumerGroup, "events", "kafka_consumer_group")
	setString(&ev.RabbitMQURL, raw.Events.RabbitMQURL, "events", "rabbitmq_url")
	setString(&ev.NATSURL, raw.Events.NATSURL, "events", "nats_url")
	setString(&ev.HTTPListenAddress, raw.Events.HTTPListenAddress, "events", "http_listen_address")
	setString(&ev.HTTPPublisherURL, raw.Events.HTTPPublisherURL, "events", "http_publisher_url")
	setString(&ev.AWSRegion, raw.Events.AWSRegion, "events", "aws_region")
	setString(&ev.AWSAccountID, raw.Events.AWSAccountID, "events", "aws_account_id")
	setString(&ev.AWSAccessKeyID, raw.Events.AWSAccessKeyID, "events", "aws_access_key_id")
	setString(&ev.AWSSecretAccessKey, raw.Events.AWSSecretAccessKey, "events", "aws_secret_access_key")
	setString(&ev.AWSEndpoint, raw.Events.AWSEndpoint, "events", "aws_endpoint")

	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
