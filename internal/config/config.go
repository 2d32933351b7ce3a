package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type S3Config struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
}

type JWTConfig struct {
	Algorithm     string `mapstructure:"algorithm"`
	HSSecret      string `mapstructure:"hs_secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type PresenceConfig struct {
	SweepIntervalSeconds  int `mapstructure:"sweep_interval_seconds"`
	StaleThresholdSeconds int `mapstructure:"stale_threshold_seconds"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type MediaConfig struct {
	UploadTTLSeconds   int   `mapstructure:"upload_ttl_seconds"`
	DownloadTTLSeconds int   `mapstructure:"download_ttl_seconds"`
	MaxUploadBytes     int64 `mapstructure:"max_upload_bytes"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Presence PresenceConfig `mapstructure:"presence"`
	WS       WSConfig       `mapstructure:"ws"`
	Media    MediaConfig    `mapstructure:"media"`

	// derived
	SweepInterval  time.Duration
	StaleThreshold time.Duration
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	UploadTTL      time.Duration
	DownloadTTL    time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.App.Port == 0 {
		c.App.Port = 4000
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "pairchat"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "ws"
	}
	if c.Kafka.TopicMessageSent == "" {
		c.Kafka.TopicMessageSent = "chat.message-sent"
	}
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = "HS256"
	}
	if c.Presence.SweepIntervalSeconds == 0 {
		c.Presence.SweepIntervalSeconds = 120
	}
	if c.Presence.StaleThresholdSeconds == 0 {
		c.Presence.StaleThresholdSeconds = 120
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 65536
	}
	if c.Media.UploadTTLSeconds == 0 {
		c.Media.UploadTTLSeconds = 300
	}
	if c.Media.DownloadTTLSeconds == 0 {
		c.Media.DownloadTTLSeconds = 86400
	}
	if c.Media.MaxUploadBytes == 0 {
		c.Media.MaxUploadBytes = 50 * 1024 * 1024
	}

	c.SweepInterval = time.Duration(c.Presence.SweepIntervalSeconds) * time.Second
	c.StaleThreshold = time.Duration(c.Presence.StaleThresholdSeconds) * time.Second
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.UploadTTL = time.Duration(c.Media.UploadTTLSeconds) * time.Second
	c.DownloadTTL = time.Duration(c.Media.DownloadTTLSeconds) * time.Second
}
