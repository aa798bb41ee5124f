package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server       ServerConfig
	Log          LogConfig
	YouTube      YouTubeConfig
	SessionCache SessionCacheConfig
	Dispatch     DispatchConfig
	Redis        RedisConfig
	RabbitMQ     RabbitMQConfig
	Worker       WorkerConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type LogConfig struct {
	Level     string `envconfig:"LOG_LEVEL" default:"info"`
	Format    string `envconfig:"LOG_FORMAT" default:"json"`
	AddSource bool   `envconfig:"LOG_ADD_SOURCE" default:"false"`
}

type YouTubeConfig struct {
	APIKey   string        `envconfig:"YOUTUBE_API_KEY" required:"true"`
	Endpoint string        `envconfig:"YOUTUBE_ENDPOINT"`
	Timeout  time.Duration `envconfig:"YOUTUBE_TIMEOUT" default:"15s"`
}

type SessionCacheConfig struct {
	Capacity int `envconfig:"SESSION_CAPACITY" default:"10"`
	PageSize int `envconfig:"SEARCH_PAGE_SIZE" default:"50"`
}

type DispatchConfig struct {
	Timeout       time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"20s"`
	Concurrency   int           `envconfig:"DISPATCH_CONCURRENCY" default:"8"`
	QueueSize     int           `envconfig:"DISPATCH_QUEUE_SIZE" default:"64"`
	MaxRestarts   int           `envconfig:"DISPATCH_MAX_RESTARTS" default:"10"`
	RestartWindow time.Duration `envconfig:"DISPATCH_RESTART_WINDOW" default:"1m"`
}

type RedisConfig struct {
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	VideoTTL time.Duration `envconfig:"REDIS_VIDEO_TTL" default:"10m"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RabbitMQConfig struct {
	Host      string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port      int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User      string `envconfig:"RABBITMQ_USER" default:"tubelytics"`
	Password  string `envconfig:"RABBITMQ_PASSWORD" default:"tubelytics"`
	VHost     string `envconfig:"RABBITMQ_VHOST" default:"/"`
	QueueName string `envconfig:"RABBITMQ_QUEUE" default:"search_requests"`
	Prefetch  int    `envconfig:"RABBITMQ_PREFETCH" default:"16"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type WorkerConfig struct {
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
