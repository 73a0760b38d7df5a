package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Environment EnvironmentConfig
	Server      ServerConfig
	Logger      LoggerConfig

	Postgres PostgresConfig
	Redis    RedisConfig
	Firebase FirebaseConfig

	WebSocket WebSocketConfig
	Delivery  DeliveryConfig

	JWT     JWTConfig
	Discord DiscordConfig
}

// EnvironmentConfig is the configuration for the deployment environment.
type EnvironmentConfig struct {
	Name string
}

// ServerConfig is the configuration for the HTTP server.
type ServerConfig struct {
	Host string
	Port int
	Mode string
}

// LoggerConfig is the configuration for the logger.
type LoggerConfig struct {
	Level        string
	Mode         string
	Encoding     string
	ColorEnabled bool
}

// PostgresConfig is the configuration for PostgreSQL.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig is the configuration for Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	MaxRetries   int
	MinIdleConns int
	PoolSize     int
	PoolTimeout  time.Duration
}

// FirebaseConfig is the configuration for the FCM push provider.
type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
}

// WebSocketConfig is the configuration for live WebSocket connections.
type WebSocketConfig struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	MaxConnections  int
}

// DeliveryConfig is the configuration for the delivery pipeline.
type DeliveryConfig struct {
	QueueCapacity     int
	HeartbeatInterval time.Duration
	DrainTimeout      time.Duration
	PushChunkSize     int
	RoomCapacity      int
}

// JWTConfig is the configuration for JWT validation.
type JWTConfig struct {
	SecretKey string
}

// DiscordConfig is the configuration for Discord ops alerts.
type DiscordConfig struct {
	WebhookID    string
	WebhookToken string
}

// Load loads configuration using Viper.
func Load() (*Config, error) {
	viper.SetConfigName("notify-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/bookclub/")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// Config file is optional; env vars cover everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}

	cfg.Environment.Name = viper.GetString("environment.name")

	cfg.Server.Host = viper.GetString("server.host")
	cfg.Server.Port = viper.GetInt("server.port")
	cfg.Server.Mode = viper.GetString("server.mode")

	cfg.Logger.Level = viper.GetString("logger.level")
	cfg.Logger.Mode = viper.GetString("logger.mode")
	cfg.Logger.Encoding = viper.GetString("logger.encoding")
	cfg.Logger.ColorEnabled = viper.GetBool("logger.color_enabled")

	cfg.Postgres.Host = viper.GetString("postgres.host")
	cfg.Postgres.Port = viper.GetInt("postgres.port")
	cfg.Postgres.User = viper.GetString("postgres.user")
	cfg.Postgres.Password = viper.GetString("postgres.password")
	cfg.Postgres.DBName = viper.GetString("postgres.dbname")
	cfg.Postgres.SSLMode = viper.GetString("postgres.sslmode")

	cfg.Redis.Host = viper.GetString("redis.host")
	cfg.Redis.Port = viper.GetInt("redis.port")
	cfg.Redis.Password = viper.GetString("redis.password")
	cfg.Redis.DB = viper.GetInt("redis.db")
	cfg.Redis.MaxRetries = viper.GetInt("redis.max_retries")
	cfg.Redis.MinIdleConns = viper.GetInt("redis.min_idle_conns")
	cfg.Redis.PoolSize = viper.GetInt("redis.pool_size")
	cfg.Redis.PoolTimeout = viper.GetDuration("redis.pool_timeout")

	cfg.Firebase.CredentialsPath = viper.GetString("firebase.credentials_path")
	cfg.Firebase.ProjectID = viper.GetString("firebase.project_id")

	cfg.WebSocket.WriteWait = viper.GetDuration("websocket.write_wait")
	cfg.WebSocket.PongWait = viper.GetDuration("websocket.pong_wait")
	cfg.WebSocket.MaxMessageSize = viper.GetInt64("websocket.max_message_size")
	cfg.WebSocket.ReadBufferSize = viper.GetInt("websocket.read_buffer_size")
	cfg.WebSocket.WriteBufferSize = viper.GetInt("websocket.write_buffer_size")
	cfg.WebSocket.SendBufferSize = viper.GetInt("websocket.send_buffer_size")
	cfg.WebSocket.MaxConnections = viper.GetInt("websocket.max_connections")

	cfg.Delivery.QueueCapacity = viper.GetInt("delivery.queue_capacity")
	cfg.Delivery.HeartbeatInterval = viper.GetDuration("delivery.heartbeat_interval")
	cfg.Delivery.DrainTimeout = viper.GetDuration("delivery.drain_timeout")
	cfg.Delivery.PushChunkSize = viper.GetInt("delivery.push_chunk_size")
	cfg.Delivery.RoomCapacity = viper.GetInt("delivery.room_capacity")

	cfg.JWT.SecretKey = viper.GetString("jwt.secret_key")

	cfg.Discord.WebhookID = viper.GetString("discord.webhook_id")
	cfg.Discord.WebhookToken = viper.GetString("discord.webhook_token")

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment.name", "production")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8082)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.mode", "production")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("logger.color_enabled", false)

	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "bookclub")
	viper.SetDefault("postgres.dbname", "bookclub")
	viper.SetDefault("postgres.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.min_idle_conns", 10)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("redis.pool_timeout", 4*time.Second)

	viper.SetDefault("websocket.write_wait", 10*time.Second)
	viper.SetDefault("websocket.pong_wait", 60*time.Second)
	viper.SetDefault("websocket.max_message_size", 512)
	viper.SetDefault("websocket.read_buffer_size", 1024)
	viper.SetDefault("websocket.write_buffer_size", 1024)
	viper.SetDefault("websocket.send_buffer_size", 256)
	viper.SetDefault("websocket.max_connections", 10000)

	viper.SetDefault("delivery.queue_capacity", 1000)
	viper.SetDefault("delivery.heartbeat_interval", 15*time.Second)
	viper.SetDefault("delivery.drain_timeout", 30*time.Second)
	viper.SetDefault("delivery.push_chunk_size", 500)
	viper.SetDefault("delivery.room_capacity", 200)
}

func validate(cfg *Config) error {
	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secret_key is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		return fmt.Errorf("jwt.secret_key must be at least 32 characters")
	}
	if cfg.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if cfg.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if cfg.Delivery.QueueCapacity <= 0 {
		return fmt.Errorf("delivery.queue_capacity must be positive")
	}
	if cfg.Delivery.PushChunkSize <= 0 || cfg.Delivery.PushChunkSize > 500 {
		return fmt.Errorf("delivery.push_chunk_size must be in (0, 500]")
	}
	return nil
}
