package clipflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Mode         string
	ApiPort      string
	TenantID     string
	MainDatabase struct {
		Host         string
		Port         string
		User         string
		Password     string
		DatabaseName string
		SSLMode      string
	}
	JWTConfig struct {
		Secret     string
		Expiration int // in minutes
	}
	RedisConfig struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	NatsConfig struct {
		URL string
	}
	SmtpConfig struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
		UseTLS   bool
		Enabled  bool
	}
	EngineConfig struct {
		MaxConcurrency     int
		NodeTimeoutSeconds int
		PollIntervalMs     int
		PollMaxAttempts    int
		JobTimeoutSeconds  int
		StartingCredits    int
	}
	ModelProvider struct {
		URL         string
		Token       string
		DefaultCost int
	}
}

var config AppConfig

func InitConfig(envfile string) {
	err := godotenv.Load(envfile)
	if err != nil {
		log.Fatal(fmt.Sprintf("Error loading %s file: %s", envfile, err))
	}
	config = AppConfig{
		Mode:     getEnvOrPanic("RUN_MODE"),
		ApiPort:  getEnvOrPanic("API_PORT"),
		TenantID: GetEnv("TENANT_ID", "default"),
		MainDatabase: struct {
			Host         string
			Port         string
			User         string
			Password     string
			DatabaseName string
			SSLMode      string
		}{
			Host:         getEnvOrPanic("DB_HOSTNAME"),
			Port:         getEnvOrPanic("DB_PORT"),
			User:         getEnvOrPanic("DB_USERNAME"),
			Password:     getEnvOrPanic("DB_PASSWORD"),
			DatabaseName: getEnvOrPanic("DB_NAME"),
			SSLMode:      getEnvOrPanic("DB_SSL_MODE"),
		},
		JWTConfig: struct {
			Secret     string
			Expiration int
		}{
			Secret:     getEnvOrPanic("JWT_SECRET"),
			Expiration: getIntEnvOrPanic("JWT_EXPIRATION_MINUTES"),
		},
		RedisConfig: struct {
			Host     string
			Port     string
			Password string
			DB       int
		}{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnvOrDefault("REDIS_DB", 0),
		},
		NatsConfig: struct {
			URL string
		}{
			URL: GetEnv("NATS_URL", "nats://localhost:4222"),
		},
		SmtpConfig: struct {
			Host     string
			Port     int
			Username string
			Password string
			From     string
			UseTLS   bool
			Enabled  bool
		}{
			Host:     GetEnv("SMTP_HOST", ""),
			Port:     getIntEnvOrDefault("SMTP_PORT", 587),
			Username: GetEnv("SMTP_USERNAME", ""),
			Password: GetEnv("SMTP_PASSWORD", ""),
			From:     GetEnv("SMTP_FROM", "noreply@clipflow.local"),
			UseTLS:   GetEnv("SMTP_USE_TLS", "false") == "true",
			Enabled:  GetEnv("FAILURE_EMAIL_ENABLED", "false") == "true",
		},
		EngineConfig: struct {
			MaxConcurrency     int
			NodeTimeoutSeconds int
			PollIntervalMs     int
			PollMaxAttempts    int
			JobTimeoutSeconds  int
			StartingCredits    int
		}{
			MaxConcurrency:     getIntEnvOrDefault("ENGINE_MAX_CONCURRENCY", 4),
			NodeTimeoutSeconds: getIntEnvOrDefault("ENGINE_NODE_TIMEOUT_SECONDS", 120),
			PollIntervalMs:     getIntEnvOrDefault("JOB_POLL_INTERVAL_MS", 2000),
			PollMaxAttempts:    getIntEnvOrDefault("JOB_POLL_MAX_ATTEMPTS", 5),
			JobTimeoutSeconds:  getIntEnvOrDefault("JOB_TIMEOUT_SECONDS", 300),
			StartingCredits:    getIntEnvOrDefault("STARTING_CREDITS", 100),
		},
		ModelProvider: struct {
			URL         string
			Token       string
			DefaultCost int
		}{
			URL:         GetEnv("MODEL_API_URL", "https://api.replicate.com/v1"),
			Token:       GetEnv("MODEL_API_TOKEN", ""),
			DefaultCost: getIntEnvOrDefault("DEFAULT_MODEL_COST", 10),
		},
	}

	Logger = NewLogger()
	DB = connectToPostgres(config.MainDatabase.Host, config.MainDatabase.User, config.MainDatabase.Password, config.MainDatabase.DatabaseName, config.MainDatabase.Port, config.MainDatabase.SSLMode)
	Redis = connectToRedis(config.RedisConfig.Host, config.RedisConfig.Port, config.RedisConfig.Password, config.RedisConfig.DB)
	Nats = connectToNats(config.NatsConfig.URL)
}

func GetConfig() AppConfig {
	return config
}

func getEnvOrPanic(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s must be set", key)
	}
	return value
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnvOrPanic(key string) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		log.Fatalf("%s must be an integer", key)
	}
	return value
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

// connectToPostgres opens the pool and routes gorm's own error logs through the zerolog logger,
// so Logger must be set first.
func connectToPostgres(host string, username string, password string, dbname string, port string, ssl string) *gorm.DB {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, username, password, dbname, port, ssl)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(
			log.New(Logger.With().Str("component", "gorm").Logger(), "", 0),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
			},
		),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	if err != nil {
		Logger.Fatal().Err(err).Str("host", host).Str("db", dbname).Msg("Failed to connect to Postgres")
	}
	conn, err := db.DB()
	if err != nil {
		Logger.Fatal().Err(err).Msg("Failed to get the Postgres pool")
	}
	// one connection per scheduler worker plus headroom for the HTTP handlers
	conn.SetMaxIdleConns(config.EngineConfig.MaxConcurrency + 2)
	conn.SetMaxOpenConns(config.EngineConfig.MaxConcurrency*2 + 4)
	conn.SetConnMaxLifetime(time.Hour)
	return db
}

// NewLogger is the console logger every clipflow binary logs through.
func NewLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		NoColor:    false,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("  %s  ", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}

	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

func connectToRedis(host string, port string, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		Logger.Fatal().Err(err).Str("addr", client.Options().Addr).Msg("Failed to connect to Redis")
	}
	return client
}

// connectToNats is best-effort: without NATS events are still streamed over SSE, only the
// websocket relay goes quiet.
func connectToNats(url string) *nats.Conn {
	nc, err := nats.Connect(url,
		nats.Name("clipflow-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		Logger.Warn().Err(err).Str("url", url).Msg("NATS connection failed, event relay disabled")
		return nil
	}
	Logger.Info().Str("url", url).Msg("Connected to NATS")
	return nc
}
