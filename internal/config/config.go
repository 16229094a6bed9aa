package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"swapit/internal/domain"
	"swapit/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string // optional, enables the result archive
	JWTSecret     string
	AdminKey      string
	AllowedOrigin string

	// Telegram: login through WebApp init data and the admin bot
	TelegramBotToken string
	InitDataMaxAge   time.Duration
	AdminBotToken    string
	AdminTelegramIDs []int64

	LogLevel string
	LogJSON  bool

	SessionTTL time.Duration

	// Defaults applied once when a session is created
	SessionDefaults domain.Options

	// Rate limits
	APIRateLimit   int
	APIRateWindow  time.Duration
	MoveRateLimit  int
	MoveRateWindow time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}

	theme := os.Getenv("DEFAULT_EMOJI_THEME")
	if theme == "" {
		theme = domain.DefaultEmojiTheme
	}

	return &Config{
		AppPort:       port,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     jwtSecret,
		AdminKey:      os.Getenv("ADMIN_KEY"),
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		InitDataMaxAge:   time.Duration(envInt("INIT_DATA_MAX_AGE_SECONDS", 3600)) * time.Second,
		AdminBotToken:    os.Getenv("ADMIN_BOT_TOKEN"),
		AdminTelegramIDs: envIDs("ADMIN_TELEGRAM_IDS"),

		LogLevel:      logLevel,
		LogJSON:       os.Getenv("LOG_JSON") == "true",
		SessionTTL:    time.Duration(envInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		SessionDefaults: domain.Options{
			TileCount:      envInt("DEFAULT_TILE_COUNT", domain.DefaultTileCount),
			EmojiTheme:     theme,
			MaxPlayers:     envInt("DEFAULT_MAX_PLAYERS", domain.DefaultMaxPlayers),
			PlacementCount: envInt("DEFAULT_PLACEMENT_COUNT", domain.DefaultPlacementCount),
		},
		APIRateLimit:   envInt("API_RATE_LIMIT", 120),
		APIRateWindow:  time.Duration(envInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		MoveRateLimit:  envInt("MOVE_RATE_LIMIT", 600),
		MoveRateWindow: time.Duration(envInt("MOVE_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}
}

// envInt returns the positive integer stored in key, or def.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("ignoring invalid integer env value", "key", key, "value", v)
		return def
	}
	return n
}

// envIDs parses a comma separated list of Telegram user ids.
func envIDs(key string) []int64 {
	var ids []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Warn("ignoring invalid telegram id", "key", key, "value", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
