package config

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	// HTTP 服务
	HTTPAddr string

	// MySQL 配置
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis 配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 认证
	JWTSecret string

	// Spotify Web API
	SpotifyAPIBaseURL string

	// 播放同步参数
	SyncToleranceMS int // 失步容忍阈值（毫秒）
	SyncDebounceMS  int // 快照防抖间隔（毫秒）
}

var (
	cfg     *Config
	cfgOnce sync.Once
)

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	cfgOnce.Do(func() {
		// godotenv.Load() 不会覆盖已存在的环境变量
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, relying on existing environment variables and defaults.")
		}

		cfg = &Config{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

			DBHost:     getEnv("DB_HOST", "127.0.0.1"),
			DBPort:     getEnv("DB_PORT", "3306"),
			DBUser:     getEnv("DB_USER", "root"),
			DBPassword: os.Getenv("DB_PASSWORD"),
			DBName:     getEnv("DB_NAME", "chowlive"),

			RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),

			JWTSecret: getEnv("JWT_SECRET", "chowlive-dev-secret"),

			SpotifyAPIBaseURL: getEnv("SPOTIFY_API_BASE_URL", "https://api.spotify.com/v1"),

			SyncToleranceMS: getEnvInt("CHOW_SYNC_TOLERANCE_MS", 3000),
			SyncDebounceMS:  getEnvInt("CHOW_SYNC_DEBOUNCE_MS", 300),
		}
	})
	return cfg
}

// Get 返回已加载的配置，未加载时先加载
func Get() *Config {
	return Load()
}
