package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DetectorURL string
	CORSOrigins string
	LogLevel    string
	Environment string
	VideoDir    string

	DBName     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Detection tunables. Defaults follow the proctoring policy:
	// 10s no-face debounce, 5s gaze debounce, 25px gaze offset,
	// face tick every 1s, object tick every 2s, 0.6 confidence gate.
	NoFaceThresholdSec      int
	LookingAwayThresholdSec int
	GazeOffsetPx            float64
	FaceIntervalSec         int
	ObjectIntervalSec       int
	ObjectMinConfidence     float64
	ObjectCooldownSec       int
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// DSNForLog renders the DSN with the password masked.
func (c *Config) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8081"),
		DetectorURL: getEnv("DETECTOR_URL", "localhost:9000"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		Environment: getEnv("ENVIRONMENT", "production"),
		VideoDir:    getEnv("VIDEO_DIR", "uploads/videos"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "ai_proctor"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		NoFaceThresholdSec:      getEnvInt("NO_FACE_THRESHOLD_SEC", 10),
		LookingAwayThresholdSec: getEnvInt("LOOKING_AWAY_THRESHOLD_SEC", 5),
		GazeOffsetPx:            getEnvFloat("GAZE_OFFSET_PX", 25),
		FaceIntervalSec:         getEnvInt("FACE_INTERVAL_SEC", 1),
		ObjectIntervalSec:       getEnvInt("OBJECT_INTERVAL_SEC", 2),
		ObjectMinConfidence:     getEnvFloat("OBJECT_MIN_CONFIDENCE", 0.6),
		ObjectCooldownSec:       getEnvInt("OBJECT_COOLDOWN_SEC", 0),
	}

	if cfg.DBPassword == "" {
		fmt.Println("WARNING: DB_PASSWORD is not set!")
	}
	if cfg.DBName == "" {
		fmt.Println("WARNING: DB_NAME is not set, using default: ai_proctor")
		cfg.DBName = "ai_proctor"
	}

	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
