package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the OCR.space parse endpoint.
const DefaultAPIURL = "https://api.ocr.space/parse/image"

// placeholderKey is the value shipped in .env.example; it must never reach
// the network.
const placeholderKey = "your_api_key_here"

// Config holds all settings for the batch OCR driver. Fields without an
// environment variable are internal knobs with fixed defaults.
type Config struct {
	APIKey   string // OCR_API_KEY
	APIURL   string
	Language string // OCR_LANGUAGE
	Engine   string // OCR_ENGINE
	Scale    string // OCR_SCALE

	RequestTimeout time.Duration // REQUEST_TIMEOUT, seconds
	SleepTime      time.Duration // SLEEP_TIME, seconds (fractional allowed)
	MaxRetries     int           // MAX_RETRIES

	// Backoff schedule. API-level failures wait attempt*RetryWaitUnit,
	// timeouts and transport failures wait a flat TransportWait.
	RetryWaitUnit time.Duration
	TransportWait time.Duration

	OutputDir string
	LogFile   string
}

// Load reads configuration from the environment, applying defaults for
// anything unset. A .env file in the working directory is loaded first if
// present.
func Load() Config {
	_ = godotenv.Load() // ignore missing .env

	return Config{
		APIKey:         os.Getenv("OCR_API_KEY"),
		APIURL:         DefaultAPIURL,
		Language:       getEnv("OCR_LANGUAGE", "chs"),
		Engine:         getEnv("OCR_ENGINE", "2"),
		Scale:          getEnv("OCR_SCALE", "true"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT", 120)) * time.Second,
		SleepTime:      getEnvSeconds("SLEEP_TIME", 1.2),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryWaitUnit:  2 * time.Second,
		TransportWait:  5 * time.Second,
		OutputDir:      "ocr_text",
		LogFile:        "ocr.log",
	}
}

// Validate rejects configurations that must not produce network activity.
func (c Config) Validate() error {
	if c.APIKey == "" || c.APIKey == placeholderKey {
		return fmt.Errorf("OCR_API_KEY must be set (register at https://ocr.space/registration/ and put the key in .env)")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback float64) time.Duration {
	seconds := fallback
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			seconds = f
		}
	}
	return time.Duration(seconds * float64(time.Second))
}
