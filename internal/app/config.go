package app

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	TMDBAPIKey         string
	TMDBBaseURL        string
	TMDBLanguage       string
	TMDBRatePerSecond  int
	CatalogTimeout     time.Duration
	FetchTimeout       time.Duration
	SearchDebounce     time.Duration
	StoreBackend       string
	MongoURI           string
	MongoDatabase      string
	MongoCollection    string
	RedisURL           string
	ConnectivityTarget string
	ConnectivityTTL    time.Duration
	ForceOffline       bool
	CORSAllowedOrigins []string
	ServiceVersion     string
	TraceSampleRatio   float64
}

func LoadConfig() Config {
	baseURL := getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TMDBAPIKey:         strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:        baseURL,
		TMDBLanguage:       getEnv("TMDB_LANGUAGE", "en-US"),
		TMDBRatePerSecond:  getEnvInt("TMDB_RATE_PER_SECOND", 20),
		CatalogTimeout:     time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,
		FetchTimeout:       time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		SearchDebounce:     time.Duration(getEnvInt("SEARCH_DEBOUNCE_MS", 500)) * time.Millisecond,
		StoreBackend:       normalizeStoreBackend(getEnv("STORE_BACKEND", StoreMemory)),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      getEnv("MONGO_DATABASE", "movieapp"),
		MongoCollection:    getEnv("MONGO_COLLECTION", "movies"),
		RedisURL:           getEnv("REDIS_URL", ""),
		ConnectivityTarget: getEnv("CONNECTIVITY_TARGET", hostPortFromURL(baseURL)),
		ConnectivityTTL:    time.Duration(getEnvInt("CONNECTIVITY_TTL_SECONDS", 5)) * time.Second,
		ForceOffline:       getEnvBool("FORCE_OFFLINE", false),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		ServiceVersion:     getEnv("SERVICE_VERSION", "dev"),
		TraceSampleRatio:   getEnvRatio("OTEL_TRACES_SAMPLER_ARG", 1),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnvRatio reads a float in [0,1]; anything else yields fallback.
func getEnvRatio(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func normalizeStoreBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreMongo, "mongodb":
		return StoreMongo
	case StoreRedis:
		return StoreRedis
	default:
		return StoreMemory
	}
}

// hostPortFromURL turns a catalog base URL into the host:port the
// connectivity probe dials.
func hostPortFromURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Hostname() == "" {
		return "api.themoviedb.org:443"
	}
	port := parsed.Port()
	if port == "" {
		port = "443"
		if parsed.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(parsed.Hostname(), port)
}
