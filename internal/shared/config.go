package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"rental_moderation/internal/app"
)

const (
	BackendMySQL = "mysql"
	BackendMongo = "mongo"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	RequestTimeout time.Duration

	StoreBackend string
	MySQLDSN     string
	MongoURI     string
	MongoDB      string

	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CachePrefix string
	CacheTTL    time.Duration

	GeminiKey         string
	GeminiModel       string
	GeminiBaseURL     string
	UploadsDir        string
	VisionTimeout     time.Duration
	VisionConcurrency int
	FetchRPS          int
	MaxImages         int

	ThresholdsFile   string
	PrescreenWorkers int
	PrescreenLimit   int
}

// Load reads a .env file when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	seconds := func(k string, def int) time.Duration { return time.Duration(atoi(k, def)) * time.Second }

	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		RequestTimeout: seconds("REQUEST_TIMEOUT_SECONDS", 90),

		StoreBackend: env("STORE_BACKEND", BackendMySQL),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rental?parseTime=true&charset=utf8mb4&loc=UTC"),
		MongoURI:     env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      env("MONGO_DB", "QLChoThueTro"),

		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		CachePrefix: env("CACHE_PREFIX", "rental:"),
		CacheTTL:    seconds("CACHE_TTL_SECONDS", 300),

		GeminiKey:         env("GEMINI_API_KEY", ""),
		GeminiModel:       env("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:     env("GEMINI_BASE_URL", ""),
		UploadsDir:        env("UPLOADS_DIR", "./uploads"),
		VisionTimeout:     seconds("VISION_TIMEOUT_SECONDS", 15),
		VisionConcurrency: atoi("VISION_CONCURRENCY", 4),
		FetchRPS:          atoi("FETCH_RPS", 10),
		MaxImages:         atoi("MAX_IMAGES", 20),

		ThresholdsFile:   env("MODERATION_THRESHOLDS_FILE", ""),
		PrescreenWorkers: atoi("PRESCREEN_WORKERS", 4),
		PrescreenLimit:   atoi("PRESCREEN_LIMIT", 200),
	}
	if c.GeminiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty")
	}
	return c
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMySQL, BackendMongo:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMySQL, BackendMongo, c.StoreBackend)
	}
	if c.GeminiKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	// a zero-weight semaphore would block the sweep forever
	if c.PrescreenWorkers < 1 {
		return fmt.Errorf("PRESCREEN_WORKERS must be at least 1, got %d", c.PrescreenWorkers)
	}
	if c.PrescreenLimit < 1 {
		return fmt.Errorf("PRESCREEN_LIMIT must be at least 1, got %d", c.PrescreenLimit)
	}
	return nil
}

// LoadThresholds starts from the defaults and overlays the YAML file when one
// is given. Fields missing from the file keep their default.
func LoadThresholds(path string) (app.Thresholds, error) {
	th := app.DefaultThresholds()
	if path == "" {
		return th, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(b, &th); err != nil {
		return th, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("thresholds %s: %w", path, err)
	}
	return th, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
