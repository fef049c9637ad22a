package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"chelsa_sampler/models"
)

type Config struct {
	Manifest  ManifestConfig
	Fetch     FetchConfig
	Output    OutputConfig
	Scheduler SchedulerConfig
	Postgres  PostgresConfig
	S3        S3Config
	DBPath    string
	LogPath   string
	Sites     []models.Site
}

type ManifestConfig struct {
	Path     string // local manifest file, one locator per line
	URL      string // remote manifest; HTML directory indexes are scraped for links
	Variable string // content tag, e.g. "tas"
	YearFrom int
	YearTo   int
}

type FetchConfig struct {
	DataDir          string
	MinBytes         int64         // minimum plausible size for a monthly global grid
	SizeTolerance    float64       // relative tolerance vs server-reported size
	FailureThreshold int           // consecutive failures before the run aborts
	Delay            time.Duration // pacing between successful downloads
	VerifyResume     bool          // re-check the TIFF signature on resumed files
	Timeout          time.Duration
}

type OutputConfig struct {
	Dir string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type PostgresConfig struct {
	URL string // empty disables the Postgres sink
}

type S3Config struct {
	Bucket          string // empty disables uploads
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Manifest: ManifestConfig{
			Path:     getEnv("MANIFEST_PATH", "envidatS3paths.txt"),
			URL:      os.Getenv("MANIFEST_URL"),
			Variable: getEnv("CHELSA_VARIABLE", "tas"),
			YearFrom: getEnvInt("YEAR_FROM", 2000),
			YearTo:   getEnvInt("YEAR_TO", 2019),
		},
		Fetch: FetchConfig{
			DataDir:          getEnv("DATA_DIR", "data/chelsa"),
			MinBytes:         getEnvInt64("MIN_BYTES", 1<<20),
			SizeTolerance:    getEnvFloat("SIZE_TOLERANCE", 0.01),
			FailureThreshold: getEnvInt("FAILURE_THRESHOLD", 1),
			Delay:            time.Duration(getEnvInt("FETCH_DELAY_MS", 500)) * time.Millisecond,
			VerifyResume:     getEnvBool("VERIFY_RESUME", false),
			Timeout:          getEnvDuration("DOWNLOAD_TIMEOUT", 5*time.Minute),
		},
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", "output"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SAMPLE_CRON"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "chelsa"),
		},
		DBPath:  getEnv("DB_PATH", "sampler.db"),
		LogPath: getEnv("LOG_PATH", "sampler.log"),
	}

	if interval := os.Getenv("SAMPLE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if cfg.Manifest.YearFrom > cfg.Manifest.YearTo {
		return nil, fmt.Errorf("YEAR_FROM %d after YEAR_TO %d", cfg.Manifest.YearFrom, cfg.Manifest.YearTo)
	}
	if cfg.Fetch.FailureThreshold < 1 {
		return nil, fmt.Errorf("FAILURE_THRESHOLD must be at least 1, got %d", cfg.Fetch.FailureThreshold)
	}

	if err := cfg.loadSites(getEnv("SITES_PATH", "config/sites.yaml")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSites reads the sampling site table from YAML, falling back to the
// compiled-in defaults when the file is absent.
func (c *Config) loadSites(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Sites = DefaultSites()
			return nil
		}
		return err
	}

	var sites []models.Site
	if err := yaml.Unmarshal(data, &sites); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(sites) == 0 {
		return fmt.Errorf("%s contains no sites", path)
	}
	c.Sites = sites
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
