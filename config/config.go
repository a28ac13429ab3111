package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	FTP       FTPConfig
	Importer  ImporterConfig
	Database  DatabaseConfig
	S3        S3Config
	DBPath    string
	LogLevel  string
	Providers map[string]*ProviderConfig
}

type FTPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	JSONDir   string
	ImagesDir string
}

type ImporterConfig struct {
	Cron             string
	Interval         time.Duration
	MaxDownloadBytes int64
	ImageDir         string
	ImageBaseURL     string
	FallbackProvider string
	Timezone         string
}

type DatabaseConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ProviderConfig describes one vendor family's quirks. Built-in defaults cover
// the known families; YAML files under config/providers override or extend
// them.
type ProviderConfig struct {
	ID string `yaml:"id"`
	// Prefix is prepended to identifiers resolved for this family and is the
	// token the parser matches when inferring a provider from a display id.
	Prefix string `yaml:"prefix"`
	// IDFromFilename allows deriving an identifier from the source filename
	// when the record carries none.
	IDFromFilename bool `yaml:"id_from_filename"`
	// CoverImageIndex, when set, names the input position whose photo becomes
	// the cover image after download (e.g. 1 for vendors whose second upload
	// is the exterior shot).
	CoverImageIndex *int `yaml:"cover_image_index"`
	// RequireImages skips the whole record when no photo downloads succeed.
	RequireImages bool `yaml:"require_images"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		FTP: FTPConfig{
			Host:      os.Getenv("FTP_HOST"),
			Port:      getEnvInt("FTP_PORT", 21),
			User:      os.Getenv("FTP_USER"),
			Password:  os.Getenv("FTP_PASSWORD"),
			JSONDir:   getEnv("FTP_JSON_DIR", "/offers"),
			ImagesDir: getEnv("FTP_IMAGES_DIR", "/images"),
		},
		Importer: ImporterConfig{
			Cron:             os.Getenv("IMPORT_CRON"),
			MaxDownloadBytes: getEnvInt64("MAX_DOWNLOAD_BYTES", 50*1024*1024),
			ImageDir:         getEnv("IMAGE_DIR", "images"),
			ImageBaseURL:     getEnv("IMAGE_BASE_URL", "/images"),
			FallbackProvider: os.Getenv("FALLBACK_PROVIDER"),
			Timezone:         getEnv("IMPORT_TIMEZONE", "Europe/Warsaw"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:    getEnv("DB_PATH", "importer.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Providers: DefaultProviders(),
	}

	if interval := os.Getenv("IMPORT_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Importer.Interval = d
		}
	}

	if err := cfg.loadProviderConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultProviders returns the built-in vendor families. AXA feeds carry no
// native offer identifiers and photos are mandatory there; the second uploaded
// photo is their exterior shot and becomes the cover image.
func DefaultProviders() map[string]*ProviderConfig {
	cover := 1
	return map[string]*ProviderConfig{
		"AXA": {
			ID:              "AXA",
			Prefix:          "AXA_",
			IDFromFilename:  true,
			CoverImageIndex: &cover,
			RequireImages:   true,
		},
		"PZU": {
			ID:     "PZU",
			Prefix: "PZU_",
		},
	}
}

func (c *Config) loadProviderConfigs() error {
	configDir := "config/providers"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var provider ProviderConfig
		if err := yaml.Unmarshal(data, &provider); err != nil {
			return err
		}

		c.Providers[provider.ID] = &provider
	}

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
