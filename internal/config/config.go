package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Storage  StorageConfig  `mapstructure:"storage"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Seed     SeedConfig     `mapstructure:"seed"`
	Log      LogConfig      `mapstructure:"log"`

	// Divisions restricts uploads to known namespaces. Empty accepts any division.
	Divisions []string `mapstructure:"divisions"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

type StorageConfig struct {
	Driver   string      `mapstructure:"driver"` // local | minio
	LocalDir string      `mapstructure:"local_dir"`
	MinIO    MinIOConfig `mapstructure:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type OCRConfig struct {
	Pdftoppm    string `mapstructure:"pdftoppm"`
	Tesseract   string `mapstructure:"tesseract"`
	Language    string `mapstructure:"language"`
	TessdataDir string `mapstructure:"tessdata_dir"`
	DPI         int    `mapstructure:"dpi"`
	MaxPages    int    `mapstructure:"max_pages"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai | ollama | anthropic | mistral
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SeedConfig holds the passwords of the default admin, gate and store users.
// A user is only seeded when its password is set.
type SeedConfig struct {
	AdminPassword string `mapstructure:"admin_password"`
	GatePassword  string `mapstructure:"gate_password"`
	StorePassword string `mapstructure:"store_password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

// Load reads configs/.env into the environment, then an optional configs/config.yaml,
// with environment variables taking precedence.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Divisions = splitList(cfg.Divisions)
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)

	if cfg.JWT.Secret == "" {
		if cfg.Server.Mode == "release" {
			return nil, fmt.Errorf("JWT_SECRET is required in release mode")
		}
		cfg.JWT.Secret = "default_super_secret_key"
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("server.max_upload_mb", 20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("jwt.issuer", "invoicedesk")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 30*24*time.Hour)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "temp_invoices")

	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.dpi", 300)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "GIN_MODE")
	v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")

	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.access_ttl", "JWT_ACCESS_TTL")
	v.BindEnv("jwt.refresh_ttl", "JWT_REFRESH_TTL")

	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.local_dir", "STORAGE_LOCAL_DIR")
	v.BindEnv("storage.minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio.bucket", "MINIO_BUCKET")
	v.BindEnv("storage.minio.use_ssl", "MINIO_USE_SSL")

	v.BindEnv("ocr.tessdata_dir", "TESSDATA_PREFIX")
	v.BindEnv("ocr.language", "OCR_LANGUAGE")
	v.BindEnv("ocr.max_pages", "OCR_MAX_PAGES")

	v.BindEnv("llm.provider", "LLM_PROVIDER")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("llm.api_key", "LLM_API_KEY")
	v.BindEnv("llm.base_url", "LLM_BASE_URL")
	v.BindEnv("llm.timeout", "LLM_TIMEOUT")

	v.BindEnv("seed.admin_password", "ADMIN_PASSWORD")
	v.BindEnv("seed.gate_password", "GATE_PASSWORD")
	v.BindEnv("seed.store_password", "STORE_PASSWORD")

	v.BindEnv("divisions", "DIVISIONS")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
}

// splitList accepts both YAML lists and a single comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
