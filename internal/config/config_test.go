package config

import (
	"slices"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("JWT_SECRET", "")
	for _, key := range []string{"DIVISIONS", "PORT", "STORAGE_DRIVER", "STORAGE_LOCAL_DIR", "JWT_ACCESS_TTL", "LLM_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Storage.Driver != "local" || cfg.Storage.LocalDir != "temp_invoices" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.LLM.Timeout != time.Minute {
		t.Fatalf("durations = %v %v", cfg.JWT.AccessTTL, cfg.LLM.Timeout)
	}
	if cfg.JWT.Secret == "" {
		t.Fatal("development secret not applied")
	}
	if len(cfg.Divisions) != 0 {
		t.Fatalf("divisions = %v", cfg.Divisions)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("DIVISIONS", "north, south ,")
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("MINIO_BUCKET", "invoices")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("ADMIN_PASSWORD", "pw")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.JWT.Secret != "s3cret" || cfg.JWT.AccessTTL != 5*time.Minute {
		t.Fatalf("server/jwt = %+v %+v", cfg.Server, cfg.JWT)
	}
	if !slices.Equal(cfg.Divisions, []string{"north", "south"}) {
		t.Fatalf("divisions = %q", cfg.Divisions)
	}
	if cfg.Storage.Driver != "minio" || cfg.Storage.MinIO.Bucket != "invoices" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.LLM.Provider != "ollama" || cfg.Seed.AdminPassword != "pw" {
		t.Fatalf("llm/seed = %+v %+v", cfg.LLM, cfg.Seed)
	}
}

func TestLoadRequiresSecretInRelease(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without JWT_SECRET in release mode")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a,b", " c ", "", "d,,e"})
	if !slices.Equal(got, []string{"a", "b", "c", "d", "e"}) {
		t.Fatalf("splitList = %q", got)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "invoices", SSLMode: "disable"}
	if got := d.DSN(); got != "postgres://u:p@db:5432/invoices?sslmode=disable" {
		t.Fatalf("DSN = %q", got)
	}
}

func TestExampleConfigDecodes(t *testing.T) {
	v := viper.New()
	v.SetConfigFile("../../configs/config.example.yaml")
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read example: %v", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal example: %v", err)
	}
	if !slices.Equal(cfg.Divisions, []string{"engineering", "ultra_filtration", "water"}) {
		t.Fatalf("divisions = %q", cfg.Divisions)
	}
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.OCR.MaxPages != 10 || cfg.LLM.Timeout != time.Minute {
		t.Fatalf("decoded = %+v %+v %+v", cfg.JWT, cfg.OCR, cfg.LLM)
	}
}
