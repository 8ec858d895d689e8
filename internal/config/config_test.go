package config

import (
	"testing"
	"time"
)

func TestLoad_SubspaceDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Biometric.Strategy != StrategySubspace {
		t.Errorf("expected default strategy %q, got %q", StrategySubspace, cfg.Biometric.Strategy)
	}
	if cfg.Biometric.Threshold != 3.0 {
		t.Errorf("expected subspace threshold 3.0, got %f", cfg.Biometric.Threshold)
	}
	if cfg.Biometric.MajorityVote {
		t.Error("expected majority vote off for subspace preset")
	}
	if cfg.Biometric.Components != 20 {
		t.Errorf("expected 20 components, got %d", cfg.Biometric.Components)
	}
	if cfg.Biometric.RequiredPhotos != 5 {
		t.Errorf("expected 5 required photos, got %d", cfg.Biometric.RequiredPhotos)
	}
	if !cfg.Biometric.CrossUserCheck {
		t.Error("expected cross-user check on by default")
	}
	if cfg.Biometric.CrossUserIndex != CrossUserScan {
		t.Errorf("expected scan cross-user mode, got %q", cfg.Biometric.CrossUserIndex)
	}
}

func TestLoad_EmbeddingPreset(t *testing.T) {
	t.Setenv("BIOMETRIC_STRATEGY", "embedding")

	cfg := Load()

	if cfg.Biometric.Threshold != 0.45 {
		t.Errorf("expected embedding threshold 0.45, got %f", cfg.Biometric.Threshold)
	}
	if !cfg.Biometric.MajorityVote {
		t.Error("expected majority vote on for embedding preset")
	}
	if cfg.Embedding.Dim != 128 {
		t.Errorf("expected embedding dim 128, got %d", cfg.Embedding.Dim)
	}
}

func TestLoad_EnvOverridesPreset(t *testing.T) {
	t.Setenv("BIOMETRIC_THRESHOLD", "7.5")
	t.Setenv("BIOMETRIC_MAJORITY_VOTE", "true")
	t.Setenv("BIOMETRIC_ZSCORE", "1")
	t.Setenv("BIOMETRIC_COMPONENTS", "10")

	cfg := Load()

	if cfg.Biometric.Threshold != 7.5 {
		t.Errorf("expected threshold 7.5, got %f", cfg.Biometric.Threshold)
	}
	if !cfg.Biometric.MajorityVote {
		t.Error("expected majority vote override")
	}
	if !cfg.Biometric.ZScore {
		t.Error("expected z-score override")
	}
	if cfg.Biometric.Components != 10 {
		t.Errorf("expected 10 components, got %d", cfg.Biometric.Components)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(*Config) bool
	}{
		{"negative photo count", "BIOMETRIC_REQUIRED_PHOTOS", "-3", func(c *Config) bool { return c.Biometric.RequiredPhotos == 5 }},
		{"zero threshold", "BIOMETRIC_THRESHOLD", "0", func(c *Config) bool { return c.Biometric.Threshold == 3.0 }},
		{"garbage bool", "BIOMETRIC_CROSS_USER_CHECK", "maybe", func(c *Config) bool { return c.Biometric.CrossUserCheck }},
		{"garbage duration", "IMAGE_SWEEP_INTERVAL", "soon", func(c *Config) bool { return c.Storage.SweepInterval == time.Hour }},
		{"invalid scale factor", "FACE_SCALE_FACTOR", "abc", func(c *Config) bool { return c.Locator.ScaleFactor == 1.1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if !tc.check(Load()) {
				t.Errorf("expected default for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_LocatorDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Locator.ScaleFactor != 1.1 {
		t.Errorf("expected scale factor 1.1, got %f", cfg.Locator.ScaleFactor)
	}
	if cfg.Locator.MinNeighbors != 5 {
		t.Errorf("expected 5 min neighbors, got %d", cfg.Locator.MinNeighbors)
	}
	if cfg.Locator.MinSize != 30 {
		t.Errorf("expected min size 30, got %d", cfg.Locator.MinSize)
	}
}

func TestLoad_DatabaseConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/attendance")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "9")

	cfg := Load()

	if cfg.Database.URL != "postgres://u:p@localhost/attendance" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 9 {
		t.Errorf("expected 9 open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected 5 idle conns, got %d", cfg.Database.MaxIdleConns)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown strategy", func(c *Config) { c.Biometric.Strategy = "magic" }, true},
		{"too few samples", func(c *Config) { c.Biometric.MinSamples = 1 }, true},
		{"unknown cross-user mode", func(c *Config) { c.Biometric.CrossUserIndex = "lsh" }, true},
		{"hnsw cross-user mode", func(c *Config) { c.Biometric.CrossUserIndex = CrossUserHNSW }, false},
		{"missing capture dir", func(c *Config) { c.Storage.CaptureDir = "" }, true},
		{"bad timezone", func(c *Config) { c.Attendance.Timezone = "Mars/Olympus" }, true},
		{"embedding with dim", func(c *Config) { c.Biometric.Strategy = StrategyEmbedding }, false},
		{"zscore", func(c *Config) { c.Biometric.ZScore = true }, false},
		{"zscore with one component", func(c *Config) {
			c.Biometric.ZScore = true
			c.Biometric.Components = 1
		}, true},
		{"zscore threshold accepts everything", func(c *Config) {
			c.Biometric.ZScore = true
			c.Biometric.Components = 4
			c.Biometric.Threshold = 4.0
		}, true},
		{"zscore threshold below diameter", func(c *Config) {
			c.Biometric.ZScore = true
			c.Biometric.Components = 4
			c.Biometric.Threshold = 3.9
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestAttendanceLocation(t *testing.T) {
	loc, err := AttendanceConfig{Timezone: "Europe/Prague"}.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "Europe/Prague" {
		t.Errorf("expected Europe/Prague, got %s", loc)
	}

	loc, err = AttendanceConfig{}.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != time.Local {
		t.Errorf("expected local zone, got %s", loc)
	}
}

func TestLoad_WebAllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	cfg := Load()
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Web.AuthRateLimit != 1 || cfg.Web.AuthRateBurst != 5 {
		t.Errorf("rate limit defaults = %v/%d", cfg.Web.AuthRateLimit, cfg.Web.AuthRateBurst)
	}
}
