package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Strategy names accepted by BIOMETRIC_STRATEGY.
const (
	StrategySubspace  = "subspace"
	StrategyEmbedding = "embedding"
)

// Cross-user search modes accepted by BIOMETRIC_CROSS_USER_INDEX.
const (
	// CrossUserScan compares against every other user's signature.
	CrossUserScan = "scan"
	// CrossUserHNSW searches an approximate HNSW graph; it trades exactness for
	// speed and can miss the true nearest signature of another user.
	CrossUserHNSW = "hnsw"
)

type Config struct {
	Database   DatabaseConfig
	Biometric  BiometricConfig
	Locator    LocatorConfig
	Embedding  EmbeddingConfig
	Storage    StorageConfig
	Auth       AuthConfig
	Attendance AttendanceConfig
	Web        WebConfig
	Log        LogConfig
	Presets    PresetsConfig
}

type DatabaseConfig struct {
	URL          string // postgres://, mysql://, sqlite3:// or a bare DSN
	Driver       string // optional override: postgres, mysql or sqlite3
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type BiometricConfig struct {
	Strategy       string  // subspace (default) or embedding
	Threshold      float64 // accept when the best distance is below this
	RequiredPhotos int     // exact enrollment batch size
	Components     int     // maximum subspace dimensions
	MinSamples     int     // usable images required before a subspace model is activated
	ZScore         bool    // z-score normalize projected vectors
	MajorityVote   bool    // require half of the stored vectors to match
	CrossUserCheck bool    // reject when another identity is closer
	CrossUserIndex string  // scan (exact) or hnsw (approximate)
}

type LocatorConfig struct {
	CascadePath  string // Haar cascade XML; empty tries well-known install paths
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 128
}

type StorageConfig struct {
	UploadDir     string // files posted as multipart uploads
	CaptureDir    string // base64 webcam captures
	SweepInterval time.Duration
	SweepGrace    time.Duration
}

type AuthConfig struct {
	TokenSecret string // HMAC key for JWTs; a random key is generated when empty
	PendingTTL  time.Duration
	SessionTTL  time.Duration
}

type AttendanceConfig struct {
	Timezone string // IANA name; empty means the process local zone
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS origins besides localhost
	AuthRateLimit  float64  // login/verify requests per second per client IP
	AuthRateBurst  int
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

type PresetsConfig struct {
	Strategies map[string]StrategyPreset `yaml:"strategies"`
}

type StrategyPreset struct {
	Threshold    float64 `yaml:"threshold"`
	MajorityVote bool    `yaml:"majority_vote"`
	ZScore       bool    `yaml:"zscore"`
	Components   int     `yaml:"components"`
	Dim          int     `yaml:"dim"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to the default when unset or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool reads a boolean in any form strconv.ParseBool accepts.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envDuration reads a Go duration string such as "90s" or "1h".
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var presets PresetsConfig
	if err := yaml.Unmarshal(presetsYAML, &presets); err != nil {
		// Embedded file, so this only fails on a broken build.
		panic("failed to unmarshal embedded presets.yaml: " + err.Error())
	}

	strategy := envString("BIOMETRIC_STRATEGY", StrategySubspace)
	preset := presets.Strategy(strategy)

	components := preset.Components
	if components == 0 {
		components = constants.DefaultComponents
	}
	dim := preset.Dim
	if dim == 0 {
		dim = constants.DefaultEmbeddingDim
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       os.Getenv("DATABASE_DRIVER"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Biometric: BiometricConfig{
			Strategy:       strategy,
			Threshold:      envFloat("BIOMETRIC_THRESHOLD", preset.Threshold),
			RequiredPhotos: envInt("BIOMETRIC_REQUIRED_PHOTOS", constants.DefaultRequiredPhotos),
			Components:     envInt("BIOMETRIC_COMPONENTS", components),
			MinSamples:     envInt("BIOMETRIC_MIN_SAMPLES", constants.DefaultMinSamples),
			ZScore:         envBool("BIOMETRIC_ZSCORE", preset.ZScore),
			MajorityVote:   envBool("BIOMETRIC_MAJORITY_VOTE", preset.MajorityVote),
			CrossUserCheck: envBool("BIOMETRIC_CROSS_USER_CHECK", true),
			CrossUserIndex: envString("BIOMETRIC_CROSS_USER_INDEX", CrossUserScan),
		},
		Locator: LocatorConfig{
			CascadePath:  os.Getenv("FACE_CASCADE_PATH"),
			ScaleFactor:  envFloat("FACE_SCALE_FACTOR", constants.DefaultScaleFactor),
			MinNeighbors: envInt("FACE_MIN_NEIGHBORS", constants.DefaultMinNeighbors),
			MinSize:      envInt("FACE_MIN_SIZE", constants.DefaultMinFaceSize),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", dim),
		},
		Storage: StorageConfig{
			UploadDir:     envString("UPLOAD_DIR", "data/uploads"),
			CaptureDir:    envString("CAPTURE_DIR", "data/captures"),
			SweepInterval: envDuration("IMAGE_SWEEP_INTERVAL", constants.DefaultSweepIntervalMinutes*time.Minute),
			SweepGrace:    envDuration("IMAGE_SWEEP_GRACE", constants.DefaultSweepGraceMinutes*time.Minute),
		},
		Auth: AuthConfig{
			TokenSecret: os.Getenv("AUTH_TOKEN_SECRET"),
			PendingTTL:  envDuration("AUTH_PENDING_TTL", constants.PendingTokenTTLMinutes*time.Minute),
			SessionTTL:  envDuration("AUTH_SESSION_TTL", constants.SessionTokenTTLHours*time.Hour),
		},
		Attendance: AttendanceConfig{
			Timezone: os.Getenv("ATTENDANCE_TIMEZONE"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
			AuthRateLimit:  envFloat("WEB_AUTH_RATE_LIMIT", 1),
			AuthRateBurst:  envInt("WEB_AUTH_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Presets: presets,
	}
}

// Strategy returns the preset for a strategy, or a zero preset if unknown.
func (p PresetsConfig) Strategy(name string) StrategyPreset {
	return p.Strategies[name]
}

// Validate reports configuration that would make the engine unusable.
func (c *Config) Validate() error {
	b := c.Biometric
	switch b.Strategy {
	case StrategySubspace:
		if b.MinSamples < 2 {
			return fmt.Errorf("BIOMETRIC_MIN_SAMPLES must be at least 2 for the subspace strategy, got %d", b.MinSamples)
		}
		if b.ZScore {
			if b.Components < constants.MinZScoreComponents {
				return fmt.Errorf("BIOMETRIC_COMPONENTS must be at least %d with BIOMETRIC_ZSCORE, got %d",
					constants.MinZScoreComponents, b.Components)
			}
			// z-scored vectors lie on a sphere of radius sqrt(K), so no two are further apart than 2*sqrt(K).
			if limit := 2 * math.Sqrt(float64(b.Components)); b.Threshold >= limit {
				return fmt.Errorf("BIOMETRIC_THRESHOLD %.2f accepts every face with BIOMETRIC_ZSCORE, it must be below %.2f",
					b.Threshold, limit)
			}
		}
	case StrategyEmbedding:
		if c.Embedding.Dim <= 0 {
			return errors.New("EMBEDDING_DIM must be positive")
		}
	default:
		return fmt.Errorf("unknown BIOMETRIC_STRATEGY %q", b.Strategy)
	}
	if b.Threshold <= 0 {
		return errors.New("BIOMETRIC_THRESHOLD must be positive")
	}
	if b.CrossUserIndex != CrossUserScan && b.CrossUserIndex != CrossUserHNSW {
		return fmt.Errorf("unknown BIOMETRIC_CROSS_USER_INDEX %q", b.CrossUserIndex)
	}
	if c.Storage.UploadDir == "" || c.Storage.CaptureDir == "" {
		return errors.New("UPLOAD_DIR and CAPTURE_DIR must be set")
	}
	if _, err := c.Attendance.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the attendance timezone.
func (c AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading ATTENDANCE_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
