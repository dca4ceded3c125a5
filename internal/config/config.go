package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by HOLOMEM_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("HOLOMEM_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// Dimension returns the configured vector dimension.
// Defaults to 512 if not set.
func Dimension() int {
	d, err := strconv.Atoi(os.Getenv("HOLOMEM_DIMENSION"))
	if err != nil || d < 2 {
		return 512
	}
	return d
}

// Seed returns the registry seed and whether one was configured.
// Unset means process-local random registries.
func Seed() (int64, bool) {
	raw := os.Getenv("HOLOMEM_SEED")
	if raw == "" {
		return 0, false
	}
	s, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return s, true
}

// SnapshotPath returns the SQLite snapshot file path.
// Empty means no persistence.
func SnapshotPath() string {
	return os.Getenv("HOLOMEM_SNAPSHOT_PATH")
}

// DecayHalfLife returns the importance decay half-life.
// Defaults to 72h if not set.
func DecayHalfLife() time.Duration {
	d, err := time.ParseDuration(os.Getenv("HOLOMEM_DECAY_HALF_LIFE"))
	if err != nil || d <= 0 {
		return 72 * time.Hour
	}
	return d
}

// ConsolidateThreshold returns the aggregate similarity above which
// duplicate capsules merge. Defaults to 0.92 if not set.
func ConsolidateThreshold() float64 {
	t, err := strconv.ParseFloat(os.Getenv("HOLOMEM_CONSOLIDATE_THRESHOLD"), 64)
	if err != nil || t <= 0 || t > 1 {
		return 0.92
	}
	return t
}

// SymbolIndex reports whether the embedded symbol index is enabled.
// Defaults to false.
func SymbolIndex() bool {
	v, err := strconv.ParseBool(os.Getenv("HOLOMEM_SYMBOL_INDEX"))
	if err != nil {
		return false
	}
	return v
}
