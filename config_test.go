package tomography

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"TOMO_HOST", "TOMO_PORT", "TOMO_PASSWORD", "TOMO_DETECTORS", "TOMO_TABLES",
	"TOMO_TIMEOUT", "TOMO_ROUND_TRIP_TIMEOUT", "TOMO_STARTUP_TIMEOUT",
	"TOMO_LOGS_DIR", "TOMO_WORKER_COMMAND", "LOG_LEVEL",
}

// clearEnv очищает ключи конфигурации и восстанавливает их после теста.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	require.Equal(t, "127.0.0.1:9000", cfg.Addr())
	require.Equal(t, []string{"xrd1611"}, cfg.Detectors)
	require.Equal(t, []string{"Soloist"}, cfg.Tables)
	require.Equal(t, time.Second, cfg.Timeout)
	require.Equal(t, 30*time.Second, cfg.StartupTimeout)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromDotEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := "TOMO_PORT=7001\n" +
		"TOMO_PASSWORD=secret\n" +
		"TOMO_DETECTORS=xrd1611 xrd1622\n" +
		"TOMO_TABLES=\n" +
		"TOMO_TIMEOUT=0.25\n" +
		"TOMO_ROUND_TRIP_TIMEOUT=3s\n" +
		"TOMO_WORKER_COMMAND=go run ./cmd/tomoctl\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, godotenv.Overload(path))

	cfg := Load()
	require.Equal(t, uint16(7001), cfg.Port)
	require.Equal(t, "secret", cfg.Password)
	require.Equal(t, []string{"xrd1611", "xrd1622"}, cfg.Detectors)
	require.Empty(t, cfg.Tables)
	require.Equal(t, 250*time.Millisecond, cfg.Timeout)
	require.Equal(t, 3*time.Second, cfg.RoundTripTimeout)
	require.Equal(t, []string{"go", "run", "./cmd/tomoctl"}, cfg.WorkerCommand)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "tomography.yaml")
	content := `
host: 0.0.0.0
port: 7100
password: from-file
detectors: [xrd1611]
tables: [Soloist, Ensemble]
timeout: 500ms
startup_timeout: 1m
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TOMO_PASSWORD", "from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7100", cfg.Addr())
	require.Equal(t, "from-env", cfg.Password)
	require.Equal(t, []string{"Soloist", "Ensemble"}, cfg.Tables)
	require.Equal(t, 500*time.Millisecond, cfg.Timeout)
	require.Equal(t, time.Minute, cfg.StartupTimeout)
	require.Equal(t, 10*time.Second, cfg.RoundTripTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o644))
	_, err = LoadFile(path)
	require.ErrorContains(t, err, "parse config")
}
