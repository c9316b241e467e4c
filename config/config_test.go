package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "DEV", cfg.Env)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "fees.db", cfg.DBPath)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, time.Hour, cfg.SchedulerInterval)
	assert.Empty(t, cfg.RollbarToken)
	assert.Empty(t, cfg.LoadScenario)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("PROD_PORT", "9000")
	t.Setenv("PROD_DBPATH", "/var/lib/fees/fees.db")
	t.Setenv("PROD_SCHEDULERINTERVAL", "15m")
	t.Setenv("PROD_SCHEDULERENABLED", "false")
	t.Setenv("DEV_PORT", "1")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "PROD", cfg.Env)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/var/lib/fees/fees.db", cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.SchedulerInterval)
	assert.False(t, cfg.SchedulerEnabled)
}

func TestLoad_DotEnvFile(t *testing.T) {
	// GIVEN: A .env.test file in the config directory
	// WHEN: Loading with ENV=TEST
	// THEN: Its values apply, and real env vars still win

	dir := t.TempDir()
	content := "TEST_PORT=7070\nTEST_LOADSCENARIO=price-history\nTEST_ROLLBARTOKEN=abc\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte(content), 0o600))

	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_ROLLBARTOKEN", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("TEST_PORT")
		os.Unsetenv("TEST_LOADSCENARIO")
	})

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "TEST", cfg.Env)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "price-history", cfg.LoadScenario)
	assert.Equal(t, "from-env", cfg.RollbarToken)
}

func TestLoad_BadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".env.qa"), 0o700))
	t.Setenv("ENV", "QA")

	_, err := Load(dir)
	assert.Error(t, err)
}
