package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedGetters(t *testing.T) {
	t.Setenv("AGENT_TEST_BOOL", "true")
	t.Setenv("AGENT_TEST_INT", "12")
	t.Setenv("AGENT_TEST_BAD_INT", "twelve")
	t.Setenv("AGENT_TEST_FLOAT", "0.25")
	t.Setenv("AGENT_TEST_DUR", "90s")
	t.Setenv("AGENT_TEST_SECS", "30")
	t.Setenv("AGENT_TEST_STR", "value")

	e := &EnvService{}

	assert.True(t, e.GetBool("AGENT_TEST_BOOL", false))
	assert.True(t, e.GetBool("AGENT_TEST_UNSET", true))
	assert.Equal(t, 12, e.GetInt("AGENT_TEST_INT", 0))
	assert.Equal(t, 7, e.GetInt("AGENT_TEST_BAD_INT", 7))
	assert.InDelta(t, 0.25, e.GetFloat("AGENT_TEST_FLOAT", 0), 1e-9)
	assert.InDelta(t, 0.5, e.GetFloat("AGENT_TEST_BAD_INT", 0.5), 1e-9)
	assert.Equal(t, 90*time.Second, e.GetDuration("AGENT_TEST_DUR", 0))
	assert.Equal(t, 30*time.Second, e.GetDuration("AGENT_TEST_SECS", 0))
	assert.Equal(t, time.Minute, e.GetDuration("AGENT_TEST_UNSET", time.Minute))
	assert.Equal(t, "value", e.GetWithDefault("AGENT_TEST_STR", "x"))
	assert.Equal(t, "x", e.GetWithDefault("AGENT_TEST_UNSET", "x"))
}

func TestNewEnvServiceFromFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	override := filepath.Join(dir, ".env.test")
	require.NoError(t, os.WriteFile(base, []byte("AGENT_TEST_MODEL=gpt-4o\nAGENT_TEST_KEEP=yes\n"), 0o644))
	require.NoError(t, os.WriteFile(override, []byte("AGENT_TEST_MODEL=gpt-4o-mini\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("AGENT_TEST_MODEL")
		os.Unsetenv("AGENT_TEST_KEEP")
	})

	e, err := NewEnvServiceFromFiles(base, override)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", e.Get("AGENT_TEST_MODEL"))
	assert.Equal(t, "yes", e.Get("AGENT_TEST_KEEP"))

	_, err = NewEnvServiceFromFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
