package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv_PrefersLoadedMap(t *testing.T) {
	Env = map[string]string{"VAHANA_TEST_KEY": "from-map"}
	t.Setenv("VAHANA_TEST_KEY", "from-os")
	assert.Equal(t, "from-map", GetEnv("VAHANA_TEST_KEY", "def"))

	Env = map[string]string{}
	assert.Equal(t, "from-os", GetEnv("VAHANA_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("VAHANA_TEST_MISSING", "def"))
}

func TestGetEnvInt(t *testing.T) {
	Env = map[string]string{"N": "42", "BAD": "x"}
	assert.Equal(t, 42, GetEnvInt("N", 1))
	assert.Equal(t, 7, GetEnvInt("BAD", 7))
	assert.Equal(t, 3, GetEnvInt("MISSING_INT", 3))
}

func TestGetEnvBool(t *testing.T) {
	Env = map[string]string{"A": "yes", "B": "0", "C": "maybe"}
	assert.True(t, GetEnvBool("A", false))
	assert.False(t, GetEnvBool("B", true))
	assert.True(t, GetEnvBool("C", true))
}
