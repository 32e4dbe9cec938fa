package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := Code(8)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(Upper, r), "unexpected rune %q", r)
		}
	}
}

func TestNumeric(t *testing.T) {
	code, err := Numeric(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)
}

func TestGenerate_InvalidLength(t *testing.T) {
	_, err := Generate(0, Upper)
	assert.Error(t, err)
}

func TestUnique(t *testing.T) {
	calls := 0
	code, err := Unique(8, func(string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Equal(t, 3, calls)

	_, err = Unique(8, func(string) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrExhausted)

	boom := errors.New("db down")
	_, err = Unique(8, func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
