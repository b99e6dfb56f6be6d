package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoolAliases(t *testing.T) {
	truthy := []string{"1", "y", "yes", "t", "true", "on", "Y", "YES", "True", "ON", "tRuE"}
	for _, raw := range truthy {
		assert.True(t, ParseBool("flag", raw), "expected %q to parse as true", raw)
	}

	falsy := []string{"", "0", "n", "no", "f", "false", "off", "OFF", "No", "banana", "2", "enabled"}
	for _, raw := range falsy {
		assert.False(t, ParseBool("flag", raw), "expected %q to parse as false", raw)
	}
}

func TestNormalizeOptionsFramework(t *testing.T) {
	cases := []struct {
		raw  string
		want RootFramework
	}{
		{"", FrameworkNone},
		{"none", FrameworkNone},
		{"NONE", FrameworkNone},
		{"official", FrameworkOfficial},
		{"KSU", FrameworkOfficial},
		{"ksu", FrameworkOfficial},
		{"next", FrameworkNext},
		{"KSUN", FrameworkNext},
		{"suki", FrameworkSuki},
		{"SukiSU", FrameworkSuki},
	}
	for _, tc := range cases {
		opts, err := NormalizeOptions(map[string]string{KeyRootFramework: tc.raw})
		require.NoError(t, err, "framework %q", tc.raw)
		assert.Equal(t, tc.want, opts.RootFramework, "framework %q", tc.raw)
	}
}

func TestNormalizeOptionsRejectsUnknownFramework(t *testing.T) {
	_, err := NormalizeOptions(map[string]string{KeyRootFramework: "magisk"})
	require.Error(t, err)

	var invalid *InvalidConfigurationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, KeyRootFramework, invalid.Key)
}

func TestNormalizeOptionsLTOCoercion(t *testing.T) {
	opts, err := NormalizeOptions(map[string]string{KeyLTO: "full"})
	require.NoError(t, err)
	assert.Equal(t, LTOFull, opts.LTO)

	// Unknown modes fall back to thin and never fail.
	opts, err = NormalizeOptions(map[string]string{KeyLTO: "medium"})
	require.NoError(t, err)
	assert.Equal(t, LTOThin, opts.LTO)

	opts, err = NormalizeOptions(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, LTOThin, opts.LTO)
}

func TestNormalizeOptionsDropsGuardWithoutFramework(t *testing.T) {
	opts, err := NormalizeOptions(map[string]string{
		KeyBasebandGuard: "true",
	})
	require.NoError(t, err)
	assert.False(t, opts.BasebandGuard)

	opts, err = NormalizeOptions(map[string]string{
		KeyRootFramework: "next",
		KeyBasebandGuard: "true",
	})
	require.NoError(t, err)
	assert.True(t, opts.BasebandGuard)
}
