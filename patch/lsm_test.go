package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLSMInserts(t *testing.T) {
	in := "CONFIG_KSU=y\nCONFIG_LSM=\"landlock,lockdown,yama,selinux,bpf\"\nCONFIG_BBG=y\n"
	out := RegisterLSM(in, "baseband_guard")
	assert.Contains(t, out, `CONFIG_LSM="landlock,lockdown,yama,selinux,bpf,baseband_guard"`)
	// Nothing else moves.
	assert.True(t, strings.HasPrefix(out, "CONFIG_KSU=y\n"))
	assert.True(t, strings.HasSuffix(out, "CONFIG_BBG=y\n"))
}

func TestRegisterLSMIsIdempotent(t *testing.T) {
	in := "CONFIG_LSM=\"landlock,lockdown,yama,selinux,bpf\"\n"
	once := RegisterLSM(in, "baseband_guard")
	twice := RegisterLSM(once, "baseband_guard")
	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, "baseband_guard"))
}

func TestRegisterLSMAppendsWhenMissing(t *testing.T) {
	out := RegisterLSM("CONFIG_KSU=y\n", "baseband_guard")
	assert.Contains(t, out, "CONFIG_LSM=")
	assert.True(t, strings.HasSuffix(strings.TrimRight(out, "\n"), ",baseband_guard\""))

	// Still idempotent in the append path.
	assert.Equal(t, out, RegisterLSM(out, "baseband_guard"))
}

func TestRegisterLSMEmptyList(t *testing.T) {
	out := RegisterLSM("CONFIG_LSM=\"\"\n", "baseband_guard")
	assert.Equal(t, "CONFIG_LSM=\"baseband_guard\"\n", out)
}

func TestRegisterLSMFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gki_defconfig")
	require.NoError(t, os.WriteFile(path, []byte("CONFIG_LSM=\"yama,selinux\"\n"), 0644))

	require.NoError(t, RegisterLSMFile(path, "baseband_guard"))
	require.NoError(t, RegisterLSMFile(path, "baseband_guard"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CONFIG_LSM=\"yama,selinux,baseband_guard\"\n", string(data))
}

func TestAlreadyAppliedDetection(t *testing.T) {
	assert.True(t, alreadyApplied("Reversed (or previously applied) patch detected!  Skipping patch.\n"))
	assert.False(t, alreadyApplied("1 out of 3 hunks FAILED"))
}
