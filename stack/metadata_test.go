package stack

import (
	"os"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/gnu3ra/kernelstack/variant"
)

func TestPackageNameConvention(t *testing.T) {
	s := newTestStack(t, variant.BuildOptions{
		RootFramework:      variant.FrameworkSuki,
		FilesystemSpoofing: true,
		BasebandGuard:      true,
	})
	s.kernelVer = "6.1.75"
	assert.Equal(t, "gki-6.1.75-SUKI-SUSFS-BBG", s.packageName())
}

func TestFormatMetadataStableOrder(t *testing.T) {
	out := formatMetadata(map[string]string{
		"KERNEL_NAME":    "gki",
		"BUILD_ID":       "abc",
		"KERNEL_VERSION": "6.1.75",
	})
	assert.Equal(t, "BUILD_ID=abc\nKERNEL_NAME=gki\nKERNEL_VERSION=6.1.75\n", out)
}

func TestWriteMetadata(t *testing.T) {
	s := newTestStack(t, variant.BuildOptions{
		RootFramework:      variant.FrameworkNext,
		FilesystemSpoofing: true,
	})
	s.kernelVer = "6.1.75"
	s.susfsVersion = "v1.5.7"
	s.config.ToolchainName = "clang-r510928"
	require.NoError(t, os.MkdirAll(s.releaseDir(), 0755))

	require.NoError(t, s.writeMetadata(&artifacts{Boot: "/x/gki-boot.img"}))

	data, err := os.ReadFile(path.Join(s.releaseDir(), metadataFile))
	require.NoError(t, err)
	text := string(data)

	for _, want := range []string{
		"KERNEL_NAME=gki",
		"KERNEL_VERSION=6.1.75",
		"VARIANT_TAG=NEXT-SUSFS",
		"PACKAGE_NAME=gki-6.1.75-NEXT-SUSFS",
		"SUSFS_VERSION=v1.5.7",
		"TOOLCHAIN=clang-r510928",
		"BOOT_IMAGE=gki-boot.img",
	} {
		assert.Contains(t, text, want+"\n")
	}

	// Flat key=value document, nothing else.
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		assert.Contains(t, line, "=")
	}
}

func TestVariantResolvedOnce(t *testing.T) {
	s := newTestStack(t, variant.BuildOptions{RootFramework: variant.FrameworkOfficial})
	first := s.Variant()
	assert.Same(t, first, s.Variant())
	assert.Equal(t, "OFFICIAL", first.Tag())
}
