package stack

import (
	"errors"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/gnu3ra/kernelstack/variant"
)

func newTestStack(t *testing.T, opts variant.BuildOptions) *KernelStack {
	t.Helper()
	s, err := NewKernelStack(&KernelStackConfig{
		Name:       "gki",
		KernelRepo: "https://example.com/kernel.git",
		Arch:       "arm64",
		Defconfig:  "arch/arm64/configs/gki_defconfig",
		StatePath:  t.TempDir(),
		Options:    opts,
	})
	require.NoError(t, err)
	return s
}

func TestParseSusfsVersion(t *testing.T) {
	header := `#ifndef KSU_SUSFS_H
#define KSU_SUSFS_H
#define SUSFS_VERSION "v1.5.7"
#define SUSFS_VARIANT "GKI"
#endif
`
	version, err := parseSusfsVersion(header)
	require.NoError(t, err)
	assert.Equal(t, "v1.5.7", version)

	_, err = parseSusfsVersion("#define OTHER_MACRO 1\n")
	assert.Error(t, err)
}

func TestKernelVersionFromMakefile(t *testing.T) {
	makefile := `# SPDX-License-Identifier: GPL-2.0
VERSION = 6
PATCHLEVEL = 1
SUBLEVEL = 75
EXTRAVERSION =
NAME = Curry Ramen
`
	version, err := kernelVersionFromMakefile(makefile)
	require.NoError(t, err)
	assert.Equal(t, "6.1.75", version)

	_, err = kernelVersionFromMakefile("NAME = Nothing Here\n")
	assert.Error(t, err)
}

func TestKernelVersionIgnoresLaterAssignments(t *testing.T) {
	makefile := "VERSION = 5\nPATCHLEVEL = 10\nSUBLEVEL = 209\nFOO=VERSION = 9\n"
	version, err := kernelVersionFromMakefile(makefile)
	require.NoError(t, err)
	assert.Equal(t, "5.10.209", version)
}

func TestFixPatchesMissingDirIsFatal(t *testing.T) {
	s := newTestStack(t, variant.BuildOptions{
		RootFramework:      variant.FrameworkNext,
		FilesystemSpoofing: true,
	})
	s.susfsVersion = "v1.5.7"
	require.NoError(t, os.MkdirAll(s.repoDir(variant.RepoPatches), 0755))

	err := s.applyFixPatches(variant.RepoPatches)
	require.Error(t, err)

	var missing *variant.MissingDependencyError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Path, "susfs_fix_patches")
	assert.Contains(t, missing.Path, "v1.5.7")
}

func TestFixPatchesRequireExtractedVersion(t *testing.T) {
	s := newTestStack(t, variant.BuildOptions{
		RootFramework:      variant.FrameworkNext,
		FilesystemSpoofing: true,
	})
	err := s.applyFixPatches(variant.RepoPatches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not extracted")
}

func TestFixPatchDirKeying(t *testing.T) {
	dir := fixPatchDir("/ws/sources/kernel_patches", "v1.5.5")
	assert.Equal(t, "/ws/sources/kernel_patches/next/susfs_fix_patches/v1.5.5", dir)
}

func TestExtractSusfsVersionMissingHeader(t *testing.T) {
	s := newTestStack(t, variant.BuildOptions{FilesystemSpoofing: true})
	require.NoError(t, os.MkdirAll(s.sourceDir(), 0755))

	err := s.extractSusfsVersion()
	require.Error(t, err)

	var missing *variant.MissingDependencyError
	assert.True(t, errors.As(err, &missing))
}

func TestExtractSusfsVersionFromTree(t *testing.T) {
	s := newTestStack(t, variant.BuildOptions{FilesystemSpoofing: true})
	header := path.Join(s.sourceDir(), variant.SusfsVersionHeader)
	require.NoError(t, os.MkdirAll(path.Dir(header), 0755))
	require.NoError(t, os.WriteFile(header, []byte("#define SUSFS_VERSION \"v1.5.9\"\n"), 0644))

	require.NoError(t, s.extractSusfsVersion())
	assert.Equal(t, "v1.5.9", s.susfsVersion)
}
