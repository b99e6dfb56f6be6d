package fetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/gnu3ra/kernelstack/variant"
)

func failingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func shortRetryWait(t *testing.T) {
	t.Helper()
	prev := downloadRetryWait
	downloadRetryWait = time.Millisecond
	t.Cleanup(func() { downloadRetryWait = prev })
}

func TestDownloadDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := failingServer(t, &hits)

	_, err := download(srv.URL + "/setup.sh")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "plain fetches must fail on the first error")
}

func TestInstallerFetchFailureIsImmediatelyFatal(t *testing.T) {
	var hits atomic.Int32
	srv := failingServer(t, &hits)

	err := RunInstaller(srv.URL+"/setup.sh", t.TempDir())
	require.Error(t, err)

	var toolErr *variant.ExternalToolFailureError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, int32(1), hits.Load())
}

func TestToolchainDownloadRetriesOnServerError(t *testing.T) {
	shortRetryWait(t)
	var hits atomic.Int32
	srv := failingServer(t, &hits)

	resp, err := newDownloadClient().R().Get(srv.URL + "/clang.tar.gz")
	require.NoError(t, err)
	assert.True(t, resp.IsError())
	assert.Equal(t, int32(1+downloadRetries), hits.Load(), "toolchain fetches retry a fixed number of times")
}

func TestDownloadToolchainExhaustsRetriesThenFails(t *testing.T) {
	shortRetryWait(t)
	var hits atomic.Int32
	srv := failingServer(t, &hits)

	err := DownloadToolchain(srv.URL+"/clang.tar.gz", t.TempDir())
	require.Error(t, err)

	var toolErr *variant.ExternalToolFailureError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, int32(1+downloadRetries), hits.Load())
}

func TestArchiveName(t *testing.T) {
	name, err := archiveName("https://example.com/clang-r510928.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "clang-r510928.tar.gz", name)

	name, err = archiveName("https://example.com/dl/clang-r510928.tar.gz?response-content-disposition=attachment&token=abc")
	require.NoError(t, err)
	assert.Equal(t, "clang-r510928.tar.gz", name)

	_, err = archiveName("https://example.com/")
	assert.Error(t, err)
}

func TestCloneOptionsAlwaysShallowSingleBranch(t *testing.T) {
	opts := cloneOptions("https://example.com/kernel.git", "android14-6.1")
	assert.Equal(t, 1, opts.Depth)
	assert.True(t, opts.SingleBranch)
	assert.Equal(t, plumbing.ReferenceName("refs/heads/android14-6.1"), opts.ReferenceName)

	// No ref pins no branch name but stays single-branch: the remote HEAD
	// resolves the default.
	opts = cloneOptions("https://example.com/kernel.git", "")
	assert.Equal(t, 1, opts.Depth)
	assert.True(t, opts.SingleBranch)
	assert.Equal(t, plumbing.ReferenceName(""), opts.ReferenceName)
}
