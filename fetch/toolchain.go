package fetch

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.io/gnu3ra/kernelstack/variant"
)

// The toolchain archive download is the only retried operation in the whole
// pipeline: a fixed number of attempts with a fixed sleep in between. Every
// other fetch fails on the first error.
var (
	downloadRetries   = 3
	downloadRetryWait = 10 * time.Second
)

func newClient() *resty.Client {
	return resty.New()
}

// newDownloadClient is reserved for the toolchain archive; retries cover
// transport errors and HTTP error statuses alike.
func newDownloadClient() *resty.Client {
	return resty.New().
		SetRetryCount(downloadRetries).
		SetRetryWaitTime(downloadRetryWait).
		SetRetryMaxWaitTime(downloadRetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.IsError()
		})
}

func download(u string) ([]byte, error) {
	resp, err := newClient().R().Get(u)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status())
	}
	return resp.Body(), nil
}

// archiveName derives the local filename for a toolchain archive url,
// ignoring any query string.
func archiveName(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("invalid toolchain url %s: %w", rawurl, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("cannot derive archive name from %s", rawurl)
	}
	return name, nil
}

// DownloadToolchain fetches the compiler archive at rawurl into destDir and
// unpacks it there with the host tar. Exhausting the retries is fatal.
func DownloadToolchain(rawurl, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	name, err := archiveName(rawurl)
	if err != nil {
		return &variant.ExternalToolFailureError{Tool: "toolchain download", Err: err}
	}
	archive := filepath.Join(destDir, name)
	log.Infof("downloading toolchain %s", rawurl)

	resp, err := newDownloadClient().R().SetOutput(archive).Get(rawurl)
	if err != nil {
		return &variant.ExternalToolFailureError{Tool: "toolchain download", Err: err}
	}
	if resp.IsError() {
		return &variant.ExternalToolFailureError{Tool: "toolchain download", Err: fmt.Errorf("GET %s: %s", rawurl, resp.Status())}
	}

	log.Infof("extracting %s", archive)
	cmd := exec.Command("tar", "-xf", name)
	cmd.Dir = destDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &variant.ExternalToolFailureError{Tool: "tar", Err: fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out)))}
	}
	return os.Remove(archive)
}
