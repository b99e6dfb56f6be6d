// Package fetch wraps every network-facing collaborator of the pipeline:
// shallow git checkouts, fetch-and-execute installer scripts, and the
// toolchain archive download. All calls block; the pipeline advances only on
// success.
package fetch

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	log "github.com/sirupsen/logrus"

	"github.io/gnu3ra/kernelstack/variant"
)

// cloneOptions is always shallow and single-branch; with no ref the remote's
// HEAD branch is taken.
func cloneOptions(url, ref string) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Progress:     os.Stdout,
	}
	if ref != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + ref)
	}
	return opts
}

// Clone performs a shallow, single-branch checkout of url at ref into dest.
// Any pre-existing checkout at dest is removed first so every run starts from
// a clean tree.
func Clone(url, ref, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dest, err)
	}

	log.Infof("cloning %s (%s)", url, ref)
	repo, err := git.PlainClone(dest, false, cloneOptions(url, ref))
	if err != nil {
		return &variant.ExternalToolFailureError{Tool: "git clone " + url, Err: err}
	}

	if head, herr := repo.Head(); herr == nil {
		log.Infof("cloned %s at %s", url, head.Hash().String()[:8])
	}
	return nil
}

// RunInstaller downloads an installer script and executes it with bash inside
// workDir. The script mutates the tree as a black box; only the exit status
// is inspected.
func RunInstaller(url, workDir string, args ...string) error {
	script, err := download(url)
	if err != nil {
		return &variant.ExternalToolFailureError{Tool: "installer " + url, Err: err}
	}

	log.Infof("running installer %s %s", url, strings.Join(args, " "))
	cmd := exec.Command("bash", append([]string{"-s", "--"}, args...)...)
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(string(script))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &variant.ExternalToolFailureError{Tool: "installer " + url, Err: err}
	}
	return nil
}
