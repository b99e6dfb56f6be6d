package patch

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Result tags the outcome of one patch application. Best-effort call sites
// surface AlreadyPresent and Skipped instead of an error so the pipeline can
// log the distinction.
type Result int

const (
	Applied Result = iota
	AlreadyPresent
	Skipped
)

func (r Result) String() string {
	switch r {
	case AlreadyPresent:
		return "already present"
	case Skipped:
		return "skipped"
	default:
		return "applied"
	}
}

// Apply runs the patch tool against sourceRoot with -p1 and the given fuzz
// factor. With strict set, any failure is returned as an error. Without it,
// an already-applied patch reports AlreadyPresent and any other failure
// reports Skipped, never an error.
func Apply(patchFile, sourceRoot string, fuzz int, strict bool) (Result, error) {
	data, err := os.ReadFile(patchFile)
	if err != nil {
		return Skipped, fmt.Errorf("failed to read patch %s: %w", patchFile, err)
	}

	cmd := exec.Command("patch", "-p1", "--forward", "--no-backup-if-mismatch", "-F", fmt.Sprint(fuzz))
	cmd.Dir = sourceRoot
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return Applied, nil
	}

	if !strict {
		if alreadyApplied(string(out)) {
			log.Infof("patch %s already present, continuing", patchFile)
			return AlreadyPresent, nil
		}
		log.Warnf("patch %s did not apply, skipping: %s", patchFile, strings.TrimSpace(string(out)))
		return Skipped, nil
	}

	return Skipped, fmt.Errorf("patch %s failed: %s", patchFile, strings.TrimSpace(string(out)))
}

// alreadyApplied matches the output the patch tool emits when --forward
// detects a previously applied or reversed hunk.
func alreadyApplied(out string) bool {
	return strings.Contains(out, "Reversed (or previously applied)") ||
		strings.Contains(out, "Skipping patch") ||
		strings.Contains(out, "previously applied")
}
