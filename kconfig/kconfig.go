// Package kconfig edits kernel build configuration symbols the way the
// kernel tooling expects them: CONFIG_FOO=y to enable, the
// "# CONFIG_FOO is not set" comment form to disable, and a final
// olddefconfig pass to normalize the file against the full option set.
package kconfig

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.io/gnu3ra/kernelstack/variant"
)

// Editor mutates one kernel tree's configuration. Edits land in the
// generated .config when one exists, otherwise in the defconfig fragment the
// generated config will be seeded from.
type Editor struct {
	SourceRoot string
	Arch       string
	Defconfig  string // path relative to SourceRoot, e.g. arch/arm64/configs/gki_defconfig
	OutDir     string // make O= output dir relative to SourceRoot, may be empty
}

// Path picks the file edits apply to: the already-generated config if the
// build has produced one, else the default defconfig fragment.
func (e *Editor) Path() string {
	if e.OutDir != "" {
		generated := filepath.Join(e.SourceRoot, e.OutDir, ".config")
		if _, err := os.Stat(generated); err == nil {
			return generated
		}
	}
	return filepath.Join(e.SourceRoot, e.Defconfig)
}

// Enable sets symbol=y.
func (e *Editor) Enable(symbol string) error {
	return e.set(symbol, symbol+"=y")
}

// Disable writes the "is not set" comment form so olddefconfig keeps the
// symbol off instead of re-deriving a default.
func (e *Editor) Disable(symbol string) error {
	return e.set(symbol, fmt.Sprintf("# %s is not set", symbol))
}

func (e *Editor) set(symbol, line string) error {
	path := e.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Both the assignment and the not-set comment forms of the symbol count
	// as an existing entry.
	pattern := regexp.MustCompile(fmt.Sprintf(`(?m)^(?:%s=.*|# %s is not set)$`, regexp.QuoteMeta(symbol), regexp.QuoteMeta(symbol)))

	text := string(data)
	if pattern.MatchString(text) {
		text = pattern.ReplaceAllString(text, line)
	} else {
		if !strings.HasSuffix(text, "\n") && text != "" {
			text += "\n"
		}
		text += line + "\n"
	}

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// ApplyDirectives replays the resolver's ordered directive list. A list that
// enables and disables the same symbol is refused before any edit happens.
func (e *Editor) ApplyDirectives(directives []variant.Directive) error {
	seen := make(map[string]bool, len(directives))
	for _, d := range directives {
		prev, ok := seen[d.Symbol]
		if ok && prev != d.Enable {
			return fmt.Errorf("conflicting config directives for %s", d.Symbol)
		}
		seen[d.Symbol] = d.Enable
	}

	for _, d := range directives {
		var err error
		if d.Enable {
			log.Infof("enabling %s", d.Symbol)
			err = e.Enable(d.Symbol)
		} else {
			log.Infof("disabling %s", d.Symbol)
			err = e.Disable(d.Symbol)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Regenerate normalizes the config against the current option set with
// olddefconfig, the same step the gki build runs after editing fragments.
func (e *Editor) Regenerate(env []string) error {
	args := []string{"ARCH=" + e.Arch}
	if e.OutDir != "" {
		args = append(args, "O="+e.OutDir)
	}
	args = append(args, "olddefconfig")

	cmd := exec.Command("make", args...)
	cmd.Dir = e.SourceRoot
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &variant.ExternalToolFailureError{Tool: "make olddefconfig", Err: fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out)))}
	}
	return nil
}
