package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	log "github.com/sirupsen/logrus"
)

// CustomPatches lets a config file pull extra patch files from user-owned
// repositories on top of the resolved variant's own patch actions.
type CustomPatches []struct {
	Repo    string
	Patches []string
	Branch  string
}

// RenderTemplate renders one of the buildtemplates consts with <% %> delims.
func RenderTemplate(templateStr string, params interface{}) ([]byte, error) {
	templ, err := template.New("template").Delims("<%", "%>").Parse(templateStr)
	if err != nil {
		return nil, err
	}

	buffer := new(bytes.Buffer)
	if err = templ.Execute(buffer, params); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// RunCommand executes an external tool with output streamed to the process
// log. The pipeline blocks on every invocation; a non-zero exit is the
// caller's problem to classify.
func RunCommand(dir string, env []string, name string, args ...string) error {
	log.Infof("running %s %s", name, strings.Join(args, " "))
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = log.StandardLogger().Writer()
	cmd.Stderr = log.StandardLogger().Writer()
	return cmd.Run()
}

// CopyFile copies src to dest, creating parent directories as needed.
func CopyFile(dest, src string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Sync()
}

// CopyGlob copies every file matching pattern into destDir, flat.
func CopyGlob(pattern, destDir string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no files match %s", pattern)
	}
	for _, m := range matches {
		if err := CopyFile(filepath.Join(destDir, filepath.Base(m)), m); err != nil {
			return err
		}
	}
	return nil
}
