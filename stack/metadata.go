package stack

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const metadataFile = "build.info"

// writeMetadata emits the flat key=value document the CI system consumes
// after a run.
func (s *KernelStack) writeMetadata(a *artifacts) error {
	fields := map[string]string{
		"BUILD_ID":        s.buildID,
		"BUILD_TIMESTAMP": s.started.UTC().Format(time.RFC3339),
		"KERNEL_NAME":     s.config.Name,
		"KERNEL_VERSION":  s.kernelVer,
		"TOOLCHAIN":       s.config.ToolchainName,
		"VARIANT_TAG":     s.variant.Tag(),
		"PACKAGE_NAME":    s.packageName(),
		"OUT_DIR":         s.releaseDir(),
	}
	if s.susfsVersion != "" {
		fields["SUSFS_VERSION"] = s.susfsVersion
	}
	if a != nil && a.Boot != "" {
		fields["BOOT_IMAGE"] = path.Base(a.Boot)
	}

	dest := path.Join(s.releaseDir(), metadataFile)
	if err := os.WriteFile(dest, []byte(formatMetadata(fields)), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	log.Infof("wrote %s", dest)
	return nil
}

// formatMetadata renders key=value lines in stable key order.
func formatMetadata(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, fields[k])
	}
	return b.String()
}
