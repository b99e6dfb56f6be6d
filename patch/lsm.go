package patch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// lsmLine matches the LSM ordering list in a kernel config fragment, e.g.
// CONFIG_LSM="landlock,lockdown,yama,selinux,bpf"
var lsmLine = regexp.MustCompile(`(?m)^CONFIG_LSM="([^"]*)"$`)

// defaultLSMOrder seeds the list when the config fragment has no CONFIG_LSM
// line at all.
const defaultLSMOrder = "landlock,lockdown,yama,loadpin,safesetid,selinux,smack,tomoyo,apparmor,bpf"

// RegisterLSM inserts module into the CONFIG_LSM ordering list of the given
// config text. The transform is idempotent: a module that is already listed
// is left alone, so applying it twice equals applying it once.
func RegisterLSM(text, module string) string {
	loc := lsmLine.FindStringSubmatchIndex(text)
	if loc == nil {
		line := fmt.Sprintf("CONFIG_LSM=\"%s,%s\"", defaultLSMOrder, module)
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return text + line + "\n"
	}

	current := text[loc[2]:loc[3]]
	for _, m := range strings.Split(current, ",") {
		if strings.TrimSpace(m) == module {
			return text
		}
	}

	updated := current + "," + module
	if current == "" {
		updated = module
	}
	return text[:loc[2]] + updated + text[loc[3]:]
}

// RegisterLSMFile applies RegisterLSM in place to the file at path.
func RegisterLSMFile(path, module string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	updated := RegisterLSM(string(data), module)
	if updated == string(data) {
		return nil
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
