package variant

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// RootFramework selects which root-management source variant gets integrated
// into the kernel tree, if any.
type RootFramework int

const (
	FrameworkNone RootFramework = iota
	FrameworkOfficial
	FrameworkNext
	FrameworkSuki
)

func (f RootFramework) String() string {
	switch f {
	case FrameworkOfficial:
		return "OFFICIAL"
	case FrameworkNext:
		return "NEXT"
	case FrameworkSuki:
		return "SUKI"
	default:
		return "NONE"
	}
}

// TagLabel is the leading component of the variant tag. NONE builds are
// tagged VANILLA so artifact names stay self-describing.
func (f RootFramework) TagLabel() string {
	if f == FrameworkNone {
		return "VANILLA"
	}
	return f.String()
}

// LTOMode selects the link-time-optimization flavor for the kernel build.
type LTOMode int

const (
	LTOThin LTOMode = iota
	LTOFull
)

func (m LTOMode) String() string {
	if m == LTOFull {
		return "FULL"
	}
	return "THIN"
}

// BuildOptions is the normalized, immutable option set for one build run.
// It is parsed once from the environment at process start.
type BuildOptions struct {
	RootFramework      RootFramework
	FilesystemSpoofing bool
	ContainerSupport   bool
	BasebandGuard      bool
	LTO                LTOMode
}

// Option keys as they appear in the raw environment mapping (viper lowercases
// and dash-separates them before they reach NormalizeOptions).
const (
	KeyRootFramework = "root-framework"
	KeySusfs         = "susfs"
	KeyDocker        = "docker"
	KeyBasebandGuard = "baseband-guard"
	KeyLTO           = "lto"
)

// ParseBool maps the accepted truthy aliases to true and everything else to
// false. Unrecognized non-empty strings warn but never fail.
func ParseBool(key, raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "y", "yes", "t", "true", "on":
		return true
	case "", "0", "n", "no", "f", "false", "off":
		return false
	default:
		log.Warnf("unrecognized boolean value %s=%q, defaulting to false", key, raw)
		return false
	}
}

func parseFramework(raw string) (RootFramework, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "NONE":
		return FrameworkNone, nil
	// KSU is the legacy alias for OFFICIAL kept for older CI configs.
	case "OFFICIAL", "KSU":
		return FrameworkOfficial, nil
	case "NEXT", "KSUN":
		return FrameworkNext, nil
	case "SUKI", "SUKISU":
		return FrameworkSuki, nil
	default:
		return FrameworkNone, &InvalidConfigurationError{Key: KeyRootFramework, Value: raw}
	}
}

func parseLTO(raw string) LTOMode {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "THIN":
		return LTOThin
	case "FULL":
		return LTOFull
	default:
		log.Warnf("unknown lto mode %q, falling back to thin", raw)
		return LTOThin
	}
}

// NormalizeOptions turns the raw string mapping read from the environment into
// a BuildOptions. The only fatal input is an unrecognized root framework;
// every boolean-like option coerces silently per the alias table.
func NormalizeOptions(raw map[string]string) (BuildOptions, error) {
	framework, err := parseFramework(raw[KeyRootFramework])
	if err != nil {
		return BuildOptions{}, err
	}

	opts := BuildOptions{
		RootFramework:      framework,
		FilesystemSpoofing: ParseBool(KeySusfs, raw[KeySusfs]),
		ContainerSupport:   ParseBool(KeyDocker, raw[KeyDocker]),
		BasebandGuard:      ParseBool(KeyBasebandGuard, raw[KeyBasebandGuard]),
		LTO:                parseLTO(raw[KeyLTO]),
	}

	if opts.BasebandGuard && opts.RootFramework == FrameworkNone {
		log.Warnf("baseband-guard requested without a root framework, ignoring")
		opts.BasebandGuard = false
	}

	return opts, nil
}
