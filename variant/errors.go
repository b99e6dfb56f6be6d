package variant

import "fmt"

// InvalidConfigurationError is returned for option values that cannot be
// normalized into a legal BuildOptions. It is always raised before any
// side effect touches the source tree.
type InvalidConfigurationError struct {
	Key   string
	Value string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%q is not a recognized value", e.Key, e.Value)
}

// MissingDependencyError is returned when a conditionally required external
// artifact (typically a fix-patch directory keyed by the SUSFS version) is
// absent after fetching. Fatal for the affected combination.
type MissingDependencyError struct {
	Name string
	Path string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency: %s not found at %s", e.Name, e.Path)
}

// PatchApplyFailedError is returned when a strict patch application exits
// non-zero. Best-effort patch sites never produce this error.
type PatchApplyFailedError struct {
	Patch  string
	Output string
}

func (e *PatchApplyFailedError) Error() string {
	return fmt.Sprintf("patch %s failed to apply: %s", e.Patch, e.Output)
}

// ExternalToolFailureError wraps any non-zero exit from an external tool the
// pipeline shells out to (clone, compile, compress, sign).
type ExternalToolFailureError struct {
	Tool string
	Err  error
}

func (e *ExternalToolFailureError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExternalToolFailureError) Unwrap() error { return e.Err }

// NotificationFailureError is logged but never aborts the pipeline on its own.
type NotificationFailureError struct {
	Call string
	Err  error
}

func (e *NotificationFailureError) Error() string {
	return fmt.Sprintf("notification %s failed: %v", e.Call, e.Err)
}

func (e *NotificationFailureError) Unwrap() error { return e.Err }
