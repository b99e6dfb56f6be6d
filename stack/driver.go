package stack

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.io/gnu3ra/kernelstack/fetch"
	"github.io/gnu3ra/kernelstack/patch"
	"github.io/gnu3ra/kernelstack/utils"
	"github.io/gnu3ra/kernelstack/variant"
)

const patchFuzz = 3

// applyPatchActions interprets the resolver's ordered action list against
// the working tree. Order is contractual: later patches may depend on files
// earlier ones created or modified.
func (s *KernelStack) applyPatchActions() error {
	for _, action := range s.variant.PatchActions {
		log.Infof("patch step: %s", action.Name)
		if err := s.runAction(action); err != nil {
			return err
		}
	}
	return nil
}

func (s *KernelStack) runAction(a variant.Action) error {
	switch a.Kind {
	case variant.ActionRunInstaller:
		return fetch.RunInstaller(a.URL, s.sourceDir(), a.Args...)

	case variant.ActionCloneRepo:
		ref := a.Ref
		if ref == "" {
			ref = s.refFor(a.Repo)
		}
		return fetch.Clone(a.URL, ref, s.repoDir(a.Repo))

	case variant.ActionCopyOverlay:
		return s.copySusfsOverlay(a.Repo)

	case variant.ActionApplyPatch:
		return s.applyOne(a)

	case variant.ActionExtractVersion:
		return s.extractSusfsVersion()

	case variant.ActionFetchFixPatches:
		return s.applyFixPatches(a.Repo)

	case variant.ActionRegisterLSM:
		return patch.RegisterLSMFile(path.Join(s.sourceDir(), s.config.Defconfig), a.Module)

	default:
		return fmt.Errorf("unknown patch action %d (%s)", a.Kind, a.Name)
	}
}

// refFor supplies the workspace-configured branch for clone actions the
// resolver left unpinned (the SUSFS branch is kernel-tree specific).
func (s *KernelStack) refFor(repo string) string {
	switch repo {
	case variant.RepoSusfs:
		return s.config.SusfsRef
	case variant.RepoPatches:
		return s.config.PatchesRef
	default:
		return ""
	}
}

// ensureRepo lazily clones a patch-source repository the first time an
// action references it without a preceding explicit clone action.
func (s *KernelStack) ensureRepo(repo string) error {
	if repo == "" {
		return nil
	}
	if _, err := os.Stat(s.repoDir(repo)); err == nil {
		return nil
	}
	url := variant.RepoURL(repo)
	if url == "" {
		return fmt.Errorf("unknown patch repository %q", repo)
	}
	return fetch.Clone(url, s.refFor(repo), s.repoDir(repo))
}

func (s *KernelStack) applyOne(a variant.Action) error {
	if err := s.ensureRepo(a.Repo); err != nil {
		return err
	}

	pattern := a.Patch
	if a.Repo != "" {
		pattern = path.Join(s.repoDir(a.Repo), a.Patch)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		if a.BestEffort {
			log.Warnf("no patch matches %s, skipping %s", pattern, a.Name)
			return nil
		}
		return &variant.MissingDependencyError{Name: a.Name, Path: pattern}
	}

	for _, m := range matches {
		result, err := patch.Apply(m, s.sourceDir(), patchFuzz, !a.BestEffort)
		if err != nil {
			return &variant.PatchApplyFailedError{Patch: m, Output: err.Error()}
		}
		log.Infof("%s: %s", filepath.Base(m), result)
	}
	return nil
}

// copySusfsOverlay drops the SUSFS filesystem sources and headers into the
// kernel tree before the main patch is applied.
func (s *KernelStack) copySusfsOverlay(repo string) error {
	base := path.Join(s.repoDir(repo), "kernel_patches")
	if err := utils.CopyGlob(path.Join(base, "fs", "*"), path.Join(s.sourceDir(), "fs")); err != nil {
		return err
	}
	return utils.CopyGlob(path.Join(base, "include", "linux", "*"), path.Join(s.sourceDir(), "include", "linux"))
}

func (s *KernelStack) extractSusfsVersion() error {
	header := path.Join(s.sourceDir(), variant.SusfsVersionHeader)
	data, err := os.ReadFile(header)
	if err != nil {
		return &variant.MissingDependencyError{Name: "susfs version header", Path: header}
	}
	version, err := parseSusfsVersion(string(data))
	if err != nil {
		return err
	}
	s.susfsVersion = version
	log.Infof("susfs version %s", version)
	return nil
}

var susfsVersionLine = regexp.MustCompile(`#define\s+` + variant.SusfsVersionMacro + `\s+"([^"]+)"`)

// parseSusfsVersion pulls the version macro out of the generated header,
// stripping the quotes.
func parseSusfsVersion(header string) (string, error) {
	m := susfsVersionLine.FindStringSubmatch(header)
	if m == nil {
		return "", fmt.Errorf("no %s macro in susfs header", variant.SusfsVersionMacro)
	}
	return m[1], nil
}

// applyFixPatches applies the fix-patch directory keyed by the extracted
// SUSFS version. Its absence is fatal for this combination: the patches
// reconcile the framework's hooks with that exact SUSFS release, and
// building without them produces a broken tree.
func (s *KernelStack) applyFixPatches(repo string) error {
	if s.susfsVersion == "" {
		return fmt.Errorf("susfs version not extracted before fix-patch lookup")
	}
	dir := fixPatchDir(s.repoDir(repo), s.susfsVersion)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &variant.MissingDependencyError{Name: "susfs fix patches for " + s.susfsVersion, Path: dir}
	}

	matches, err := filepath.Glob(path.Join(dir, "*.patch"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if _, err := patch.Apply(m, s.sourceDir(), patchFuzz, true); err != nil {
			return &variant.PatchApplyFailedError{Patch: m, Output: err.Error()}
		}
		log.Infof("%s: applied", filepath.Base(m))
	}
	return nil
}

func fixPatchDir(patchesDir, susfsVersion string) string {
	return path.Join(patchesDir, "next", "susfs_fix_patches", susfsVersion)
}

// applyCustomPatches applies user-configured extra patches on top of the
// variant's own actions, in config order.
func (s *KernelStack) applyCustomPatches() error {
	if s.config.CustomPatches == nil {
		return nil
	}
	for i, cp := range *s.config.CustomPatches {
		dest := s.repoDir(fmt.Sprintf("custom-%d", i))
		if err := fetch.Clone(cp.Repo, cp.Branch, dest); err != nil {
			return err
		}
		for _, p := range cp.Patches {
			if _, err := patch.Apply(path.Join(dest, p), s.sourceDir(), patchFuzz, true); err != nil {
				return &variant.PatchApplyFailedError{Patch: p, Output: err.Error()}
			}
			log.Infof("custom patch %s: applied", p)
		}
	}
	return nil
}

// kernelVersionFromTree derives the version string from the tree's root
// Makefile, the same numbers `make kernelversion` prints.
func kernelVersionFromTree(sourceRoot string) (string, error) {
	data, err := os.ReadFile(path.Join(sourceRoot, "Makefile"))
	if err != nil {
		return "", fmt.Errorf("failed to read kernel Makefile: %w", err)
	}
	return kernelVersionFromMakefile(string(data))
}

func kernelVersionFromMakefile(makefile string) (string, error) {
	fields := map[string]string{}
	for _, line := range strings.Split(makefile, "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		switch key {
		case "VERSION", "PATCHLEVEL", "SUBLEVEL":
			if _, dup := fields[key]; !dup {
				fields[key] = strings.TrimSpace(parts[1])
			}
		}
	}
	if fields["VERSION"] == "" || fields["PATCHLEVEL"] == "" {
		return "", fmt.Errorf("kernel Makefile has no VERSION/PATCHLEVEL")
	}
	version := fields["VERSION"] + "." + fields["PATCHLEVEL"]
	if fields["SUBLEVEL"] != "" {
		version += "." + fields["SUBLEVEL"]
	}
	return version, nil
}
