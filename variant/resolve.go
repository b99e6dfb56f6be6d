package variant

import (
	"fmt"
	"strings"
)

// ActionKind discriminates the patch operations the workflow driver knows how
// to execute. Actions are descriptions only; the driver owns all filesystem
// side effects.
type ActionKind int

const (
	// ActionRunInstaller fetches a setup script from URL and executes it with
	// Args inside the kernel tree.
	ActionRunInstaller ActionKind = iota
	// ActionCloneRepo shallow-clones URL at Ref into the workspace under the
	// directory named by Repo. An empty Ref means the driver substitutes its
	// configured branch for that repository.
	ActionCloneRepo
	// ActionCopyOverlay copies the filesystem and header overlay files from
	// the repository named by Repo into the kernel tree.
	ActionCopyOverlay
	// ActionApplyPatch applies Patch (a path or glob relative to the Repo
	// checkout, or to the tree itself when Repo is empty) against the kernel
	// tree. BestEffort sites report instead of failing.
	ActionApplyPatch
	// ActionExtractVersion reads the SUSFS version macro out of the generated
	// header and records it on the run.
	ActionExtractVersion
	// ActionFetchFixPatches locates the fix-patch directory keyed by the
	// extracted SUSFS version and applies every patch inside it. A missing
	// directory is fatal.
	ActionFetchFixPatches
	// ActionRegisterLSM inserts Module into the kernel's LSM ordering list.
	// The transform is idempotent.
	ActionRegisterLSM
)

// Workspace repository names referenced by actions.
const (
	RepoSusfs   = "susfs4ksu"
	RepoPatches = "kernel_patches"
)

// Upstream sources. The SUSFS branch is kernel-tree specific, so clone
// actions for RepoSusfs leave Ref empty and the driver fills it in.
const (
	officialInstallerURL = "https://raw.githubusercontent.com/tiann/KernelSU/main/kernel/setup.sh"
	nextInstallerURL     = "https://raw.githubusercontent.com/KernelSU-Next/KernelSU-Next/next/kernel/setup.sh"
	sukiInstallerURL     = "https://raw.githubusercontent.com/SukiSU-Ultra/SukiSU-Ultra/main/kernel/setup.sh"
	bbgInstallerURL      = "https://raw.githubusercontent.com/vc-teahouse/Baseband-guard/main/setup.sh"
	susfsRepoURL         = "https://gitlab.com/simonpunk/susfs4ksu.git"
	patchesRepoURL       = "https://github.com/WildPlusKernel/kernel_patches.git"
)

// susfsVersionHeader is the generated header the SUSFS version macro is read
// from after the main patch lands.
const (
	SusfsVersionHeader = "include/linux/susfs.h"
	SusfsVersionMacro  = "SUSFS_VERSION"
)

// Kernel configuration symbols driven by the resolver.
const (
	SymbolKSU         = "CONFIG_KSU"
	SymbolKprobesHook = "CONFIG_KSU_WITH_KPROBES"
	SymbolSusfs       = "CONFIG_KSU_SUSFS"
	SymbolSusfsSusSU  = "CONFIG_KSU_SUSFS_SUS_SU"
	SymbolBasebandGrd = "CONFIG_BBG"
	BasebandLSMModule = "baseband_guard"
)

// Variant tag suffixes, in their fixed concatenation order.
const (
	tagSusfs  = "SUSFS"
	tagDocker = "DOCKER"
	tagBBG    = "BBG"
)

// RepoURL maps a workspace repository name to its upstream.
func RepoURL(repo string) string {
	switch repo {
	case RepoSusfs:
		return susfsRepoURL
	case RepoPatches:
		return patchesRepoURL
	default:
		return ""
	}
}

type Action struct {
	Kind       ActionKind
	Name       string
	URL        string
	Ref        string
	Args       []string
	Repo       string
	Patch      string
	Module     string
	BestEffort bool
}

// Directive is one kernel-config mutation, applied after all source patches
// and before the final config regeneration.
type Directive struct {
	Enable bool
	Symbol string
}

// ResolvedVariant is computed exactly once per run and then threaded, by
// value, through the patch phase and the packaging phase. Patch application
// is irreversible, so it must never be recomputed mid-pipeline.
type ResolvedVariant struct {
	Options          BuildOptions
	PatchActions     []Action
	ConfigDirectives []Directive
}

// Tag derives the deterministic variant identifier: framework label first,
// then the SUSFS, container and baseband-guard suffixes. Artifact names key
// off this string, so the order is contractual.
func (v *ResolvedVariant) Tag() string {
	parts := []string{v.Options.RootFramework.TagLabel()}
	if v.Options.FilesystemSpoofing {
		parts = append(parts, tagSusfs)
	}
	if v.Options.ContainerSupport {
		parts = append(parts, tagDocker)
	}
	if v.Options.BasebandGuard && v.Options.RootFramework != FrameworkNone {
		parts = append(parts, tagBBG)
	}
	return strings.Join(parts, "-")
}

func frameworkInstaller(f RootFramework, spoofing bool) Action {
	switch f {
	case FrameworkOfficial:
		return Action{Kind: ActionRunInstaller, Name: "install KernelSU", URL: officialInstallerURL, Args: []string{"main"}}
	case FrameworkNext:
		return Action{Kind: ActionRunInstaller, Name: "install KernelSU-Next", URL: nextInstallerURL, Args: []string{"next"}}
	default:
		// SukiSU tracks a different branch when SUSFS is in play.
		ref := "nongki"
		if spoofing {
			ref = "susfs-main"
		}
		return Action{Kind: ActionRunInstaller, Name: "install SukiSU", URL: sukiInstallerURL, Args: []string{ref}}
	}
}

func manualHookPatch(f RootFramework) Action {
	patch := "next/syscall_hooks.patch"
	if f == FrameworkSuki {
		patch = "hooks/scope_min_manual_hooks.patch"
	}
	return Action{Kind: ActionApplyPatch, Name: "manual hook patch", Repo: RepoPatches, Patch: patch}
}

// Resolve derives the ordered patch actions and config directives for the
// given options. It is a pure function: no filesystem access, no network.
// Later actions may touch files earlier actions created, so the sequence
// order is part of the contract.
func Resolve(opts BuildOptions) (*ResolvedVariant, error) {
	v := &ResolvedVariant{Options: opts}

	if opts.RootFramework != FrameworkNone {
		v.PatchActions = append(v.PatchActions, frameworkInstaller(opts.RootFramework, opts.FilesystemSpoofing))
		v.ConfigDirectives = append(v.ConfigDirectives, Directive{Enable: true, Symbol: SymbolKSU})
	}

	if opts.RootFramework == FrameworkNext || opts.RootFramework == FrameworkSuki {
		v.PatchActions = append(v.PatchActions, manualHookPatch(opts.RootFramework))
		v.ConfigDirectives = append(v.ConfigDirectives, Directive{Enable: false, Symbol: SymbolKprobesHook})
	}

	if opts.FilesystemSpoofing {
		v.PatchActions = append(v.PatchActions,
			Action{Kind: ActionCloneRepo, Name: "fetch susfs4ksu", URL: susfsRepoURL, Repo: RepoSusfs},
			Action{Kind: ActionCopyOverlay, Name: "copy susfs overlay", Repo: RepoSusfs},
			Action{Kind: ActionApplyPatch, Name: "apply susfs patch", Repo: RepoSusfs, Patch: "kernel_patches/50_add_susfs_in_*.patch"},
			Action{Kind: ActionExtractVersion, Name: "extract susfs version"},
		)
		if opts.RootFramework == FrameworkNext {
			v.PatchActions = append(v.PatchActions,
				Action{Kind: ActionCloneRepo, Name: "fetch kernel_patches", URL: patchesRepoURL, Repo: RepoPatches},
				Action{Kind: ActionFetchFixPatches, Name: "apply susfs fix patches", Repo: RepoPatches},
			)
		}
		if opts.RootFramework == FrameworkNext || opts.RootFramework == FrameworkOfficial {
			// Upstream may already carry this; failure here must not sink the build.
			patch := "ksu_patches/10_enable_susfs_for_ksu.patch"
			if opts.RootFramework == FrameworkNext {
				patch = "next/10_enable_susfs_for_next.patch"
			}
			v.PatchActions = append(v.PatchActions,
				Action{Kind: ActionApplyPatch, Name: "enable susfs for framework", Repo: RepoPatches, Patch: patch, BestEffort: true})
		}
		v.ConfigDirectives = append(v.ConfigDirectives, Directive{Enable: true, Symbol: SymbolSusfs})
		if opts.RootFramework == FrameworkSuki || opts.RootFramework == FrameworkNext {
			v.ConfigDirectives = append(v.ConfigDirectives, Directive{Enable: false, Symbol: SymbolSusfsSusSU})
		}
	} else {
		v.ConfigDirectives = append(v.ConfigDirectives, Directive{Enable: false, Symbol: SymbolSusfs})
	}

	if opts.ContainerSupport {
		v.PatchActions = append(v.PatchActions,
			Action{Kind: ActionApplyPatch, Name: "docker support patch", Repo: RepoPatches, Patch: "docker/docker_support.patch"})
	}

	if opts.BasebandGuard && opts.RootFramework != FrameworkNone {
		v.PatchActions = append(v.PatchActions,
			Action{Kind: ActionRunInstaller, Name: "install baseband-guard", URL: bbgInstallerURL},
			Action{Kind: ActionRegisterLSM, Name: "register baseband-guard LSM", Module: BasebandLSMModule},
		)
		v.ConfigDirectives = append(v.ConfigDirectives, Directive{Enable: true, Symbol: SymbolBasebandGrd})
	}

	if err := checkDirectives(v.ConfigDirectives); err != nil {
		return nil, err
	}

	return v, nil
}

// checkDirectives rejects a directive list that both enables and disables the
// same symbol. Hitting this is a resolver bug, not a user error.
func checkDirectives(directives []Directive) error {
	seen := make(map[string]bool, len(directives))
	for _, d := range directives {
		prev, ok := seen[d.Symbol]
		if ok && prev != d.Enable {
			return fmt.Errorf("conflicting directives for %s", d.Symbol)
		}
		seen[d.Symbol] = d.Enable
	}
	return nil
}
