package stack

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.io/gnu3ra/kernelstack/buildtemplates"
	"github.io/gnu3ra/kernelstack/fetch"
	"github.io/gnu3ra/kernelstack/kconfig"
	"github.io/gnu3ra/kernelstack/notify"
	"github.io/gnu3ra/kernelstack/utils"
	"github.io/gnu3ra/kernelstack/variant"
)

type KernelStackConfig struct {
	Name            string
	KernelRepo      string
	KernelRef       string
	Arch            string
	Defconfig       string
	DefconfigTarget string
	SusfsRef        string
	PatchesRef      string
	ToolchainURL    string
	ToolchainName   string
	StatePath       string
	NumProc         int
	Version         string
	Options         variant.BuildOptions
	CustomPatches   *utils.CustomPatches
	TelegramToken   string
	TelegramChat    string
	SignKey         string
}

// KernelStack drives one build run: workspace reset, toolchain and source
// fetch, variant patch application, config edits, compile, packaging and
// notification. Strictly sequential; every external call blocks.
type KernelStack struct {
	config       *KernelStackConfig
	variant      *variant.ResolvedVariant
	notifier     *notify.Telegram
	statePath    string
	buildID      string
	started      time.Time
	susfsVersion string
	kernelVer    string
	logPath      string
}

// NewKernelStack validates the config and resolves the variant exactly once.
// The resolved variant is never recomputed: patch application is
// irreversible within a run, so the same value feeds both the patch phase
// and the packaging phase.
func NewKernelStack(config *KernelStackConfig) (*KernelStack, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("kernel name must be set")
	}
	if config.KernelRepo == "" {
		return nil, fmt.Errorf("kernel source repository must be set")
	}

	v, err := variant.Resolve(config.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve variant: %w", err)
	}

	return &KernelStack{
		config:    config,
		variant:   v,
		notifier:  notify.NewTelegram(config.TelegramToken, config.TelegramChat),
		statePath: path.Join(path.Clean(config.StatePath), ".kernelstack"),
		buildID:   uuid.NewString(),
	}, nil
}

// Variant exposes the resolved variant for dry-run inspection.
func (s *KernelStack) Variant() *variant.ResolvedVariant { return s.variant }

func (s *KernelStack) sourceDir() string       { return path.Join(s.statePath, "sources", "kernel") }
func (s *KernelStack) repoDir(n string) string { return path.Join(s.statePath, "sources", n) }
func (s *KernelStack) toolchainDir() string    { return path.Join(s.statePath, "toolchain") }
func (s *KernelStack) releaseDir() string      { return path.Join(s.statePath, "release") }
func (s *KernelStack) logsDir() string         { return path.Join(s.statePath, "logs") }

// setupDirs resets the workspace. Runs are stateless: every working
// directory is deleted and recreated so a failed previous run cannot leak
// half-applied patches into this one.
func (s *KernelStack) setupDirs() error {
	for _, dir := range []string{"sources", "toolchain", "release", "logs"} {
		full := path.Join(s.statePath, dir)
		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("failed to clear %s: %w", full, err)
		}
		if err := os.MkdirAll(full, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", full, err)
		}
	}
	return nil
}

// teeLogs mirrors the run log into the workspace so failure notifications
// can attach it.
func (s *KernelStack) teeLogs() (*os.File, error) {
	s.logPath = path.Join(s.logsDir(), "build.log")
	f, err := os.Create(s.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

// Build runs the whole pipeline. The first fatal error aborts everything:
// no partial success, no rollback of already-applied patches. The caller is
// expected to exit non-zero on error.
func (s *KernelStack) Build() error {
	s.started = time.Now()

	if err := s.setupDirs(); err != nil {
		return err
	}
	logFile, err := s.teeLogs()
	if err != nil {
		return err
	}
	defer func() {
		log.SetOutput(os.Stdout)
		logFile.Close()
	}()

	log.Infof("starting %s build %s (variant %s)", s.config.Name, s.buildID, s.variant.Tag())

	if err := s.run(); err != nil {
		log.Errorf("build failed: %v", err)
		s.notifyFailure(err)
		return err
	}

	s.notifySuccess()
	return nil
}

func (s *KernelStack) run() error {
	if err := fetch.DownloadToolchain(s.config.ToolchainURL, s.toolchainDir()); err != nil {
		return err
	}

	if err := fetch.Clone(s.config.KernelRepo, s.config.KernelRef, s.sourceDir()); err != nil {
		return err
	}

	ver, err := kernelVersionFromTree(s.sourceDir())
	if err != nil {
		return err
	}
	s.kernelVer = ver
	log.Infof("kernel version %s", ver)

	if err := s.applyPatchActions(); err != nil {
		return err
	}

	if err := s.applyCustomPatches(); err != nil {
		return err
	}

	if err := s.applyConfig(); err != nil {
		return err
	}

	if err := s.compile(); err != nil {
		return err
	}

	artifacts, err := s.packageArtifacts()
	if err != nil {
		return err
	}

	if err := s.writeMetadata(artifacts); err != nil {
		return err
	}

	log.Infof("build finished in %s", time.Since(s.started).Round(time.Second))
	return nil
}

func (s *KernelStack) applyConfig() error {
	editor := &kconfig.Editor{
		SourceRoot: s.sourceDir(),
		Arch:       s.config.Arch,
		Defconfig:  s.config.Defconfig,
		OutDir:     "out",
	}

	if err := editor.ApplyDirectives(s.variant.ConfigDirectives); err != nil {
		return err
	}
	if err := editor.ApplyDirectives(ltoDirectives(s.config.Options.LTO)); err != nil {
		return err
	}

	// Generate .config from the edited fragment, then normalize it.
	if err := utils.RunCommand(s.sourceDir(), s.buildEnv(), "make",
		"ARCH="+s.config.Arch, "O=out", "LLVM=1", s.config.DefconfigTarget); err != nil {
		return &variant.ExternalToolFailureError{Tool: "make " + s.config.DefconfigTarget, Err: err}
	}
	return editor.Regenerate(s.buildEnv())
}

// ltoDirectives maps the LTO mode onto the clang LTO symbols. These live
// outside the resolved variant: they affect codegen only, never patch
// selection or the artifact tag.
func ltoDirectives(mode variant.LTOMode) []variant.Directive {
	if mode == variant.LTOFull {
		return []variant.Directive{
			{Enable: true, Symbol: "CONFIG_LTO_CLANG_FULL"},
			{Enable: false, Symbol: "CONFIG_LTO_CLANG_THIN"},
		}
	}
	return []variant.Directive{
		{Enable: true, Symbol: "CONFIG_LTO_CLANG_THIN"},
		{Enable: false, Symbol: "CONFIG_LTO_CLANG_FULL"},
	}
}

func (s *KernelStack) buildEnv() []string {
	return []string{
		"PATH=" + path.Join(s.toolchainDir(), "bin") + ":" + os.Getenv("PATH"),
	}
}

func (s *KernelStack) compile() error {
	nproc := s.config.NumProc
	if nproc <= 0 {
		nproc = 1
	}
	err := utils.RunCommand(s.sourceDir(), s.buildEnv(), "make",
		"-j"+strconv.Itoa(nproc), "ARCH="+s.config.Arch, "O=out", "LLVM=1", "Image")
	if err != nil {
		return &variant.ExternalToolFailureError{Tool: "make Image", Err: err}
	}
	return nil
}

func (s *KernelStack) notifySuccess() {
	msg, err := utils.RenderTemplate(buildtemplates.NotifySuccess, map[string]string{
		"KernelName":    notify.Escape(s.config.Name),
		"KernelVersion": notify.Escape(s.kernelVer),
		"VariantTag":    notify.Escape(s.variant.Tag()),
		"SusfsVersion":  notify.Escape(s.susfsVersion),
		"Toolchain":     notify.Escape(s.config.ToolchainName),
		"Elapsed":       notify.Escape(time.Since(s.started).Round(time.Second).String()),
	})
	if err != nil {
		log.Warnf("failed to render success notification: %v", err)
		return
	}
	if err := s.notifier.SendMessage(string(msg)); err != nil {
		log.Warnf("%v", err)
	}
	zip := path.Join(s.releaseDir(), s.packageName()+".zip")
	if _, statErr := os.Stat(zip); statErr == nil {
		if err := s.notifier.UploadFile(zip, notify.Escape(s.packageName())); err != nil {
			log.Warnf("%v", err)
		}
	}
}

// notifyFailure is best-effort: its own failure is logged and never
// escalated, so errors cannot recurse through the notifier.
func (s *KernelStack) notifyFailure(buildErr error) {
	msg, err := utils.RenderTemplate(buildtemplates.NotifyFailure, map[string]string{
		"KernelName": notify.Escape(s.config.Name),
		"VariantTag": notify.Escape(s.variant.Tag()),
		"Error":      notify.Escape(buildErr.Error()),
	})
	if err != nil {
		log.Warnf("failed to render failure notification: %v", err)
		return
	}
	if err := s.notifier.SendMessage(string(msg)); err != nil {
		log.Warnf("%v", err)
	}
	if s.logPath != "" {
		if err := s.notifier.UploadFile(s.logPath, "build log"); err != nil {
			log.Warnf("%v", err)
		}
	}
}
