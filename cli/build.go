package cli

import (
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.io/gnu3ra/kernelstack/stack"
	"github.io/gnu3ra/kernelstack/utils"
	"github.io/gnu3ra/kernelstack/variant"
)

var patches = &utils.CustomPatches{}

func init() {
	rootCmd.AddCommand(buildCmd)

	flags := buildCmd.Flags()

	flags.StringP("name", "n", "gki", "kernel name used for artifact naming")
	viper.BindPFlag("name", flags.Lookup("name"))

	flags.String("kernel-repo", "", "git url of the kernel source to build")
	viper.BindPFlag("kernel-repo", flags.Lookup("kernel-repo"))

	flags.String("kernel-ref", "main", "branch of the kernel source to build")
	viper.BindPFlag("kernel-ref", flags.Lookup("kernel-ref"))

	flags.String("arch", "arm64", "target architecture")
	viper.BindPFlag("arch", flags.Lookup("arch"))

	flags.String("defconfig", "arch/arm64/configs/gki_defconfig", "defconfig fragment edited by config directives")
	viper.BindPFlag("defconfig", flags.Lookup("defconfig"))

	flags.String("defconfig-target", "gki_defconfig", "make target that generates .config")
	viper.BindPFlag("defconfig-target", flags.Lookup("defconfig-target"))

	flags.String("susfs-ref", "", "branch of the susfs4ksu repository matching this kernel tree")
	viper.BindPFlag("susfs-ref", flags.Lookup("susfs-ref"))

	flags.String("patches-ref", "main", "branch of the kernel_patches repository")
	viper.BindPFlag("patches-ref", flags.Lookup("patches-ref"))

	flags.String("toolchain-url", "", "archive url of the clang toolchain")
	viper.BindPFlag("toolchain-url", flags.Lookup("toolchain-url"))

	flags.String("toolchain-name", "", "toolchain identifier recorded in build metadata")
	viper.BindPFlag("toolchain-name", flags.Lookup("toolchain-name"))

	flags.String("root-framework", "none", "root framework to integrate: none, official, next or suki")
	viper.BindPFlag(variant.KeyRootFramework, flags.Lookup("root-framework"))

	flags.String("susfs", "false", "apply the susfs filesystem-spoofing patch set")
	viper.BindPFlag(variant.KeySusfs, flags.Lookup("susfs"))

	flags.String("docker", "false", "apply the container-support patch")
	viper.BindPFlag(variant.KeyDocker, flags.Lookup("docker"))

	flags.String("baseband-guard", "false", "integrate the baseband-protection module (needs a root framework)")
	viper.BindPFlag(variant.KeyBasebandGuard, flags.Lookup("baseband-guard"))

	flags.String("lto", "thin", "link-time-optimization mode: thin or full")
	viper.BindPFlag(variant.KeyLTO, flags.Lookup("lto"))

	flags.String("sign-key", "", "avb key used to sign the boot image, signing skipped when empty")
	viper.BindPFlag("sign-key", flags.Lookup("sign-key"))
}

// rawOptions collects the variant-relevant settings the way they arrive from
// the environment, so normalization owns every coercion rule.
func rawOptions() map[string]string {
	raw := map[string]string{}
	for _, key := range []string{
		variant.KeyRootFramework,
		variant.KeySusfs,
		variant.KeyDocker,
		variant.KeyBasebandGuard,
		variant.KeyLTO,
	} {
		raw[key] = viper.GetString(key)
	}
	return raw
}

func stackConfig() (*stack.KernelStackConfig, error) {
	opts, err := variant.NormalizeOptions(rawOptions())
	if err != nil {
		return nil, err
	}

	viper.UnmarshalKey("custom-patches", patches)

	nproc := viper.GetInt("nproc")
	if nproc == 0 {
		nproc = runtime.NumCPU()
	}

	return &stack.KernelStackConfig{
		Name:            viper.GetString("name"),
		KernelRepo:      viper.GetString("kernel-repo"),
		KernelRef:       viper.GetString("kernel-ref"),
		Arch:            viper.GetString("arch"),
		Defconfig:       viper.GetString("defconfig"),
		DefconfigTarget: viper.GetString("defconfig-target"),
		SusfsRef:        viper.GetString("susfs-ref"),
		PatchesRef:      viper.GetString("patches-ref"),
		ToolchainURL:    viper.GetString("toolchain-url"),
		ToolchainName:   viper.GetString("toolchain-name"),
		StatePath:       viper.GetString("statepath"),
		NumProc:         nproc,
		Version:         version,
		Options:         opts,
		CustomPatches:   patches,
		TelegramToken:   viper.GetString("telegram-token"),
		TelegramChat:    viper.GetString("telegram-chat"),
		SignKey:         viper.GetString("sign-key"),
	}, nil
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run a one-shot kernel build for the configured variant",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := stackConfig()
		if err != nil {
			log.Fatal(err)
		}

		s, err := stack.NewKernelStack(cfg)
		if err != nil {
			log.Fatal(err)
		}

		if err := s.Build(); err != nil {
			log.Fatal(err)
		}
	},
}
