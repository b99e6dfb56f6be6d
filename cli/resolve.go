package cli

import (
	"fmt"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.io/gnu3ra/kernelstack/stack"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the resolved variant for the current settings without building",
	Run: func(cmd *cobra.Command, args []string) {
		c := viper.AllSettings()
		bs, err := yaml.Marshal(c)
		if err != nil {
			log.Fatalf("unable to marshal config to YAML: %v", err)
		}
		log.Println("Current settings:")
		fmt.Println(string(bs))

		cfg, err := stackConfig()
		if err != nil {
			log.Fatal(err)
		}

		s, err := stack.NewKernelStack(cfg)
		if err != nil {
			log.Fatal(err)
		}
		v := s.Variant()

		color.Cyan(fmt.Sprintln("Variant tag:", v.Tag()))

		color.Cyan("Patch actions:")
		if len(v.PatchActions) == 0 {
			fmt.Println("  (none)")
		}
		for i, a := range v.PatchActions {
			line := fmt.Sprintf("  %2d. %s", i+1, a.Name)
			if a.BestEffort {
				line += " (best effort)"
			}
			fmt.Println(line)
		}

		color.Cyan("Config directives:")
		for _, d := range v.ConfigDirectives {
			if d.Enable {
				fmt.Printf("  enable  %s\n", d.Symbol)
			} else {
				fmt.Printf("  disable %s\n", d.Symbol)
			}
		}
		fmt.Printf("  lto mode %s\n", cfg.Options.LTO)
	},
}
