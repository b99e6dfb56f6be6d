package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var supportedFrameworks = []string{"none", "official", "next", "suki"}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Setup config file for kernelstack",
	Run: func(cmd *cobra.Command, args []string) {
		color.Cyan(fmt.Sprintln("Name identifies the kernel in artifact names (e.g. gki)"))
		validate := func(input string) error {
			if len(input) < 1 {
				return errors.New("Kernel name is too short")
			}
			if strings.ContainsAny(input, " /") {
				return errors.New("Kernel name must not contain spaces or slashes")
			}
			return nil
		}
		namePrompt := promptui.Prompt{
			Label:    "Kernel name ",
			Default:  viper.GetString("name"),
			Validate: validate,
		}
		result, err := namePrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed %v\n", err)
		}
		viper.Set("name", result)

		color.Cyan(fmt.Sprintln("Git url of the kernel source tree to build"))
		validate = func(input string) error {
			u, err := url.Parse(input)
			if err != nil || u.Scheme == "" {
				return errors.New("enter a full git url")
			}
			return nil
		}
		repoPrompt := promptui.Prompt{
			Label:    "Kernel repo ",
			Default:  viper.GetString("kernel-repo"),
			Validate: validate,
		}
		result, err = repoPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed %v\n", err)
		}
		viper.Set("kernel-repo", result)

		color.Cyan(fmt.Sprintln("Root framework to integrate. Supported:", strings.Join(supportedFrameworks, ", ")))
		validate = func(input string) error {
			for _, f := range supportedFrameworks {
				if strings.EqualFold(input, f) {
					return nil
				}
			}
			return errors.New("Invalid root framework")
		}
		frameworkPrompt := promptui.Prompt{
			Label:    "Root framework ",
			Default:  "none",
			Validate: validate,
		}
		result, err = frameworkPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed %v\n", err)
		}
		viper.Set("root-framework", result)

		color.Cyan(fmt.Sprintln("Path to store stateful files for the build workspace"))
		validate = func(input string) error {
			fileInfo, err := os.Stat(input)
			if err != nil {
				return err
			}
			if !fileInfo.IsDir() {
				return fmt.Errorf("error: path is not a directory")
			}
			return nil
		}
		dirPrompt := promptui.Prompt{
			Label:    "State path ",
			Validate: validate,
			Default:  os.Getenv("HOME"),
		}
		result, err = dirPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed %v\n", err)
		}
		viper.Set("statepath", result)

		color.Cyan(fmt.Sprintln("number of cpus to use for build (too many can result in OOM condition)"))
		validate = func(input string) error {
			_, err = strconv.ParseInt(input, 10, 64)
			if err != nil {
				return fmt.Errorf("enter an integer")
			}
			return nil
		}
		nprocPrompt := promptui.Prompt{
			Label:    "Number of processors ",
			Validate: validate,
			Default:  strconv.Itoa(runtime.NumCPU()),
		}
		result, err = nprocPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}
		viper.Set("nproc", result)

		color.Cyan(fmt.Sprintln("Telegram bot token and chat id for build notifications (leave empty to disable)"))
		tokenPrompt := promptui.Prompt{
			Label:   "Telegram bot token ",
			Default: viper.GetString("telegram-token"),
		}
		result, err = tokenPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed %v\n", err)
		}
		viper.Set("telegram-token", result)

		chatPrompt := promptui.Prompt{
			Label:   "Telegram chat id ",
			Default: viper.GetString("telegram-chat"),
		}
		result, err = chatPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed %v\n", err)
		}
		viper.Set("telegram-chat", result)

		err = viper.WriteConfigAs(configFileFullPath)
		if err != nil {
			log.WithError(err).Fatalf("failed to write config file %s", configFileFullPath)
		}

		log.Infof("kernelstack config file has been written to %v", configFileFullPath)
	},
}
