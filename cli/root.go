package cli

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "1.2.0"

var cfgFile string
var configFileFullPath string

var rootCmd = &cobra.Command{
	Use:     "kernelstack",
	Short:   "Build, package and publish custom Android kernels with optional feature patches",
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.kernelstack.yml)")

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

func initConfig() {
	// A local .env feeds the same variables CI would export.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env")
	}

	home, err := homedir.Dir()
	if err != nil {
		log.Fatalf("failed to find home directory: %v", err)
	}
	configFileFullPath = filepath.Join(home, ".kernelstack.yml")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(".kernelstack")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("kernelstack")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Infof("using config file %v", viper.ConfigFileUsed())
	}
}
