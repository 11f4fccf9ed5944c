package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kjzl/valorant-instalock/internal/config"
)

type rootFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "instalock",
		Short:         "Lock in a Valorant agent the moment pregame starts",
		Long:          "instalock watches the local Riot Client, follows its event stream and locks in the configured agent as soon as agent select begins.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(flags.envFile)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file loaded before the config")

	runCmd := newRunCmd(flags)
	rootCmd.RunE = runCmd.RunE
	rootCmd.AddCommand(
		runCmd,
		newAgentsCmd(flags),
		newVersionCmd(),
	)
	return rootCmd
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	return config.Load(viper.New(), flags.configPath)
}
