package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yulesa/glaciers/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "glaciers",
	Short: "Glaciers batch-decodes EVM raw logs and traces into structured tables",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		if configPath == "" {
			return nil
		}
		return config.LoadTOML(configPath)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	viper.SetEnvPrefix("GLACIERS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", "", "Path to a glaciers TOML config file")
	rootCmd.PersistentFlags().Bool("debug", false, `"true" or "false"`)

	rootCmd.AddCommand(abiCmd)
	rootCmd.AddCommand(decodeLogsCmd)
	rootCmd.AddCommand(decodeTracesCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f) //nolint:errcheck
		viper.BindEnv(f.Name)      //nolint:errcheck
	})
}
