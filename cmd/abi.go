package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/abiReader"
	"github.com/yulesa/glaciers/pkg/logger"
)

var abiCmd = &cobra.Command{
	Use:   "abi",
	Short: "Scan a folder of contract ABI files and update the signature index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: mustBool(cmd, "debug")})
		if err != nil {
			return err
		}
		defer l.Sync() //nolint:errcheck

		indexPath, _ := cmd.Flags().GetString("abi-db")
		abiFolder, _ := cmd.Flags().GetString("abi-folder")
		if indexPath == "" {
			indexPath = cfg.Main.EventsAbiDbFilePath
		}
		if abiFolder == "" {
			abiFolder = cfg.Main.AbiFolderPath
		}

		reader := abiReader.NewAbiReader(l)
		_, err = reader.UpdateIndexFile(indexPath, abiFolder, cfg.AbiReader)
		return err
	},
}

func init() {
	abiCmd.Flags().StringP("abi-db", "d", "", "Path to the signature index file (parquet or csv)")
	abiCmd.Flags().StringP("abi-folder", "a", "", "Path to the folder of contract ABI JSON files")
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
