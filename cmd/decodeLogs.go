package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/decoder"
	"github.com/yulesa/glaciers/pkg/logger"
)

var decodeLogsCmd = &cobra.Command{
	Use:   "decode-logs",
	Short: "Decode a folder of raw log files against the signature index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: mustBool(cmd, "debug")})
		if err != nil {
			return err
		}
		defer l.Sync() //nolint:errcheck

		logsFolder, _ := cmd.Flags().GetString("logs-folder")
		indexPath, _ := cmd.Flags().GetString("abi-db")
		if logsFolder == "" {
			logsFolder = cfg.Main.RawLogsFolderPath
		}
		if indexPath == "" {
			indexPath = cfg.Main.EventsAbiDbFilePath
		}

		d := decoder.NewDecoder(l)
		return d.DecodeFolder(cmd.Context(), logsFolder, indexPath, decoder.DecoderTypeLog)
	},
}

func init() {
	decodeLogsCmd.Flags().StringP("logs-folder", "l", "", "Path to the folder of raw log files")
	decodeLogsCmd.Flags().StringP("abi-db", "a", "", "Path to the signature index file")
}
