package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/decoder"
	"github.com/yulesa/glaciers/pkg/logger"
)

var decodeTracesCmd = &cobra.Command{
	Use:   "decode-traces",
	Short: "Decode a folder of raw trace files against the signature index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: mustBool(cmd, "debug")})
		if err != nil {
			return err
		}
		defer l.Sync() //nolint:errcheck

		tracesFolder, _ := cmd.Flags().GetString("traces-folder")
		indexPath, _ := cmd.Flags().GetString("abi-db")
		if tracesFolder == "" {
			tracesFolder = cfg.Main.RawTracesFolderPath
		}
		if indexPath == "" {
			indexPath = cfg.Main.FunctionsAbiDbFilePath
		}

		d := decoder.NewDecoder(l)
		return d.DecodeFolder(cmd.Context(), tracesFolder, indexPath, decoder.DecoderTypeTrace)
	},
}

func init() {
	decodeTracesCmd.Flags().StringP("traces-folder", "t", "", "Path to the folder of raw trace files")
	decodeTracesCmd.Flags().StringP("abi-db", "a", "", "Path to the signature index file")
}
