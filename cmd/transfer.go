package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func GetUploadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local-path> <remote-path>",
		Short: "Copy a local file to the remote host over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConnectionConfig(cmd, v)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			printer := newPrinter(cmd)
			m, err := connectManager(ctx, cmd, cfg, printer)
			if err != nil {
				return err
			}
			defer m.Disconnect()

			if err := m.UploadFile(ctx, args[0], args[1]); err != nil {
				return err
			}
			printer.Info("Uploaded %s to %s:%s", args[0], m.Addr(), args[1])
			return nil
		},
	}
}

func GetDownloadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "download <remote-path> <local-path>",
		Short: "Copy a remote file to the local machine over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConnectionConfig(cmd, v)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			printer := newPrinter(cmd)
			m, err := connectManager(ctx, cmd, cfg, printer)
			if err != nil {
				return err
			}
			defer m.Disconnect()

			if err := m.DownloadFile(ctx, args[0], args[1]); err != nil {
				return err
			}
			printer.Info("Downloaded %s:%s to %s", m.Addr(), args[0], args[1])
			return nil
		},
	}
}
