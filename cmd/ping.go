package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func GetPingCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the host accepts SSH sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			if err := m.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is accepting SSH sessions\n", m.Addr())
			return nil
		},
	}
}
