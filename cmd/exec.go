package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func GetExecCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "exec [flags] -- command [args...]",
		Short: "Run one command and exit with its status",
		Args:  cobra.MinimumNArgs(1),
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

			result, err := m.Exec(ctx, joinArgs(args))
			if err != nil {
				return err
			}
			printer.PrintResult(result)
			if result.Code != 0 {
				return &ExitCodeError{Code: result.Code}
			}
			return nil
		},
	}
}
