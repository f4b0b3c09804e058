package cmd

import (
	"fmt"

	"github.com/bacalhau-project/sshconn/pkg/config"
	"github.com/bacalhau-project/sshconn/pkg/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func GetConfigCmd(v *viper.Viper) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect sshconn configuration",
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective connection settings with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConnectionConfig(cmd, v)
			if err != nil {
				return err
			}
			view := config.NewView(cfg)

			switch format {
			case "yaml":
				out, err := view.ToYAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			case "table":
				st := table.NewSettingsTable(cmd.OutOrStdout())
				for _, row := range view.Rows() {
					st.AddRow(row[0], row[1])
				}
				st.Render()
				return nil
			default:
				return fmt.Errorf("unknown format %q, expected yaml or table", format)
			}
		},
	}
	showCmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or table")
	configCmd.AddCommand(showCmd)

	return configCmd
}

func GetVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sshconn version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sshconn %s\n", Version)
		},
	}
}
