package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bacalhau-project/sshconn/pkg/config"
	"github.com/bacalhau-project/sshconn/pkg/display"
	"github.com/bacalhau-project/sshconn/pkg/logger"
	"github.com/bacalhau-project/sshconn/pkg/sshutils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// ExitCodeError carries a remote exit status out to the process exit code.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("remote command exited with code %d", e.Code)
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// flagKeys ties persistent flags to viper keys so flags override env and file.
var flagKeys = map[string]string{
	"host":            config.KeyHost,
	"port":            config.KeyPort,
	"user":            config.KeyUser,
	"identity":        config.KeyIdentity,
	"password":        config.KeyPassword,
	"passphrase":      config.KeyPassphrase,
	"agent":           config.KeyAgent,
	"use-default-key": config.KeyUseDefaultKey,
	"timeout":         config.KeyTimeout,
	"retries":         config.KeyRetries,
	"retry-delay":     config.KeyRetryDelay,
	"known-hosts":     config.KeyKnownHosts,
}

// NewRootCmd builds the command tree around its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	var (
		cfgFile     string
		verboseMode bool
	)

	rootCmd := &cobra.Command{
		Use:   "sshconn",
		Short: "sshconn runs commands, moves files and opens shells over SSH",
		Long: `sshconn is a thin SSH client: it connects with retries and a per-attempt
timeout, runs commands, uploads and downloads files over SFTP, and opens
interactive shells.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(v, cfgFile, verboseMode); err != nil {
				return err
			}
			cmd.SetContext(logger.IntoContext(cmd.Context(), logger.Get()))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sshconn.yaml)")
	pf.BoolVar(&verboseMode, "verbose", false, "Enable verbose output")
	pf.StringP("host", "H", "", "Remote host (default localhost)")
	pf.IntP("port", "p", sshutils.DefaultSSHPort, "Remote port")
	pf.StringP("user", "u", "", "Remote user")
	pf.StringP("identity", "i", "", "Private key file")
	pf.String("password", "", "Password for password and keyboard-interactive auth")
	pf.String("passphrase", "", "Passphrase for an encrypted private key")
	pf.String("agent", "", "SSH agent socket, e.g. $SSH_AUTH_SOCK")
	pf.Bool("use-default-key", false, "Fall back to ~/.ssh/id_rsa when no other credentials are given")
	pf.String("timeout", "", "Per-attempt connect timeout, in ms or as a duration (default 10s)")
	pf.Int("retries", sshutils.DefaultRetryCount, "Extra connect attempts after the first")
	pf.String("retry-delay", "", "Wait between connect attempts, in ms or as a duration (default 2s)")
	pf.Bool("insecure-accept-any-host-key", false, "Skip host key verification")
	pf.String("known-hosts", "", "known_hosts file used to verify host keys (default ~/.ssh/known_hosts)")
	pf.StringArrayP("option", "o", nil, "SSH option as key=value, repeatable")

	bindFlags(v, pf)

	rootCmd.AddCommand(
		GetConnectCmd(v),
		GetExecCmd(v),
		GetUploadCmd(v),
		GetDownloadCmd(v),
		GetShellCmd(v),
		GetPingCmd(v),
		GetConfigCmd(v),
		GetVersionCmd(),
	)
	return rootCmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

// Execute runs the CLI. This is called by main.main().
func Execute() error {
	rootCmd := NewRootCmd()
	var err error
	logger.RecoverAndLog(func() {
		err = rootCmd.Execute()
	})
	if err != nil && ExitCode(err) == 1 {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		reportError(display.NewPrinter(os.Stdout, os.Stderr), err, verbose)
	}
	return err
}

// recentLogLines is how much of the in-memory log a verbose failure replays.
const recentLogLines = 20

// reportError prints err and, in verbose mode, the tail of the log buffer leading
// up to it.
func reportError(printer *display.Printer, err error, verbose bool) {
	printer.Error(err)
	if !verbose {
		return
	}
	lines := logger.GetLastLines(recentLogLines)
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(printer.Err, "Recent log output:")
	for _, line := range lines {
		fmt.Fprintln(printer.Err, "  "+line)
	}
}

// initConfig reads .env, the config file and the environment, then sets up logging.
func initConfig(v *viper.Viper, cfgFile string, verbose bool) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if err := config.ReadConfigFile(v, cfgFile); err != nil {
		return err
	}
	config.BindEnv(v)

	if verbose {
		v.Set(config.KeyLogLevel, "debug")
		v.Set(config.KeyConsoleLogger, true)
	}

	if err := logger.Initialize(logger.Config{
		Level:         v.GetString(config.KeyLogLevel),
		FilePath:      v.GetString(config.KeyLogPath),
		Format:        "json",
		EnableConsole: v.GetBool(config.KeyConsoleLogger),
		EnableBuffer:  verbose,
	}); err != nil {
		return err
	}

	if used := v.ConfigFileUsed(); used != "" {
		logger.Get().Debugf("Using config file: %s", used)
	}
	return nil
}

// loadConnectionConfig layers -o options and the host key switch over the viper
// sources.
func loadConnectionConfig(cmd *cobra.Command, v *viper.Viper) (sshutils.ConnectionConfig, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return cfg, err
	}

	flagOptions, err := cmd.Flags().GetStringArray("option")
	if err != nil {
		return cfg, err
	}
	options, err := config.ParseOptions(flagOptions)
	if err != nil {
		return cfg, fmt.Errorf("invalid -o option: %w", err)
	}
	for k, val := range options {
		cfg.ExtraOptions[k] = val
	}

	if insecure, _ := cmd.Flags().GetBool("insecure-accept-any-host-key"); insecure {
		cfg.HostKeyPolicy = sshutils.HostKeyPolicyAcceptAny
	}
	return cfg, nil
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

// connectManager builds a Manager and connects it behind a spinner.
func connectManager(
	ctx context.Context,
	cmd *cobra.Command,
	cfg sshutils.ConnectionConfig,
	printer *display.Printer,
) (*sshutils.Manager, error) {
	if isVerbose(cmd) && cfg.Logger == nil {
		cfg.Logger = printer.Log
	}

	m, err := sshutils.NewManager(cfg)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debugf("Connecting to %s, giving up after %s", m.Addr(), sshutils.GetAggregateConnectTimeout(cfg))
	err = display.WithSpinner(cmd.ErrOrStderr(), "Connecting to "+m.Addr(), func() error {
		return m.Connect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newPrinter(cmd *cobra.Command) *display.Printer {
	return display.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
