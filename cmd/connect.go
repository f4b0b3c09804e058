package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bacalhau-project/sshconn/pkg/config"
	"github.com/bacalhau-project/sshconn/pkg/sshutils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// prompter reads answers line by line, switching to no-echo input for secrets when
// stdin is a terminal.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) askSecret(question string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.ask(question)
	}
	fmt.Fprint(p.out, question)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func GetConnectCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Prompt for connection details and run commands interactively",
		Long: `Prompts for host, port, user and password, connects without host key
checking, and then runs each line you type as a remote command until you
type "exit". Values given as flags are not prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConnect(cmd, v)
		},
	}
}

func runConnect(cmd *cobra.Command, v *viper.Viper) error {
	out := cmd.OutOrStdout()
	printer := newPrinter(cmd)
	p := newPrompter(cmd.InOrStdin(), out)

	// Interactive sessions trust any host key and retry once unless configured
	// otherwise.
	v.SetDefault(config.KeyHostKeyPolicy, string(sshutils.HostKeyPolicyAcceptAny))
	v.SetDefault(config.KeyRetries, 1)

	cfg, err := loadConnectionConfig(cmd, v)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "sshconn interactive session")
	fmt.Fprintln(out, "===========================")

	flags := cmd.Flags()
	if !flags.Changed("host") {
		if cfg.Host, err = p.ask("Host: "); err != nil {
			return err
		}
	}
	if !flags.Changed("port") {
		answer, err := p.ask(fmt.Sprintf("Port [%d]: ", sshutils.DefaultSSHPort))
		if err != nil {
			return err
		}
		cfg.Port = sshutils.DefaultSSHPort
		if answer != "" {
			if cfg.Port, err = strconv.Atoi(answer); err != nil {
				return fmt.Errorf("invalid port %q", answer)
			}
		}
	}
	if !flags.Changed("user") {
		if cfg.User, err = p.ask("Username: "); err != nil {
			return err
		}
	}

	if !cfg.HasExplicitAuth() {
		answer, err := p.ask("Use password (y/n) [y]: ")
		if err != nil {
			return err
		}
		if answer == "" || strings.EqualFold(answer, "y") {
			if cfg.Password, err = p.askSecret("Password: "); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Using default key from %s\n", sshutils.DefaultKeyRelPath)
			cfg.UseDefaultKey = true
		}
	}

	cfg.Logger = printer.Log
	fmt.Fprintf(out, "\nConnecting to %s@%s...\n", cfg.User, cfg.WithDefaults().Addr())

	ctx := cmd.Context()
	m, err := connectManager(ctx, cmd, cfg, printer)
	if err != nil {
		return err
	}
	defer func() {
		m.Disconnect()
		fmt.Fprintln(out, "Disconnected from server.")
	}()
	fmt.Fprintln(out, "Connected successfully!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, `Enter SSH commands (type "exit" to quit):`)

	for {
		line, err := p.ask("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		if strings.EqualFold(line, "exit") {
			return nil
		}
		if line == "" {
			continue
		}

		result, err := m.Exec(ctx, line)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error executing command: %v\n", err)
			continue
		}
		printer.PrintResult(result)
	}
}
