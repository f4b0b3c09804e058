package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/bacalhau-project/sshconn/pkg/sshutils"
	"github.com/charmbracelet/lipgloss"
)

// Printer writes command results and progress messages. Styles degrade to plain
// text when the writers are not terminals.
type Printer struct {
	Out io.Writer
	Err io.Writer

	stderrStyle lipgloss.Style
	labelStyle  lipgloss.Style
	exitStyle   lipgloss.Style
	infoStyle   lipgloss.Style
	errorStyle  lipgloss.Style
}

func NewPrinter(out, errOut io.Writer) *Printer {
	outRenderer := lipgloss.NewRenderer(out)
	errRenderer := lipgloss.NewRenderer(errOut)

	return &Printer{
		Out: out,
		Err: errOut,
		stderrStyle: outRenderer.NewStyle().
			Foreground(lipgloss.Color("214")),
		labelStyle: outRenderer.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		exitStyle: outRenderer.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff0000")),
		infoStyle: errRenderer.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true),
		errorStyle: errRenderer.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff0000")),
	}
}

// PrintResult shows stdout as is, stderr under a STDERR: label, and the exit code
// only when it is non-zero.
func (p *Printer) PrintResult(result *sshutils.CommandResult) {
	if result == nil {
		return
	}
	if result.Stdout != "" {
		fmt.Fprint(p.Out, ensureNewline(result.Stdout))
	}
	if result.Stderr != "" {
		fmt.Fprintln(p.Out, p.labelStyle.Render("STDERR:"))
		fmt.Fprint(p.Out, p.stderrStyle.Render(strings.TrimRight(result.Stderr, "\n"))+"\n")
	}
	if result.Code != 0 {
		fmt.Fprintln(p.Out, p.exitStyle.Render(fmt.Sprintf("Exit code: %d", result.Code)))
	}
}

// Log is an sshutils.LogFunc printing "[SSH] msg" lines.
func (p *Printer) Log(msg string) {
	fmt.Fprintln(p.Err, p.infoStyle.Render("[SSH] "+msg))
}

func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintln(p.Err, p.infoStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Error(err error) {
	fmt.Fprintln(p.Err, p.errorStyle.Render("Error: "+err.Error()))
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
