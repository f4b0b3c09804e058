package table

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

const ValueWidth = 60

// SettingsTable renders key/value pairs as a borderless two-column table.
type SettingsTable struct {
	table *tablewriter.Table
}

func NewSettingsTable(w io.Writer) *SettingsTable {
	if w == nil {
		w = os.Stdout
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Setting", "Value"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return &SettingsTable{table: table}
}

// AddRow appends one setting. Empty values are shown as "-".
func (st *SettingsTable) AddRow(key, value string) {
	if value == "" {
		value = "-"
	}
	st.table.Append([]string{key, truncate(value, ValueWidth)})
}

func (st *SettingsTable) Render() {
	st.table.Render()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
