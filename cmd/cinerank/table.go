package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable draws rows under headers. Columns listed in right are right
// aligned; long cells wrap.
func renderTable(headers []string, rows [][]string, right ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers))
	for _, row := range rows {
		tw.AppendRow(toRow(row))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, WidthMax: 48}
	}
	for _, col := range right {
		configs[col].Align = text.AlignRight
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}
