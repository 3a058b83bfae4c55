package main

import (
	"strconv"

	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderSyncMap lists the leaf fragments with their times
func renderSyncMap(sm *syncmap.SyncMap) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Begin", "End", "Duration", "Text"})

	for _, f := range sm.Leaves() {
		tw.AppendRow(table.Row{
			f.ID,
			strconv.FormatFloat(f.Begin, 'f', 3, 64),
			strconv.FormatFloat(f.End, 'f', 3, 64),
			strconv.FormatFloat(f.Duration(), 'f', 3, 64),
			f.Text(),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: 60},
	})
	return tw.Render()
}
