package ui

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JreyForFun/Whispr/internal/backend"
)

// RenderStats prints the live service counters as a table.
func RenderStats(stats *backend.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Online", stats.Online},
		{"Waiting for a match", stats.Waiting},
		{"Active conversations", stats.Rooms},
	})
	t.Render()
}
