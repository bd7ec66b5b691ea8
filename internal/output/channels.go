package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ChannelRow is one configured channel as shown by the channels command.
type ChannelRow struct {
	Name     string        `json:"name" yaml:"name"`
	Endpoint string        `json:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	Max      int           `json:"max" yaml:"max"`
	Window   time.Duration `json:"window" yaml:"window"`
}

// Configured reports whether the channel has a destination.
func (r ChannelRow) Configured() bool {
	return r.Endpoint != ""
}

// RenderChannels renders rows in the requested format.
func RenderChannels(format Format, rows []ChannelRow) (string, error) {
	switch format {
	case FormatJSON, FormatYAML:
		return Encode(format, rows)
	case FormatTable, FormatMarkdown:
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Channel", "Endpoint", "Timeout", "Limit", "Status"})

	configured := 0
	for _, r := range rows {
		status := "missing url"
		endpoint := r.Endpoint
		if r.Configured() {
			status = "ready"
			configured++
		} else {
			endpoint = "-"
		}
		t.AppendRow(table.Row{
			r.Name,
			endpoint,
			r.Timeout.String(),
			strconv.Itoa(r.Max) + "/" + r.Window.String(),
			status,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d/%d ready", configured, len(rows))})

	if format == FormatMarkdown {
		return t.RenderMarkdown() + "\n", nil
	}
	return t.Render() + "\n", nil
}
