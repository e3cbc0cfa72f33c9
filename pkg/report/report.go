// Package report renders counter views for the terminal and for scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/planet0104/keyboard-counter/pkg/counter"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// DefaultColumns matches the six-wide grid of the desktop counter window.
const DefaultColumns = 6

const cellWidth = 15

// ParseFormat accepts table, json and yaml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

// Options control rendering.
type Options struct {
	Format  Format
	Columns int
	// Title heads the table and is carried in json and yaml output.
	Title string
	// Since, when non-zero, is printed as the counting start time.
	Since time.Time
}

// Document is the json and yaml shape of a report.
type Document struct {
	Title    string               `json:"title,omitempty" yaml:"title,omitempty"`
	Since    *time.Time           `json:"since,omitempty" yaml:"since,omitempty"`
	Counters []counter.LabelCount `json:"counters" yaml:"counters"`
}

// Render writes view to w in the requested format.
func Render(w io.Writer, view []counter.LabelCount, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(document(view, opts))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(document(view, opts)); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		_, err := io.WriteString(w, Table(w, view, opts)+"\n")
		return err
	default:
		return fmt.Errorf("report: unknown format %q", opts.Format)
	}
}

func document(view []counter.LabelCount, opts Options) Document {
	doc := Document{Title: opts.Title, Counters: view}
	if !opts.Since.IsZero() {
		since := opts.Since.UTC()
		doc.Since = &since
	}
	return doc
}

// Table lays view out as a grid of bordered cells, label above value. The
// renderer is bound to w so colour is only emitted for terminals.
func Table(w io.Writer, view []counter.LabelCount, opts Options) string {
	cols := opts.Columns
	if cols < 1 {
		cols = DefaultColumns
	}

	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#6B7280")).
		Width(cellWidth).
		Align(lipgloss.Center)
	labelStyle := r.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	valueStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	titleStyle := r.NewStyle().Bold(true).MarginBottom(1)

	var rows []string
	for start := 0; start < len(view); start += cols {
		end := min(start+cols, len(view))
		cells := make([]string, 0, end-start)
		for _, lc := range view[start:end] {
			body := lipgloss.JoinVertical(lipgloss.Center,
				labelStyle.Render(lc.Label),
				valueStyle.Render(strconv.FormatUint(lc.Count, 10)),
			)
			cells = append(cells, cell.Render(body))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	grid := lipgloss.JoinVertical(lipgloss.Left, rows...)

	var header []string
	if opts.Title != "" {
		header = append(header, opts.Title)
	}
	if !opts.Since.IsZero() {
		header = append(header, "since "+opts.Since.Format("2006-01-02 15:04"))
	}
	if len(header) == 0 {
		return grid
	}
	return titleStyle.Render(strings.Join(header, "  ")) + "\n" + grid
}
