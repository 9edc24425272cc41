// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package ux provides terminal output styling for the aika CLI.
package ux

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Aika color palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
	Selected lipgloss.Style
	Excluded lipgloss.Style
	Border   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	Selected: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Excluded: lipgloss.NewStyle().Foreground(ColorSlate),
	Border:   lipgloss.NewStyle().Foreground(ColorTealDeep),
}

// Icon provides status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	if !ShouldShowColors() {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// ActivationRow is one line of an interpretation result table.
type ActivationRow struct {
	ID       int
	Label    string
	Position int
	Decision string
	Value    float64
	Net      float64
}

// SummaryItem is one key/value line of a summary block.
type SummaryItem struct {
	Label string
	Value string
}

// Printer writes personality-aware output to a writer.
//
// # Description
//
// Printer renders status lines, summaries and activation tables. The
// rendering depends on the personality level captured at construction:
// styled output for standard, aligned plain text for minimal, and tab
// separated records for machine.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
}

// NewPrinter returns a Printer for w using the current personality level.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, level: GetPersonality()}
}

// NewPrinterWithLevel returns a Printer for w with an explicit level.
func NewPrinterWithLevel(w io.Writer, level PersonalityLevel) *Printer {
	return &Printer{w: w, level: level}
}

func (p *Printer) styled() bool {
	return p.level == PersonalityStandard
}

// Title prints a title. Machine output omits it.
func (p *Printer) Title(text string) {
	switch p.level {
	case PersonalityMachine:
		return
	case PersonalityStandard:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Success prints a success line.
func (p *Printer) Success(msg string) { p.status("OK", IconSuccess, Styles.Success, msg) }

// Warning prints a warning line.
func (p *Printer) Warning(msg string) { p.status("WARN", IconWarning, Styles.Warning, msg) }

// Error prints an error line.
func (p *Printer) Error(msg string) { p.status("ERROR", IconError, Styles.Error, msg) }

func (p *Printer) status(tag string, icon Icon, style lipgloss.Style, msg string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.w, "%s: %s\n", tag, msg)
	case PersonalityStandard:
		fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), msg)
	default:
		fmt.Fprintf(p.w, "%s %s\n", icon, msg)
	}
}

// Summary prints key/value items, boxed under the title in standard mode.
func (p *Printer) Summary(title string, items []SummaryItem) {
	if p.level == PersonalityMachine {
		for _, it := range items {
			fmt.Fprintf(p.w, "%s\t%s\n", machineKey(it.Label), it.Value)
		}
		return
	}

	width := 0
	for _, it := range items {
		width = max(width, len(it.Label))
	}
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		label := fmt.Sprintf("%-*s", width, it.Label)
		if p.styled() {
			label = Styles.Muted.Render(label)
		}
		sb.WriteString(label)
		sb.WriteString("  ")
		sb.WriteString(it.Value)
	}

	if p.styled() {
		fmt.Fprintln(p.w, Styles.Box.Render(Styles.Bold.Render(title)+"\n"+sb.String()))
		return
	}
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, sb.String())
}

// Activations prints an activation table.
func (p *Printer) Activations(rows []ActivationRow) {
	headers := []string{"ID", "LABEL", "POS", "DECISION", "VALUE", "NET"}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			strconv.Itoa(r.ID),
			r.Label,
			strconv.Itoa(r.Position),
			r.Decision,
			strconv.FormatFloat(r.Value, 'f', 4, 64),
			strconv.FormatFloat(r.Net, 'f', 4, 64),
		})
	}

	switch p.level {
	case PersonalityMachine:
		for _, c := range cells {
			fmt.Fprintln(p.w, strings.Join(c, "\t"))
		}
	case PersonalityStandard:
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(Styles.Border).
			Headers(headers...).
			Rows(cells...).
			StyleFunc(func(row, col int) lipgloss.Style {
				base := lipgloss.NewStyle().Padding(0, 1)
				if row < 0 || row >= len(rows) {
					return base.Inherit(Styles.Bold)
				}
				switch rows[row].Decision {
				case "SELECTED":
					return base.Inherit(Styles.Selected)
				case "EXCLUDED":
					return base.Inherit(Styles.Excluded)
				}
				return base
			})
		fmt.Fprintln(p.w, t.String())
	default:
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
		for _, c := range cells {
			fmt.Fprintln(tw, strings.Join(c, "\t"))
		}
		_ = tw.Flush()
	}
}

func machineKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}
