// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the mlsearch CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
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
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
	Header    lipgloss.Style
	Cell      lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	Header: lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconStar    Icon = "★"
	IconArrow   Icon = "→"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	if GetMode() != ModeRich {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	case IconStar:
		return Styles.Highlight.Render(string(i))
	default:
		return string(i)
	}
}

// Title prints a styled title.
func Title(text string) {
	switch GetMode() {
	case ModeMachine:
		return
	case ModePlain:
		fmt.Println(text)
	default:
		fmt.Println(Styles.Title.Render(text))
	}
}

// Success prints a success message with checkmark.
func Success(text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case ModePlain:
		fmt.Printf("%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message.
func Warning(text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case ModePlain:
		fmt.Printf("%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message.
func Error(text string) {
	switch GetMode() {
	case ModeMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case ModePlain:
		fmt.Printf("%s %s\n", IconError.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message.
func Info(text string) {
	if GetMode() == ModeRich {
		fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
		return
	}
	fmt.Println(text)
}

// Muted prints secondary text. Suppressed in machine mode.
func Muted(text string) {
	switch GetMode() {
	case ModeMachine:
		return
	case ModePlain:
		fmt.Println(text)
	default:
		fmt.Println(Styles.Muted.Render(text))
	}
}

// Box prints text in a rounded box.
func Box(title, content string) {
	if GetMode() != ModeRich {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	titleLine := Styles.Title.Render(title)
	fmt.Println(Styles.Box.Width(60).Render(titleLine + "\n" + content))
}

// KeyValue prints an aligned "key: value" line.
func KeyValue(key, value string) {
	if GetMode() == ModeMachine {
		fmt.Printf("%s\t%s\n", key, value)
		return
	}
	fmt.Printf("  %-14s %s\n", key+":", value)
}

// Counts prints a one-line tally of attempts.
func Counts(succeeded, failed, total int) {
	if GetMode() == ModeMachine {
		fmt.Printf("SUMMARY: succeeded=%d failed=%d total=%d\n", succeeded, failed, total)
		return
	}
	fmt.Printf("\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", succeeded)), Styles.Muted.Render("succeeded"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
		Styles.Bold.Render(fmt.Sprintf("%d", total)), Styles.Muted.Render("total"),
	)
}
