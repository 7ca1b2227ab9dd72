// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/wikipath/services/wikipath"
	"github.com/AleutianAI/wikipath/services/wikipath/graph"
)

// Terminal palette.
var (
	colorTeal    = lipgloss.Color("#2CD7C7")
	colorTealDim = lipgloss.Color("#16858E")
	colorSlate   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Arrow   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorSlate),
	Success: lipgloss.NewStyle().Foreground(colorTeal),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Arrow:   lipgloss.NewStyle().Foreground(colorTealDim),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorTealDim).
		Padding(0, 1),
}

func renderSearch(r *wikipath.SearchResponse) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("%s → %s", r.Src.Title, r.Dst.Title)))
	b.WriteString("\n")

	switch r.Outcome {
	case graph.OutcomeSuccess.String():
		noun := "links"
		if r.Length == 1 {
			noun = "link"
		}
		b.WriteString(styles.Success.Render(fmt.Sprintf("%d %s", r.Length, noun)))
		b.WriteString("\n\n")
		for i, p := range r.Path {
			if i > 0 {
				b.WriteString(styles.Arrow.Render("  ↓"))
				b.WriteString("\n")
			}
			b.WriteString(fmt.Sprintf("%s %s\n", styles.Bold.Render(p.Title), styles.Muted.Render(p.URL)))
		}
	case graph.OutcomeNoPath.String():
		b.WriteString(styles.Warning.Render("No path exists."))
		b.WriteString("\n")
	default:
		b.WriteString(styles.Warning.Render(fmt.Sprintf("Gave up after %d rounds.", r.Rounds)))
		b.WriteString("\n")
	}

	meta := fmt.Sprintf("searched %d times, %.2f ms", r.Count, r.DurationMs)
	if r.Cached {
		meta += ", cached"
	}
	b.WriteString(styles.Muted.Render(meta))
	return styles.Box.Render(b.String())
}

func renderRank(r *wikipath.RankResponse) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Top articles by PageRank"))
	b.WriteString("\n")
	for _, p := range r.Pages {
		b.WriteString(fmt.Sprintf("%4d  %-40s %s\n", p.Rank, p.Title, styles.Muted.Render(fmt.Sprintf("%.6f", p.Score))))
	}
	status := fmt.Sprintf("%d iterations", r.Iterations)
	if !r.Converged {
		status += ", not converged"
	}
	b.WriteString(styles.Muted.Render(status))
	return b.String()
}

func renderFarthest(r *wikipath.FarthestResponse) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Farthest from " + r.Dst.Title))
	b.WriteString("\n")
	if r.Distance == 0 {
		b.WriteString(styles.Warning.Render("No article links here."))
		return styles.Box.Render(b.String())
	}
	b.WriteString(styles.Success.Render(fmt.Sprintf("%d links away", r.Distance)))
	b.WriteString("\n\n")
	for _, p := range r.Farthest {
		b.WriteString(fmt.Sprintf("%s %s\n", styles.Bold.Render(p.Title), styles.Muted.Render(p.URL)))
	}
	b.WriteString(styles.Muted.Render(fmt.Sprintf("%d articles can reach it", r.Reachable-1)))
	return styles.Box.Render(b.String())
}

func renderBuild(result *graph.BuildResult, m *graph.Manifest, path string, d time.Duration) string {
	s := result.Stats
	rows := [][2]string{
		{"Articles", fmt.Sprint(s.Nodes)},
		{"Links", fmt.Sprint(s.Edges)},
		{"Redirects resolved", fmt.Sprint(s.ResolvedRedirects)},
		{"Self links dropped", fmt.Sprint(s.SelfLoops)},
		{"Records skipped", fmt.Sprint(s.Skipped())},
		{"Malformed lines", fmt.Sprint(s.MalformedRecords)},
		{"Shards", fmt.Sprint(len(m.Shards))},
		{"Duration", d.Round(time.Millisecond).String()},
	}
	var b strings.Builder
	b.WriteString(styles.Title.Render("Graph built"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%-20s %s\n", r[0], styles.Bold.Render(r[1])))
	}
	b.WriteString(styles.Muted.Render(path))
	return styles.Box.Render(b.String())
}

// describeError adds suggestions to an unresolved endpoint.
func describeError(err error) error {
	var endpointErr *wikipath.EndpointError
	if !errors.As(err, &endpointErr) || len(endpointErr.Suggestions) == 0 {
		return err
	}
	return fmt.Errorf("%w\nDid you mean: %s", err, strings.Join(endpointErr.Suggestions, ", "))
}
