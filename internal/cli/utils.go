// Package cli renders query responses for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/hyperjump/exasperation/internal/models"
)

// OutputFormat is the format for answer output.
type OutputFormat string

const (
	// OutputText is human-readable text with sources (default).
	OutputText OutputFormat = "text"
	// OutputJSON is the full response as indented JSON.
	OutputJSON OutputFormat = "json"
	// OutputCompact is the answer and one line per source.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat returns the format named s. Unknown names are an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputCompact:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, json or compact)", s)
	}
}

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	answer  = color.New(color.FgGreen, color.Bold).SprintFunc()
	dim     = color.New(color.Faint).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)

// WriteResponse writes response to w in the given format.
func WriteResponse(w io.Writer, response *models.Response, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeCompact(w, response)
		return nil
	default:
		writeText(w, response)
		return nil
	}
}

func writeText(w io.Writer, r *models.Response) {
	fmt.Fprintf(w, "\n%s %s\n", heading("Query:"), r.Query)
	fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("request %s | %s | %d sources in %dms",
		r.RequestID, r.Status, len(r.Sources), r.Metadata.ProcessingTimeMs)))
	for _, wn := range r.Metadata.Warnings {
		fmt.Fprintf(w, "%s\n", warn(fmt.Sprintf("warning [%s]: %s", wn.Component, wn.Message)))
	}

	switch {
	case r.Status == models.StatusNoMatches:
		fmt.Fprintf(w, "\nNo documents matched the query and filters.\n")
	case r.Answer != "":
		fmt.Fprintf(w, "\n%s\n%s\n", answer("Answer:"), r.Answer)
	}

	if len(r.Sources) > 0 {
		fmt.Fprintf(w, "\n%s\n", heading("Sources:"))
		for _, s := range r.Sources {
			writeSource(w, s)
		}
	}
	if len(r.SuggestedQueries) > 0 {
		fmt.Fprintf(w, "\n%s\n", heading("Related questions:"))
		for _, q := range r.SuggestedQueries {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
	fmt.Fprintln(w)
}

func writeSource(w io.Writer, s *models.Source) {
	label := "  "
	if s.CitationIndex > 0 {
		label = fmt.Sprintf("[%d]", s.CitationIndex)
	}
	fmt.Fprintf(w, "%s %s %s\n", label, s.Title, dim(fmt.Sprintf("(%.2f)", s.RelevanceScore)))
	if s.URL != "" {
		fmt.Fprintf(w, "    %s\n", s.URL)
	}
	if m := s.Metadata; m != nil {
		fmt.Fprintf(w, "    %s\n", dim(strings.Join(nonEmpty(m.DocumentType, m.Vendor, m.Product), " / ")))
	}
	fmt.Fprintf(w, "    %s\n", TruncateWords(s.Content, 30))
}

func writeCompact(w io.Writer, r *models.Response) {
	if r.Answer != "" {
		fmt.Fprintln(w, r.Answer)
	} else {
		fmt.Fprintf(w, "(%s)\n", r.Status)
	}
	for _, s := range r.Sources {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", s.CitationIndex, s.RelevanceScore, s.ID, s.Title)
	}
}

func nonEmpty(vals ...string) []string {
	out := vals[:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// PrintResponse prints response to stdout in text format.
func PrintResponse(response *models.Response) {
	_ = WriteResponse(os.Stdout, response, OutputText)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
