package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/models"
)

func init() {
	color.NoColor = true
}

func sampleResponse() *models.Response {
	return &models.Response{
		RequestID: "req-1",
		Query:     "How do I detect password reset abuse?",
		Answer:    "Use the Azure AD use case [1] with the Okta rule [2].",
		Citations: []int{1, 2},
		Sources: []*models.Source{
			{ID: "ms-uc", ChunkID: "ms-uc#0", Title: "Password reset abuse", URL: "https://docs.example/ms-uc",
				Content: "Detect bursts of self-service password resets.", RelevanceScore: 0.92, CitationIndex: 1,
				Metadata: &models.SourceMetadata{DocumentType: "use_case", Vendor: "microsoft", Product: "azure_ad"}},
			{ID: "okta-rule", ChunkID: "okta-rule#0", Title: "Okta reset rule", Content: "Rule body.", RelevanceScore: 0.88, CitationIndex: 2},
			{ID: "okta-parser", ChunkID: "okta-parser#0", Title: "Okta parser", Content: "Parser body.", RelevanceScore: 0.81},
		},
		SuggestedQueries: []string{"Tell me more about Okta reset rule"},
		Status:           models.StatusComplete,
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" compact ", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteResponse_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResponse(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteResponse(json): %v", err)
	}
	var decoded models.Response
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.RequestID != "req-1" || len(decoded.Sources) != 3 || decoded.Sources[0].CitationIndex != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteResponse_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResponse(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Answer:",
		"[1] Password reset abuse (0.92)",
		"[2] Okta reset rule",
		"use_case / microsoft / azure_ad",
		"Related questions:",
		"Tell me more about Okta reset rule",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[3]") {
		t.Errorf("source outside the context window must not be numbered:\n%s", out)
	}
}

func TestWriteResponse_textDegraded(t *testing.T) {
	r := sampleResponse()
	r.Answer = ""
	r.Status = models.StatusPartialDegradation
	r.Metadata.Warnings = []models.Warning{{
		Code:      apperrors.ErrorTypeSynthesisUnavailable,
		Component: "synthesizer",
		Message:   "answer generation failed; returning sources only",
	}}
	var buf bytes.Buffer
	_ = WriteResponse(&buf, r, OutputText)
	out := buf.String()
	if !strings.Contains(out, "warning [synthesizer]") {
		t.Errorf("missing warning line:\n%s", out)
	}
	if strings.Contains(out, "Answer:") {
		t.Errorf("degraded response should not print an answer:\n%s", out)
	}
}

func TestWriteResponse_textNoMatches(t *testing.T) {
	r := &models.Response{Query: "q", Status: models.StatusNoMatches}
	var buf bytes.Buffer
	_ = WriteResponse(&buf, r, OutputText)
	if !strings.Contains(buf.String(), "No documents matched") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteResponse_compact(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteResponse(&buf, sampleResponse(), OutputCompact)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if lines[1] != "1\t0.9200\tms-uc\tPassword reset abuse" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[3], "0\t") {
		t.Errorf("uncited source line = %q", lines[3])
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"multibyte", "日本語のテキスト", 3, "日本語..."},
		{"maxLen zero", "ab", 0, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.s, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}

func TestPrintResponse(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
		_ = w.Close()
	}()
	PrintResponse(sampleResponse())
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if !strings.Contains(buf.String(), "Password reset abuse") {
		t.Errorf("PrintResponse should write to stdout; got %q", buf.String())
	}
}
