package synthesis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/exasperation/internal/llm"
	"github.com/hyperjump/exasperation/internal/models"
)

// PromptType selects the user prompt template.
type PromptType string

const (
	PromptStandard  PromptType = "standard"
	PromptTechnical PromptType = "technical"
	PromptMitre     PromptType = "mitre"
)

var (
	mitreTerms     = []string{"mitre", "att&ck", "technique", "tactics"}
	technicalTerms = []string{
		"config", "configuration", "setting", "parameter", "implementation",
		"parser", "field", "how to", "setup", "code", "rule", "syntax",
	}
	techniqueID = regexp.MustCompile(`\bt\d{4}(?:\.\d{1,3})?\b|\bt1\b`)
)

const systemPrompt = `You are an assistant for security product documentation.

Guidelines:
1. Answer only from the numbered context entries provided.
2. Cite every entry you use with its number in square brackets, for example [1] or [1, 3].
3. Never cite a number that does not appear in the context.
4. If the context does not contain the answer, say so instead of guessing.
5. Be specific and technically precise.`

var templates = map[PromptType]string{
	PromptStandard: `Answer the question using ONLY the context below.

Context:
%s

Question: %s`,
	PromptTechnical: `Answer the technical question using ONLY the context below.
Include specific settings, parameters and configuration details from the context, using code blocks or tables where they help.

Context:
%s

Question: %s`,
	PromptMitre: `Answer the MITRE ATT&CK question using ONLY the context below.
Include the technique IDs and tactics the context mentions, and how they are detected.

Context:
%s

Question: %s`,
}

// DetectPromptType classifies a query by keyword. MITRE indicators win over technical ones.
func DetectPromptType(query string) PromptType {
	lower := strings.ToLower(query)
	for _, term := range mitreTerms {
		if strings.Contains(lower, term) {
			return PromptMitre
		}
	}
	if techniqueID.MatchString(lower) {
		return PromptMitre
	}
	for _, term := range technicalTerms {
		if strings.Contains(lower, term) {
			return PromptTechnical
		}
	}
	return PromptStandard
}

// BuildPrompt renders the system and user prompts for query over w.
func BuildPrompt(query string, w *models.ContextWindow) (llm.Prompt, PromptType) {
	pt := DetectPromptType(query)
	return llm.Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf(templates[pt], FormatContext(w), query),
	}, pt
}

// FormatContext renders each entry as "[n] Title (Source: ..., Type: ..., Vendor: ..., Product: ...)"
// followed by its content. Empty attributes are omitted.
func FormatContext(w *models.ContextWindow) string {
	if w.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range w.Entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		c := e.Candidate.Chunk
		title := c.Title
		if title == "" {
			title = c.DocumentID
		}
		fmt.Fprintf(&b, "[%d] %s", e.Index, title)

		var attrs []string
		for _, kv := range [][2]string{
			{"Source", c.URL},
			{"Type", c.Metadata.DocumentType},
			{"Vendor", c.Metadata.Vendor},
			{"Product", c.Metadata.Product},
		} {
			if kv[1] != "" {
				attrs = append(attrs, kv[0]+": "+kv[1])
			}
		}
		if len(attrs) > 0 {
			b.WriteString(" (" + strings.Join(attrs, ", ") + ")")
		}
		b.WriteString("\n")
		b.WriteString(c.Content)
	}
	return b.String()
}
