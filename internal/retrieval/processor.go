package retrieval

import (
	"regexp"
	"strings"

	"github.com/hyperjump/exasperation/pkg/utils"
)

type expansion struct {
	term    *regexp.Regexp
	phrases []string
}

func wordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
}

var acronymExpansions = []expansion{
	{wordPattern("ueba"), []string{"user and entity behavior analytics"}},
	{wordPattern("siem"), []string{"security information and event management"}},
	{wordPattern("soar"), []string{"security orchestration automation and response"}},
	{wordPattern("edr"), []string{"endpoint detection and response"}},
	{wordPattern("xdr"), []string{"extended detection and response"}},
	{wordPattern("ndr"), []string{"network detection and response"}},
	{wordPattern("mfa"), []string{"multi-factor authentication"}},
	{wordPattern("iam"), []string{"identity and access management"}},
	{wordPattern("pam"), []string{"privileged access management"}},
	{wordPattern("dlp"), []string{"data loss prevention"}},
}

var productAliases = []expansion{
	{wordPattern("advanced analytics"), []string{"aa", "analytics", "exabeam analytics"}},
	{wordPattern("data lake"), []string{"dl", "edl", "exabeam data lake"}},
	{wordPattern("cloud platform"), []string{"ecp", "platform", "cloud security"}},
	{wordPattern("case management"), []string{"ecm", "case manager", "incident management"}},
	{wordPattern("entity analytics"), []string{"ea", "entity behavior", "entity profiling"}},
	{wordPattern("threat hunter"), []string{"th", "threat hunting", "hunting"}},
	{wordPattern("incident responder"), []string{"ir", "incident response", "response"}},
	{wordPattern("threat detection"), []string{"td", "detection", "detection rules"}},
}

// Processor prepares query text for embedding.
type Processor struct {
	expand bool
}

// NewProcessor creates a processor. When expand is false, ForEmbedding only normalizes.
func NewProcessor(expand bool) *Processor {
	return &Processor{expand: expand}
}

// Normalize trims the text and collapses runs of whitespace.
func Normalize(text string) string {
	return utils.CollapseWhitespace(text)
}

// ForEmbedding returns the normalized text with product aliases and security
// acronym expansions appended. Phrases already present are not repeated.
func (p *Processor) ForEmbedding(text string) string {
	text = Normalize(text)
	if !p.expand || text == "" {
		return text
	}
	lower := strings.ToLower(text)
	var extra []string
	add := func(list []expansion) {
		for _, e := range list {
			if !e.term.MatchString(lower) {
				continue
			}
			for _, phrase := range e.phrases {
				if !strings.Contains(lower, phrase) {
					extra = append(extra, phrase)
				}
			}
		}
	}
	add(productAliases)
	add(acronymExpansions)
	if len(extra) == 0 {
		return text
	}
	return text + " " + strings.Join(extra, " ")
}
