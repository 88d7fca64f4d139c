package suggest

type category struct {
	name      string
	keywords  []string
	followups []string
}

// Checked in order; the first category with a matching keyword wins.
var categories = []category{
	{
		name:     "authentication",
		keywords: []string{"login", "sso", "saml", "oauth", "mfa", "authenticate"},
		followups: []string{
			"How do I configure SAML authentication?",
			"What are the requirements for implementing OAuth?",
			"How does Exabeam handle multi-factor authentication?",
			"What are the best practices for SSO implementation?",
		},
	},
	{
		name:     "detection rules",
		keywords: []string{"rule", "detection", "alert", "trigger", "correlation"},
		followups: []string{
			"How do I create a custom detection rule?",
			"What are the components of a detection rule?",
			"How do I test a detection rule before deploying?",
			"What are the most effective detection rules for privilege escalation?",
		},
	},
	{
		name:     "data sources",
		keywords: []string{"source", "ingest", "data", "format", "input"},
		followups: []string{
			"How do I add a new data source?",
			"What are the supported data formats?",
			"How do I troubleshoot data ingestion issues?",
			"What are the requirements for adding a cloud data source?",
		},
	},
	{
		name:     "parsers",
		keywords: []string{"parse", "parser", "extract", "field", "normalize"},
		followups: []string{
			"How do I create a custom parser?",
			"What is the parser validation process?",
			"How do I troubleshoot a parser that isn't working?",
			"What are the best practices for parser optimization?",
		},
	},
	{
		name:     "security",
		keywords: []string{"secure", "threat", "attack", "lateral", "exfiltration"},
		followups: []string{
			"What are the security features in Exabeam?",
			"How does Exabeam detect lateral movement?",
			"What detection capabilities exist for data exfiltration?",
			"How does Exabeam detect account takeover attempts?",
		},
	},
}

var prefixCompletions = map[string][]string{
	"how": {
		"How do I configure SAML authentication?",
		"How do I create a custom parser?",
		"How do I add a new data source?",
		"How does the password reset detection rule work?",
		"How can I optimize query performance?",
		"How do I set up the Okta integration?",
		"How does lateral movement detection work?",
		"How do I troubleshoot data lake connectivity issues?",
	},
	"what": {
		"What are the components of a detection rule?",
		"What is the parser validation process?",
		"What detection capabilities exist for data exfiltration?",
		"What are the supported data formats?",
		"What are the security features in Exabeam?",
		"What are the best practices for SSO implementation?",
		"What events are generated during a password reset?",
	},
	"where": {
		"Where can I find documentation on data sources?",
		"Where are detection rules stored?",
		"Where should I look for audit logs?",
		"Where can I configure authentication settings?",
	},
	"can": {
		"Can Exabeam integrate with Splunk?",
		"Can I create custom dashboards?",
		"Can detection rules be exported?",
		"Can data be encrypted at rest?",
	},
}

var defaultCompletions = []string{
	"How does Exabeam detect threats?",
	"What are the components of Advanced Analytics?",
	"How do I create a custom parser?",
	"What are the best practices for deploying Exabeam?",
	"How can I optimize query performance?",
}

// SeedQuestions returns every curated question, for seeding a phrase corpus.
func SeedQuestions() []string {
	var out []string
	for _, c := range categories {
		out = append(out, c.followups...)
	}
	for _, prefix := range []string{"how", "what", "where", "can"} {
		out = append(out, prefixCompletions[prefix]...)
	}
	out = append(out, defaultCompletions...)
	return dedupe(out, "", 0)
}
