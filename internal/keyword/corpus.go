// Package keyword keeps a bleve index of short phrases (document titles, past queries,
// curated questions) used for related-query suggestions and autocomplete.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// Phrase kinds.
const (
	KindTitle    = "title"
	KindQuestion = "question"
)

// Phrase is an indexed phrase and its kind.
type Phrase struct {
	Text string
	Kind string
}

const (
	textField      = "text"
	kindField      = "kind"
	phraseAnalyzer = "phrase"
)

type phraseDoc struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// Corpus is a phrase index backed by bleve.
type Corpus struct {
	index bleve.Index
}

func newMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	// Lowercase only. Stop words and stemming would break prefix matching on
	// questions such as "how do i ...".
	err := im.AddCustomAnalyzer(phraseAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register phrase analyzer: %w", err)
	}
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = phraseAnalyzer
	docMapping.AddFieldMappingsAt(textField, textFieldMapping)
	docMapping.AddFieldMappingsAt(kindField, bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("phrase", docMapping)
	im.DefaultType = "phrase"
	im.DefaultMapping = docMapping
	return im, nil
}

// NewCorpus opens the index at path, creating it if missing. An empty path gives a memory-only index.
func NewCorpus(path string) (*Corpus, error) {
	im, err := newMapping()
	if err != nil {
		return nil, err
	}
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory phrase index: %w", err)
		}
		return &Corpus{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open phrase index: %w", openErr)
		}
		return &Corpus{index: index}, nil
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create phrase index: %w", err)
	}
	return &Corpus{index: index}, nil
}

// Add indexes text under id, replacing any previous phrase with that id.
func (c *Corpus) Add(ctx context.Context, id, text, kind string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.index.Index(id, phraseDoc{Text: text, Kind: kind})
}

// Seed indexes phrases in one batch. IDs are derived from kind and text, so seeding twice is idempotent.
func (c *Corpus) Seed(ctx context.Context, phrases []string, kind string) error {
	batch := c.index.NewBatch()
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := batch.Index(PhraseID(kind, p), phraseDoc{Text: p, Kind: kind}); err != nil {
			return fmt.Errorf("seed phrase %q: %w", p, err)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	return c.index.Batch(batch)
}

// PhraseID is the document ID used for a seeded phrase.
func PhraseID(kind, text string) string {
	return kind + ":" + strings.ToLower(strings.TrimSpace(text))
}

// Related returns phrases sharing terms with text, best match first.
func (c *Corpus) Related(ctx context.Context, text string, limit int) ([]Phrase, error) {
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return nil, nil
	}
	q := bleve.NewMatchQuery(text)
	q.SetField(textField)
	return c.search(ctx, q, limit)
}

// Complete returns phrases whose words start with the terms of partial. Every complete
// term must match and the last term is treated as a prefix. When nothing matches, the
// last term is retried with edit distance 1.
func (c *Corpus) Complete(ctx context.Context, partial string, limit int) ([]Phrase, error) {
	terms := strings.Fields(strings.ToLower(partial))
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	last := terms[len(terms)-1]
	head := strings.Join(terms[:len(terms)-1], " ")

	prefix := bleve.NewPrefixQuery(last)
	prefix.SetField(textField)
	out, err := c.search(ctx, withHead(head, prefix), limit)
	if err != nil || len(out) > 0 || len(last) < 3 {
		return out, err
	}

	fuzzy := bleve.NewFuzzyQuery(last)
	fuzzy.SetFuzziness(1)
	fuzzy.SetField(textField)
	return c.search(ctx, withHead(head, fuzzy), limit)
}

func withHead(head string, tail blevequery.Query) blevequery.Query {
	if head == "" {
		return tail
	}
	mq := bleve.NewMatchQuery(head)
	mq.SetField(textField)
	mq.SetOperator(blevequery.MatchQueryOperatorAnd)
	return bleve.NewConjunctionQuery(mq, tail)
}

func (c *Corpus) search(ctx context.Context, q blevequery.Query, limit int) ([]Phrase, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{textField, kindField}
	req.SortBy([]string{"-_score", "_id"})
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("phrase search failed: %w", err)
	}
	out := make([]Phrase, 0, len(res.Hits))
	for _, hit := range res.Hits {
		text, _ := hit.Fields[textField].(string)
		if text == "" {
			continue
		}
		kind, _ := hit.Fields[kindField].(string)
		out = append(out, Phrase{Text: text, Kind: kind})
	}
	return out, nil
}

// DocCount returns the number of indexed phrases.
func (c *Corpus) DocCount() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the index.
func (c *Corpus) Close() error {
	return c.index.Close()
}
