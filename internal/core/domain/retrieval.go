package domain

// Hit is a chunk produced for one retrieve call. Score fields reflect only the
// last source that produced the hit.
type Hit struct {
	Chunk
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	RerankScore     *float64 `json:"rerank_score,omitempty"`
}

func NewDirectHit(chunk Chunk) Hit {
	return Hit{Chunk: chunk}
}

func NewSemanticHit(chunk Chunk, similarity float64) Hit {
	return Hit{Chunk: chunk, SimilarityScore: &similarity}
}

// SynonymRule expands a query with Synonyms when any trigger occurs in it.
type SynonymRule struct {
	Triggers []string `json:"triggers" yaml:"triggers"`
	Synonyms []string `json:"synonyms" yaml:"synonyms"`
}

type RetrieveRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"topk,omitempty"`
	RerankTopK int    `json:"rerank_topk,omitempty"`
}

type RerankStatus string

const (
	RerankApplied     RerankStatus = "applied"
	RerankSkipped     RerankStatus = "skipped"
	RerankDisabled    RerankStatus = "disabled"
	RerankUnavailable RerankStatus = "unavailable"
	RerankFailed      RerankStatus = "failed"
)

type RerankOutcome struct {
	Status RerankStatus `json:"status"`
	Model  string       `json:"model,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// SearchOutcome records one semantic search call for one expansion.
type SearchOutcome struct {
	Query string `json:"query"`
	Hits  int    `json:"hits"`
	Error string `json:"error,omitempty"`
}

func (o SearchOutcome) Failed() bool {
	return o.Error != ""
}

type RetrievalReport struct {
	Identifiers   []string        `json:"identifiers"`
	Expansions    []string        `json:"expansions"`
	DirectMatches int             `json:"direct_matches"`
	Searches      []SearchOutcome `json:"searches"`
	Candidates    int             `json:"candidates"`
	Rerank        RerankOutcome   `json:"rerank"`
	Returned      int             `json:"returned"`
}

func (r RetrievalReport) SemanticFailures() int {
	failed := 0
	for _, s := range r.Searches {
		if s.Failed() {
			failed++
		}
	}
	return failed
}

type RetrievalResult struct {
	Hits   []Hit           `json:"hits"`
	Report RetrievalReport `json:"report"`
}

type Answer struct {
	Text    string          `json:"text"`
	Sources []Hit           `json:"sources"`
	Report  RetrievalReport `json:"report"`
}
