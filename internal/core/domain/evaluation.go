package domain

type EvaluationCase struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	ExpectedPage *int   `json:"expected_page"`
}

type EvaluationCaseResult struct {
	EvaluationCase
	RetrievedPages []int `json:"retrieved_pages"`
	Passed         bool  `json:"passed"`
}

type EvaluationReport struct {
	Cases  []EvaluationCaseResult `json:"cases"`
	Passed int                    `json:"passed"`
	Total  int                    `json:"total"`
}

type IndexStats struct {
	Chunks        int `json:"chunks"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Mirrored      int `json:"mirrored"`
}
