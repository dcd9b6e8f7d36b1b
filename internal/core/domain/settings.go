package domain

// TenantSettings holds per-tenant overrides for the retrieval pipeline.
// Nil fields mean "use the service default"; the rows are administered
// outside this subsystem and read here at query time.
type TenantSettings struct {
	TenantID            string
	VectorWeight        *float64
	LexicalWeight       *float64
	RerankWeight        *float64
	SimilarityThreshold *float64
	RerankTopN          *int
	CacheTTLSeconds     *int
	PrioritizeRecent    *bool
}
