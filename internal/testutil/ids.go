package testutil

// FixedIDGenerator returns the same query ID every time.
//
// Unlike engine.FixedGenerator, which returns IDs in sequence and panics
// when exhausted, this generator suits scenarios that issue an unknown
// number of queries and compare output byte for byte.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id. An empty id
// becomes "test-query".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-query"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
