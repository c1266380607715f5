// Package model defines the data types shared across the Gweta query
// orchestration core: retrieval chunks, parent documents, citations, and the
// per-request agent state threaded through the graph runtime.
package model

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DocType enumerates the kinds of Zimbabwean legal source documents Gweta
// indexes. Unknown or uncategorized sources use DocTypeOther.
type DocType string

const (
	DocTypeAct          DocType = "act"
	DocTypeSI           DocType = "si"
	DocTypeConstitution DocType = "constitution"
	DocTypeJudgment     DocType = "judgment"
	DocTypeRegulation   DocType = "regulation"
	DocTypeOther        DocType = "other"
)

// Chunk is a single retrievable unit of text, addressed by a deterministic
// content hash so the same span of the same document always yields the same
// chunk_id across re-indexing runs.
type Chunk struct {
	ChunkID      string            `json:"chunk_id"`
	ParentDocID  string            `json:"parent_doc_id"`
	Text         string            `json:"text"`
	DocType      DocType           `json:"doc_type"`
	SectionPath  string            `json:"section_path"`
	StartChar    int               `json:"start_char"`
	EndChar      int               `json:"end_char"`
	NumTokens    int               `json:"num_tokens"`
	Language     string            `json:"language"`
	DateContext  *time.Time        `json:"date_context,omitempty"`
	Entities     []string          `json:"entities,omitempty"`
	SourceURL    string            `json:"source_url"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Score        *float64          `json:"score,omitempty"`
	Confidence   *float64          `json:"confidence,omitempty"`
}

// ComputeChunkID derives a 16-hex-character content address for a chunk from
// its locating fields plus the normalized text. Using xxhash rather than a
// cryptographic hash is deliberate: chunk_id is a content address, not a
// security boundary, so a fast non-cryptographic hash is enough.
func ComputeChunkID(parentDocID, sectionPath string, startChar, endChar int, normalizedText string) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%s", parentDocID, sectionPath, startChar, endChar, normalizedText)
	return fmt.Sprintf("%016x", h.Sum64())
}

// ParentDocument is the full source document a Chunk was extracted from,
// fetched during small-to-big expansion (§4.8) to give the synthesizer wider
// context than the chunk alone.
type ParentDocument struct {
	ParentDocID           string          `json:"parent_doc_id"`
	DocType               DocType         `json:"doc_type"`
	Title                 string          `json:"title"`
	CanonicalCitation      *string         `json:"canonical_citation,omitempty"`
	Language               string          `json:"language"`
	Jurisdiction            string          `json:"jurisdiction"`
	VersionEffectiveDate    *time.Time      `json:"version_effective_date,omitempty"`
	SourceURL               string          `json:"source_url"`
	ContentTree             map[string]any  `json:"content_tree,omitempty"`
	Markdown                string          `json:"markdown,omitempty"`
}

// ZWJurisdiction is the fixed jurisdiction tag for every ParentDocument;
// Gweta covers Zimbabwean statute and case law exclusively (spec §1).
const ZWJurisdiction = "ZW"

// RetrievalResult pairs a Chunk with the score/rank metadata accumulated as
// it passes through lexical/dense search, merge, and rerank.
type RetrievalResult struct {
	Chunk         Chunk   `json:"chunk"`
	LexicalRank   int     `json:"lexical_rank,omitempty"`
	LexicalScore  float64 `json:"lexical_score,omitempty"`
	DenseRank     int     `json:"dense_rank,omitempty"`
	DenseScore    float64 `json:"dense_score,omitempty"`
	RerankScore   float64 `json:"rerank_score,omitempty"`
	Parent        *ParentDocument `json:"-"`
}

// Citation is a source reference attached to a synthesized answer.
type Citation struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Page    *int    `json:"page,omitempty"`
	SHA     *string `json:"sha,omitempty"`
}
