package model

import "time"

// Complexity classifies how demanding a query is to answer, driving the
// adaptive top-k table (§4.5) and the synthesizer's token budget (§4.9).
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityExpert   Complexity = "expert"
)

// UserType distinguishes the register the synthesizer writes in: IRAC-style
// analysis for professional users, plain prose for citizens.
type UserType string

const (
	UserTypeCitizen       UserType = "citizen"
	UserTypeProfessional  UserType = "professional"
)

// Intent is the classified purpose of a query (§4.2 two-tier classifier).
type Intent string

const (
	IntentConstitutional Intent = "constitutional"
	IntentStatutory      Intent = "statutory"
	IntentCaseLaw        Intent = "case_law"
	IntentProcedural     Intent = "procedural"
	IntentRights         Intent = "rights"
	IntentConversational Intent = "conversational"
	IntentSummarization  Intent = "summarization"
)

// Synthesis is the structured answer produced by the synthesizer node
// (§4.9). Citations must be a subset of the bundled_context chunk_ids that
// fed the synthesis call — this is the grounding invariant enforced by the
// Attribution quality checker.
type Synthesis struct {
	TLDR       string     `json:"tldr"`
	KeyPoints  []string   `json:"key_points"`
	Body       string     `json:"body"`
	Citations  []string   `json:"citations"`
}

// AnswerKind tags which variant of Answer is populated, matching the design
// note in spec §9 calling for a typed success/degraded/error result rather
// than an error-code-on-a-success-shape convention.
type AnswerKind string

const (
	AnswerGrounded AnswerKind = "grounded"
	AnswerDegraded AnswerKind = "degraded"
	AnswerError    AnswerKind = "error"
)

// Answer is the terminal result of run_query, its variant selected by Kind:
// a grounded answer carries Synthesis, a degraded one carries
// DegradedReason (and may also carry a Synthesis), and an error carries
// ErrorDetail.
type Answer struct {
	Kind           AnswerKind `json:"kind"`
	Synthesis      *Synthesis `json:"synthesis,omitempty"`
	Citations      []Citation `json:"citations,omitempty"`
	DegradedReason string     `json:"degraded_reason,omitempty"`
	Suggestions    []string   `json:"suggestions,omitempty"`
	ErrorDetail    *ErrorInfo `json:"error,omitempty"`
	QualityConfidence float64 `json:"quality_confidence,omitempty"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Warnings       []string   `json:"warnings,omitempty"`
	TraceID        string     `json:"trace_id"`
	RequestID      string     `json:"request_id"`
}

// ErrorInfo carries the non-stack-trace error surface returned to callers
// (§7): a taxonomy code and a message safe to show the user. The trace and
// request IDs travel on the enclosing Answer, not here.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AgentState is the single-writer, JSON-serializable state object threaded
// through every node of the graph runtime for one request (§3, §5). It must
// stay under 8KiB serialized; bundled_context/selected_chunks are bounded by
// the adaptive top-k table to keep it there.
type AgentState struct {
	RawQuery             string             `json:"raw_query"`
	RewrittenQuery       *string            `json:"rewritten_query,omitempty"`
	SessionID            string             `json:"session_id"`
	UserID               string             `json:"user_id"`
	TraceID              string             `json:"trace_id"`
	RequestID            string             `json:"request_id"`
	Intent               *Intent            `json:"intent,omitempty"`
	Complexity           Complexity         `json:"complexity"`
	UserType             UserType           `json:"user_type"`
	ReasoningFramework   *string            `json:"reasoning_framework,omitempty"`
	LegalAreas           []string           `json:"legal_areas,omitempty"`
	RetrievalTopK        int                `json:"retrieval_top_k"`
	RerankTopK           int                `json:"rerank_top_k"`
	CombinedResults      []RetrievalResult  `json:"combined_results,omitempty"`
	RerankedResults      []RetrievalResult  `json:"reranked_results,omitempty"`
	SelectedChunks       []Chunk            `json:"selected_chunks,omitempty"`
	BundledContext       []Chunk            `json:"bundled_context,omitempty"`
	Synthesis            *Synthesis         `json:"synthesis,omitempty"`
	QualityPassed        *bool              `json:"quality_passed,omitempty"`
	QualityConfidence    *float64           `json:"quality_confidence,omitempty"`
	QualityIssues        []string           `json:"quality_issues,omitempty"`
	RefinementIteration  int                `json:"refinement_iteration"`
	RefinementInstructions []string         `json:"refinement_instructions,omitempty"`
	PriorityFixes        []string           `json:"priority_fixes,omitempty"`
	SuggestedAdditions   []string           `json:"suggested_additions,omitempty"`
	FinalAnswer          *Answer            `json:"final_answer,omitempty"`
	Citations            []Citation         `json:"citations,omitempty"`
	MemoryContext        *string            `json:"memory_context,omitempty"`

	StartedAt time.Time `json:"-"`
}

// NewAgentState seeds the state for a fresh request. Complexity and
// retrieval/rerank top-k are filled in by the intent/complexity node and the
// adaptive top-k table respectively, not here.
func NewAgentState(rawQuery, sessionID, userID, traceID, requestID string) *AgentState {
	return &AgentState{
		RawQuery:  rawQuery,
		SessionID: sessionID,
		UserID:    userID,
		TraceID:   traceID,
		RequestID: requestID,
		UserType:  UserTypeCitizen,
		StartedAt: time.Now(),
	}
}
