package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// QualityDecision is the routing outcome the quality gate hands to the
// graph runtime (spec §4.10's four sinks).
type QualityDecision string

const (
	DecisionPass            QualityDecision = "pass"
	DecisionRefineSynthesis QualityDecision = "refine_synthesis"
	DecisionRetrieveMore    QualityDecision = "retrieve_more"
	DecisionFail            QualityDecision = "fail"
)

// maxRefinementIterations is the per-request iteration cap (spec §4's graph
// description: "refinement_iteration ≤ 2").
const maxRefinementIterations = 2

// checkerScore is the common shape the three checkers return, grounded on
// the donor's selfrag.go reflection-score pattern.
type checkerScore struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues"`
}

// QualityReport is the aggregate output of the three parallel checkers plus
// the routing decision (spec §4.10).
type QualityReport struct {
	AttributionScore    float64
	UnsupportedStmts    []string
	CoherenceScore      float64
	IncoherentPairs     []string
	RelevanceScore      float64
	IrrelevantChunkIDs  []string
	QualityConfidence   float64
	Decision            QualityDecision
}

// QualityGate runs the three independent checkers in parallel and applies
// the priority-ordered decision function of spec §4.10.
type QualityGate struct {
	llm providers.LLM
}

// NewQualityGate creates a QualityGate.
func NewQualityGate(llm providers.LLM) *QualityGate {
	return &QualityGate{llm: llm}
}

const attributionSystemPrompt = `You verify that every factual statement in the answer below is traceable to the cited context chunks.
Respond as JSON: {"score": number in [0,1], "issues": ["<unsupported statement>", ...]}`

const coherenceSystemPrompt = `You check whether the claims in the answer below contradict each other or the cited source texts.
Respond as JSON: {"score": number in [0,1], "issues": ["<description of incoherent pair>", ...]}`

const relevanceSystemPrompt = `You judge whether the cited context chunks are materially relevant to the query and answer below.
Respond as JSON: {"score": number in [0,1], "issues": ["<chunk_id that is irrelevant>", ...]}`

// Evaluate runs the attribution, coherence, and relevance checkers
// concurrently (spec §4.10: "three independent checkers run in parallel"),
// aggregates them into a weighted confidence, and applies the decision
// function to pick a routing outcome.
func (g *QualityGate) Evaluate(ctx context.Context, query string, synth *model.Synthesis, bundledContext []model.Chunk, complexity model.Complexity, iteration int) (*QualityReport, error) {
	var attr, coherence, relevance checkerScore

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		s, err := g.runChecker(gctx, attributionSystemPrompt, query, synth, bundledContext)
		if err != nil {
			return fmt.Errorf("attribution checker: %w", err)
		}
		attr = s
		return nil
	})
	grp.Go(func() error {
		s, err := g.runChecker(gctx, coherenceSystemPrompt, query, synth, bundledContext)
		if err != nil {
			return fmt.Errorf("coherence checker: %w", err)
		}
		coherence = s
		return nil
	})
	grp.Go(func() error {
		s, err := g.runChecker(gctx, relevanceSystemPrompt, query, synth, bundledContext)
		if err != nil {
			return fmt.Errorf("relevance checker: %w", err)
		}
		relevance = s
		return nil
	})

	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("service.QualityGate.Evaluate: %w", err)
	}

	confidence := 0.5*attr.Score + 0.3*coherence.Score + 0.2*relevance.Score

	report := &QualityReport{
		AttributionScore:   attr.Score,
		UnsupportedStmts:   attr.Issues,
		CoherenceScore:     coherence.Score,
		IncoherentPairs:    coherence.Issues,
		RelevanceScore:     relevance.Score,
		IrrelevantChunkIDs: relevance.Issues,
		QualityConfidence:  confidence,
	}
	report.Decision = decide(report, complexity, iteration)
	return report, nil
}

// decide implements spec §4.10's priority-ordered decision function.
// Priority order, first match wins:
//  1. iteration cap reached -> fail
//  2. source gap (relevance < 0.5, or irrelevant chunks flagged with
//     relevance < 0.6) -> retrieve_more; the number of supporting chunks
//     is not counted
//  3. weak coherence/attribution (0.5 <= confidence < 0.8) -> refine_synthesis
//  4. hard complexity with confidence < 0.7 -> refine_synthesis
//  5. otherwise -> pass
func decide(r *QualityReport, complexity model.Complexity, iteration int) QualityDecision {
	if iteration >= maxRefinementIterations {
		return DecisionFail
	}
	if r.RelevanceScore < 0.5 || (len(r.IrrelevantChunkIDs) > 0 && r.RelevanceScore < 0.6) {
		return DecisionRetrieveMore
	}
	if r.QualityConfidence >= 0.5 && r.QualityConfidence < 0.8 {
		return DecisionRefineSynthesis
	}
	if (complexity == model.ComplexityComplex || complexity == model.ComplexityExpert) && r.QualityConfidence < 0.7 {
		return DecisionRefineSynthesis
	}
	return DecisionPass
}

func (g *QualityGate) runChecker(ctx context.Context, systemPrompt, query string, synth *model.Synthesis, bundledContext []model.Chunk) (checkerScore, error) {
	userPrompt := buildCheckerPrompt(query, synth, bundledContext)
	raw, err := g.llm.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return checkerScore{}, err
	}
	return parseCheckerScore(raw), nil
}

func buildCheckerPrompt(query string, synth *model.Synthesis, bundledContext []model.Chunk) string {
	var sb strings.Builder
	sb.WriteString("=== QUERY ===\n")
	sb.WriteString(query)
	sb.WriteString("\n\n=== ANSWER ===\n")
	sb.WriteString(synth.Body)
	sb.WriteString("\n\n=== CITED CONTEXT ===\n")
	cited := make(map[string]bool, len(synth.Citations))
	for _, id := range synth.Citations {
		cited[id] = true
	}
	for _, c := range bundledContext {
		if cited[c.ChunkID] {
			sb.WriteString(fmt.Sprintf("[chunk_id=%s]\n%s\n\n", c.ChunkID, c.Text))
		}
	}
	return sb.String()
}

// parseCheckerScore parses a checker's JSON response, falling back to a
// conservative mid-range score on parse failure rather than failing the
// quality gate outright — a malformed checker response should not itself
// sink an otherwise-good answer.
func parseCheckerScore(raw string) checkerScore {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var s checkerScore
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return checkerScore{Score: 0.6, Issues: nil}
	}
	if s.Score < 0 {
		s.Score = 0
	}
	if s.Score > 1 {
		s.Score = 1
	}
	return s
}
