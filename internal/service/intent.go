package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/connexus-ai/gweta-core/internal/cache"
	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers"
)

// heuristicConfidenceFloor is the threshold below which the LLM fallback is
// invoked (spec §4.7: "invoked only when heuristic confidence < 0.8").
const heuristicConfidenceFloor = 0.8

// profileStabilityQueries mirrors memory.hysteresisQueries (spec §4.14's
// 5-query stability window) so the classifier only trusts a profile's
// ExpertiseLevel once it has had time to settle.
const profileStabilityQueries = 5

// ClassifyResult is the output of the two-tier intent classifier.
type ClassifyResult struct {
	Intent     model.Intent
	Complexity model.Complexity
	UserType   model.UserType
	LegalAreas []string
	Confidence float64
	Method     string // "heuristic" | "llm_fallback" | "cached"
}

// intentPattern associates a regex with the intent it signals.
type intentPattern struct {
	intent model.Intent
	re     *regexp.Regexp
}

// patterns are evaluated in order; the first match wins. Ordering matters:
// constitutional/case-law/procedural cues are checked before the broader
// statutory bucket so a query mentioning both a section number and a case
// name is classified by its more specific signal.
var patterns = []intentPattern{
	{model.IntentConstitutional, regexp.MustCompile(`(?i)\bconstitution(al)?\b|\bbill of rights\b|\bchapter\s+4\b`)},
	{model.IntentCaseLaw, regexp.MustCompile(`(?i)\bv\.?\s+[A-Z]|\bcase law\b|\bjudg(e|ment)\b|\bcourt held\b|\bprecedent\b`)},
	{model.IntentProcedural, regexp.MustCompile(`(?i)\bhow do i\b|\bprocedure\b|\bfile (a|an)\b|\bpleadings?\b|\bapplication process\b`)},
	{model.IntentRights, regexp.MustCompile(`(?i)\bright(s)?\s+(to|of)\b|\bentitled\b|\bfreedom of\b`)},
	{model.IntentSummarization, regexp.MustCompile(`(?i)\bsummari[sz]e\b|\boverview of\b|\bexplain\b.*\bin general\b`)},
	{model.IntentStatutory, regexp.MustCompile(`(?i)\bsection\s+\d|\bact\b|\bstatutory instrument\b|\bs\.?\s?\d+\(`)},
}

// conversationalPatterns signal a greeting/chit-chat query with no legal
// content — spec §8's boundary behavior "empty query → conversational".
var conversationalPatterns = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you)\b`)

// professionalIndicators are phrasings that suggest the asker is a legal
// professional rather than a layperson (spec §4.7).
var professionalIndicators = regexp.MustCompile(`(?i)\bsection\s+\d+\(\d+\)\(?[a-z]?\)?|\bpleadings?\b|\bex parte\b|\bratio decidendi\b|\bmutatis mutandis\b|\bobiter\b`)

// legalAreaKeywords maps a coarse legal area label to the keywords that
// signal it, used both for LegalAreas tagging here and reused by the long
// term memory profile's AreaFrequency counters.
var legalAreaKeywords = map[string][]string{
	"labour":        {"dismissal", "employment", "employer", "employee", "wage", "retrenchment"},
	"constitutional": {"constitution", "bill of rights", "fundamental"},
	"criminal":      {"criminal", "offence", "sentence", "bail", "accused"},
	"property":      {"property", "lease", "title deed", "eviction"},
	"family":        {"divorce", "custody", "maintenance", "marriage"},
	"corporate":     {"company", "shareholder", "director", "insolvency"},
}

// IntentClassifier implements the two-tier heuristic+LLM-fallback
// classifier of spec §4.7.
type IntentClassifier struct {
	llm   providers.LLM
	cache *cache.QueryCache
}

// NewIntentClassifier creates an IntentClassifier. cache may be nil to
// disable the intent-cache lookup (treated as always-miss).
func NewIntentClassifier(llm providers.LLM, qcache *cache.QueryCache) *IntentClassifier {
	return &IntentClassifier{llm: llm, cache: qcache}
}

// Classify classifies a query, consulting the intent cache first, then the
// heuristic pass, then the LLM fallback if heuristic confidence is weak. A
// returning user with a stable expertise level biases user_type and default
// complexity per spec §4.7's last paragraph.
func (c *IntentClassifier) Classify(ctx context.Context, query string, profile *model.UserProfile) ClassifyResult {
	normalized := cache.NormalizeQuery(query)

	if strings.TrimSpace(query) == "" {
		return ClassifyResult{
			Intent: model.IntentConversational, Complexity: model.ComplexitySimple,
			UserType: model.UserTypeCitizen, Confidence: 1.0, Method: "heuristic",
		}
	}

	if c.cache != nil {
		if intent, ok := c.cache.GetIntent(ctx, normalized); ok {
			result := classifyHeuristic(query)
			result.Intent = intent
			result.Method = "cached"
			c.biasFromProfile(&result, profile)
			return result
		}
	}

	result := classifyHeuristic(query)
	c.biasFromProfile(&result, profile)

	if result.Confidence >= heuristicConfidenceFloor {
		if c.cache != nil {
			c.cache.SetIntent(ctx, normalized, result.Intent)
		}
		return result
	}

	if c.llm == nil {
		return result
	}

	llmResult, err := c.classifyLLM(ctx, query)
	if err != nil {
		slog.Warn("[DEBUG-INTENT] llm fallback failed, keeping heuristic result", "error", err)
		return result
	}
	llmResult.LegalAreas = result.LegalAreas
	c.biasFromProfile(&llmResult, profile)
	if c.cache != nil {
		c.cache.SetIntent(ctx, normalized, llmResult.Intent)
	}
	return llmResult
}

// complexityRank orders the four complexity buckets so a profile bias can
// raise the default without ever downgrading a complexity the heuristic or
// LLM pass already detected from the query text itself.
var complexityRank = map[model.Complexity]int{
	model.ComplexitySimple:   0,
	model.ComplexityModerate: 1,
	model.ComplexityComplex:  2,
	model.ComplexityExpert:   3,
}

// professionalDefaultComplexity is the floor applied to a stable
// professional's default complexity (spec §4.7): a returning professional
// is assumed to operate at least at "moderate" even on a query whose text
// alone reads as simple.
const professionalDefaultComplexity = model.ComplexityModerate

// biasFromProfile nudges UserType and default Complexity toward a returning
// user's established expertise level, per spec §4.7's "a returning user
// with stable expertise_level... biases user_type and default complexity."
func (c *IntentClassifier) biasFromProfile(r *ClassifyResult, profile *model.UserProfile) {
	if profile == nil || profile.QueryCount < profileStabilityQueries {
		return
	}
	if profile.ExpertiseLevel != model.UserTypeProfessional {
		return
	}
	r.UserType = model.UserTypeProfessional
	if complexityRank[r.Complexity] < complexityRank[professionalDefaultComplexity] {
		r.Complexity = professionalDefaultComplexity
	}
}

// classifyHeuristic is the heuristic pass: pattern matching for intent,
// length/operator-density/vocabulary scoring for complexity, and
// professional-indicator matching for user_type.
func classifyHeuristic(query string) ClassifyResult {
	if conversationalPatterns.MatchString(query) {
		return ClassifyResult{
			Intent: model.IntentConversational, Complexity: model.ComplexitySimple,
			UserType: model.UserTypeCitizen, Confidence: 0.95, Method: "heuristic",
		}
	}

	intent := model.IntentStatutory
	matched := false
	for _, p := range patterns {
		if p.re.MatchString(query) {
			intent = p.intent
			matched = true
			break
		}
	}

	confidence := 0.55
	if matched {
		confidence = 0.85
	}

	complexity := classifyComplexity(query)
	userType := model.UserTypeCitizen
	if professionalIndicators.MatchString(query) {
		userType = model.UserTypeProfessional
		confidence += 0.05
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return ClassifyResult{
		Intent:     intent,
		Complexity: complexity,
		UserType:   userType,
		LegalAreas: detectLegalAreas(query),
		Confidence: confidence,
		Method:     "heuristic",
	}
}

// classifyComplexity scores query complexity by length, operator density
// (conjunctions, citation-like tokens), and vocabulary cues, mapping to one
// of the four buckets that drive the adaptive top-k table (spec §4.5).
func classifyComplexity(query string) model.Complexity {
	words := normalizeForCount(query)
	n := len(words)

	operators := 0
	lower := strings.ToLower(query)
	for _, tok := range []string{" and ", " or ", " but ", " vs ", " versus ", ";", " section ", " s."} {
		operators += strings.Count(lower, tok)
	}

	expertCues := 0
	for _, cue := range []string{"constitutionality", "jurisprudence", "precedent", "ratio decidendi", "mutatis mutandis", "ultra vires"} {
		if strings.Contains(lower, cue) {
			expertCues++
		}
	}

	switch {
	case expertCues > 0 || (n > 40 && operators >= 3):
		return model.ComplexityExpert
	case n > 25 || operators >= 2:
		return model.ComplexityComplex
	case n > 12 || operators >= 1:
		return model.ComplexityModerate
	default:
		return model.ComplexitySimple
	}
}

// detectLegalAreas tags the coarse legal areas a query touches, used both
// to inform retrieval filters and to feed the long-term profile's
// AreaFrequency counters (spec §4.14).
func detectLegalAreas(query string) []string {
	lower := strings.ToLower(query)
	var areas []string
	for area, keywords := range legalAreaKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				areas = append(areas, area)
				break
			}
		}
	}
	return areas
}

// intentLLMResponse is the expected JSON shape from the LLM fallback.
type intentLLMResponse struct {
	Intent     string  `json:"intent"`
	Complexity string  `json:"complexity"`
	UserType   string  `json:"user_type"`
	Confidence float64 `json:"confidence"`
}

const intentLLMSystemPrompt = `Classify the legal question below. Respond as JSON:
{"intent": one of ["constitutional","statutory","case_law","procedural","rights","conversational","summarization"],
 "complexity": one of ["simple","moderate","complex","expert"],
 "user_type": one of ["citizen","professional"],
 "confidence": number in [0,1]}`

func (c *IntentClassifier) classifyLLM(ctx context.Context, query string) (ClassifyResult, error) {
	raw, err := c.llm.Complete(ctx, intentLLMSystemPrompt, query)
	if err != nil {
		return ClassifyResult{}, err
	}
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	var parsed intentLLMResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &parsed); err != nil {
		return ClassifyResult{}, err
	}

	result := ClassifyResult{
		Intent:     model.Intent(parsed.Intent),
		Complexity: model.Complexity(parsed.Complexity),
		UserType:   model.UserType(parsed.UserType),
		Confidence: parsed.Confidence,
		Method:     "llm_fallback",
	}
	if result.Complexity == "" {
		result.Complexity = model.ComplexityModerate
	}
	if result.UserType == "" {
		result.UserType = model.UserTypeCitizen
	}
	return result, nil
}
