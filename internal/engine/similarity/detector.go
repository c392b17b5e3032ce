// Package similarity finds near-duplicate functions, business-logic blocks
// and API endpoint patterns by comparing new code against an index built
// from parsed analyses. The index is read-only during detection; building
// and querying never touch source files.
package similarity

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"guardrail/internal/engine/parser"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

type MatchType string

const (
	MatchFunctionSignature MatchType = "function-signature"
	MatchSemantic          MatchType = "semantic"
	MatchBusinessLogic     MatchType = "business-logic"
	MatchAPIEndpoint       MatchType = "api-endpoint"
)

// Match is one scored near-duplicate location, ranked by descending
// similarity and capped at Options.MaxResults.
type Match struct {
	FilePath    string
	Symbol      string
	Location    parser.Location
	Similarity  float64
	Type        MatchType
	Description string
	Suggestion  string
}

type Options struct {
	FunctionSignatureThreshold  float64
	SemanticSimilarityThreshold float64
	BusinessLogicThreshold      float64
	MaxResults                  int
	IncludeExternalPackages     bool
}

func DefaultOptions() Options {
	return Options{
		FunctionSignatureThreshold:  0.75,
		SemanticSimilarityThreshold: 0.7,
		BusinessLogicThreshold:      0.6,
		MaxResults:                  10,
	}
}

type entry struct {
	path       string
	def        parser.Definition
	fp         fingerprint
	paramTypes []string
	nameTokens []string
	calls      []string
	isEndpoint bool
}

// Detector indexes parsed files and scores new snippets against them.
// Safe for concurrent queries once indexing is done; Index and Remove take
// the write lock.
type Detector struct {
	opts Options

	mu       sync.RWMutex
	entries  []entry
	critical map[string]bool
}

func NewDetector(opts Options) *Detector {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultOptions().MaxResults
	}
	return &Detector{
		opts:     opts,
		critical: make(map[string]bool),
	}
}

// MarkCritical flags file paths whose business logic weighs heavier in
// business-logic scoring. Typically fed from the graph's critical paths.
func (d *Detector) MarkCritical(paths ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range paths {
		d.critical[util.NormalizePatternPath(p)] = true
	}
}

// Index adds every function and method of an analyzed file to the index.
// Re-indexing a path replaces its previous entries.
func (d *Detector) Index(file *parser.File) {
	if file == nil {
		return
	}
	if !d.opts.IncludeExternalPackages && parser.IsExternalPath(file.Path) {
		return
	}

	fresh := buildEntries(file)

	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.path != file.Path {
			kept = append(kept, e)
		}
	}
	d.entries = append(kept, fresh...)
}

func (d *Detector) Remove(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.path != path {
			kept = append(kept, e)
		}
	}
	d.entries = kept
}

func (d *Detector) IndexedCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

func buildEntries(file *parser.File) []entry {
	var out []entry
	for _, def := range file.Definitions {
		if def.Kind != parser.KindFunction && def.Kind != parser.KindMethod {
			continue
		}
		calls := callsInRange(file, def)
		out = append(out, entry{
			path:       file.Path,
			def:        def,
			fp:         newFingerprint(definitionTokens(def, calls)),
			paramTypes: paramTypeSequence(def),
			nameTokens: tokenize(def.Name),
			calls:      calls,
			isEndpoint: isEndpointDefinition(def, calls),
		})
	}
	return out
}

// callsInRange attributes file-level call references to a definition by its
// line span, preserving source order.
func callsInRange(file *parser.File, def parser.Definition) []string {
	start, end := def.Location.Line, def.EndLine
	var calls []string
	for _, ref := range file.References {
		if ref.Location.Line >= start && (end == 0 || ref.Location.Line <= end) {
			calls = append(calls, ref.Name)
		}
	}
	return calls
}

func definitionTokens(def parser.Definition, calls []string) []string {
	tokens := tokenize(def.Name)
	for _, p := range def.Params {
		tokens = append(tokens, tokenize(p.Name)...)
		tokens = append(tokens, tokenize(p.Type)...)
	}
	tokens = append(tokens, tokenize(def.ReturnType)...)
	for _, c := range calls {
		tokens = append(tokens, tokenize(c)...)
	}
	return tokens
}

func paramTypeSequence(def parser.Definition) []string {
	types := make([]string, 0, len(def.Params))
	for _, p := range def.Params {
		t := strings.ToLower(strings.TrimSpace(p.Type))
		if t == "" {
			t = "_"
		}
		types = append(types, t)
	}
	return types
}

var endpointVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "head": true, "options": true,
	"handlefunc": true, "handle": true, "route": true,
}

// isEndpointDefinition recognizes route registrations: calls shaped like
// app.get(...), router.post(...), http.HandleFunc(...) inside the body.
func isEndpointDefinition(def parser.Definition, calls []string) bool {
	for _, call := range calls {
		parts := strings.Split(call, ".")
		verb := strings.ToLower(parts[len(parts)-1])
		if endpointVerbs[verb] {
			return true
		}
	}
	lower := strings.ToLower(def.Name)
	return strings.Contains(lower, "handler") || strings.Contains(lower, "endpoint")
}

// Detect scores every function in the parsed snippet against the index and
// returns passing matches sorted by descending similarity.
func (d *Detector) Detect(snippet *parser.File) []Match {
	if snippet == nil {
		return nil
	}
	observability.SimilarityQueriesTotal.Inc()

	queries := buildEntries(snippet)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []Match
	for _, q := range queries {
		for _, e := range d.entries {
			if e.path == snippet.Path && e.def.Name == q.def.Name {
				continue
			}
			if m, ok := d.scorePair(q, e); ok {
				matches = append(matches, m)
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].FilePath != matches[j].FilePath {
			return matches[i].FilePath < matches[j].FilePath
		}
		return matches[i].Symbol < matches[j].Symbol
	})
	if len(matches) > d.opts.MaxResults {
		matches = matches[:d.opts.MaxResults]
	}
	return matches
}

// scorePair runs the three strategies on one candidate pair and keeps the
// best score that clears its own threshold.
func (d *Detector) scorePair(q, e entry) (Match, bool) {
	best := Match{Similarity: -1}

	if sig := signatureSimilarity(q, e); sig >= d.opts.FunctionSignatureThreshold && sig > best.Similarity {
		matchType := MatchFunctionSignature
		if q.isEndpoint && e.isEndpoint {
			matchType = MatchAPIEndpoint
		}
		best = Match{
			FilePath:    e.path,
			Symbol:      e.def.Name,
			Location:    e.def.Location,
			Similarity:  sig,
			Type:        matchType,
			Description: fmt.Sprintf("%s closely matches the signature of %s", q.def.Name, e.def.Name),
			Suggestion:  suggestionFor(matchType, e),
		}
	}

	if sem := q.fp.jaccard(e.fp); sem >= d.opts.SemanticSimilarityThreshold && sem > best.Similarity {
		best = Match{
			FilePath:    e.path,
			Symbol:      e.def.Name,
			Location:    e.def.Location,
			Similarity:  sem,
			Type:        MatchSemantic,
			Description: fmt.Sprintf("%s shares most of its vocabulary with %s", q.def.Name, e.def.Name),
			Suggestion:  suggestionFor(MatchSemantic, e),
		}
	}

	if logic, ok := d.logicSimilarity(q, e); ok && logic >= d.opts.BusinessLogicThreshold && logic > best.Similarity {
		best = Match{
			FilePath:    e.path,
			Symbol:      e.def.Name,
			Location:    e.def.Location,
			Similarity:  logic,
			Type:        MatchBusinessLogic,
			Description: fmt.Sprintf("%s repeats the control flow of %s", q.def.Name, e.def.Name),
			Suggestion:  suggestionFor(MatchBusinessLogic, e),
		}
	}

	if best.Similarity < 0 {
		return Match{}, false
	}
	best.Similarity = util.Clamp01(best.Similarity)
	return best, true
}

// signatureSimilarity blends name-token overlap with the normalized edit
// distance over parameter-type sequences. Identical name and parameters
// score 1.0.
func signatureSimilarity(q, e entry) float64 {
	nameSim := tokenOverlap(q.nameTokens, e.nameTokens)

	maxLen := len(q.paramTypes)
	if len(e.paramTypes) > maxLen {
		maxLen = len(e.paramTypes)
	}
	paramSim := 1.0
	if maxLen > 0 {
		dist := editDistance(q.paramTypes, e.paramTypes)
		paramSim = 1 - float64(dist)/float64(maxLen)
	}

	return 0.5*nameSim + 0.5*paramSim
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	inter := 0
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// logicSimilarity matches control-flow shape: call sequence overlap plus
// branch-count closeness, boosted when both files sit on critical paths.
// Pairs where neither side has calls or branches carry no signal and are
// skipped.
func (d *Detector) logicSimilarity(q, e entry) (float64, bool) {
	if len(q.calls) == 0 && len(e.calls) == 0 &&
		q.def.BranchCount == 0 && e.def.BranchCount == 0 {
		return 0, false
	}

	callSim := 0.0
	maxCalls := len(q.calls)
	if len(e.calls) > maxCalls {
		maxCalls = len(e.calls)
	}
	if maxCalls > 0 {
		callSim = float64(longestCommonSubsequence(q.calls, e.calls)) / float64(maxCalls)
	}

	maxBranch := q.def.BranchCount
	if e.def.BranchCount > maxBranch {
		maxBranch = e.def.BranchCount
	}
	branchSim := 1.0
	if maxBranch > 0 {
		diff := q.def.BranchCount - e.def.BranchCount
		if diff < 0 {
			diff = -diff
		}
		branchSim = 1 - float64(diff)/float64(maxBranch)
	}

	score := 0.6*callSim + 0.4*branchSim
	if d.critical[util.NormalizePatternPath(q.path)] && d.critical[util.NormalizePatternPath(e.path)] {
		score *= 1.2
	}
	return util.Clamp01(score), true
}

func suggestionFor(t MatchType, e entry) string {
	switch t {
	case MatchFunctionSignature, MatchSemantic:
		return fmt.Sprintf("Reuse %s from %s instead of adding a duplicate", e.def.Name, e.path)
	case MatchBusinessLogic:
		return fmt.Sprintf("Extract the shared logic of %s in %s into one implementation", e.def.Name, e.path)
	case MatchAPIEndpoint:
		return fmt.Sprintf("An endpoint with this shape already exists in %s", e.path)
	default:
		return ""
	}
}
