package similarity

import (
	"testing"

	"guardrail/internal/engine/parser"
)

func orderTotalFile(path string) *parser.File {
	return &parser.File{
		Path:     path,
		Language: "typescript",
		Definitions: []parser.Definition{
			{
				Name:     "calculateOrderTotal",
				Kind:     parser.KindFunction,
				Exported: true,
				Location: parser.Location{File: path, Line: 1},
				EndLine:  12,
				Params: []parser.Param{
					{Name: "price", Type: "number"},
					{Name: "tax", Type: "number"},
					{Name: "discount", Type: "number", Optional: true},
				},
				ReturnType:     "number",
				ParameterCount: 3,
				BranchCount:    2,
			},
		},
		References: []parser.Reference{
			{Name: "applyTax", Location: parser.Location{File: path, Line: 4}},
			{Name: "applyDiscount", Location: parser.Location{File: path, Line: 8}},
		},
	}
}

func TestExactCopyMatchesAsFunctionSignature(t *testing.T) {
	d := NewDetector(DefaultOptions())
	d.Index(orderTotalFile("src/orders.ts"))

	matches := d.Detect(orderTotalFile("src/checkout.ts"))
	if len(matches) == 0 {
		t.Fatal("identical function must be reported")
	}
	m := matches[0]
	if m.Type != MatchFunctionSignature {
		t.Errorf("match type = %s, want function-signature", m.Type)
	}
	if m.Similarity < 0.9 {
		t.Errorf("similarity = %f, want >= 0.9", m.Similarity)
	}
	if m.FilePath != "src/orders.ts" || m.Symbol != "calculateOrderTotal" {
		t.Errorf("match location wrong: %+v", m)
	}
	if m.Suggestion == "" {
		t.Error("match should carry a reuse suggestion")
	}
}

func TestSimilarityBounds(t *testing.T) {
	opts := DefaultOptions()
	opts.FunctionSignatureThreshold = 0.01
	opts.SemanticSimilarityThreshold = 0.01
	opts.BusinessLogicThreshold = 0.01
	d := NewDetector(opts)
	d.MarkCritical("src/orders.ts", "src/checkout.ts")

	d.Index(orderTotalFile("src/orders.ts"))
	for _, m := range d.Detect(orderTotalFile("src/checkout.ts")) {
		if m.Similarity < 0 || m.Similarity > 1 {
			t.Errorf("similarity %f outside [0,1]", m.Similarity)
		}
	}
}

func TestSelfFileEntriesExcluded(t *testing.T) {
	d := NewDetector(DefaultOptions())
	file := orderTotalFile("src/orders.ts")
	d.Index(file)

	for _, m := range d.Detect(file) {
		if m.FilePath == file.Path && m.Symbol == "calculateOrderTotal" {
			t.Error("a definition must not match itself")
		}
	}
}

func TestMaxResultsCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxResults = 2
	d := NewDetector(opts)

	for _, path := range []string{"a.ts", "b.ts", "c.ts", "d.ts"} {
		d.Index(orderTotalFile(path))
	}

	matches := d.Detect(orderTotalFile("query.ts"))
	if len(matches) != 2 {
		t.Errorf("matches = %d, want capped at 2", len(matches))
	}
	if len(matches) == 2 && matches[0].Similarity < matches[1].Similarity {
		t.Error("matches must be sorted by descending similarity")
	}
}

func TestDissimilarFunctionsBelowThreshold(t *testing.T) {
	d := NewDetector(DefaultOptions())
	d.Index(orderTotalFile("src/orders.ts"))

	query := &parser.File{
		Path:     "src/auth.ts",
		Language: "typescript",
		Definitions: []parser.Definition{
			{
				Name:     "verifySessionToken",
				Kind:     parser.KindFunction,
				Location: parser.Location{File: "src/auth.ts", Line: 1},
				EndLine:  5,
				Params: []parser.Param{
					{Name: "token", Type: "string"},
				},
				ReturnType: "boolean",
			},
		},
	}
	if matches := d.Detect(query); len(matches) != 0 {
		t.Errorf("unrelated function matched: %+v", matches)
	}
}

func TestBusinessLogicMatch(t *testing.T) {
	opts := DefaultOptions()
	// Distinct names and params so the signature strategy stays quiet.
	d := NewDetector(opts)

	indexed := &parser.File{
		Path: "src/billing.ts",
		Definitions: []parser.Definition{
			{
				Name:        "settleInvoice",
				Kind:        parser.KindFunction,
				Location:    parser.Location{File: "src/billing.ts", Line: 1},
				EndLine:     20,
				BranchCount: 3,
				Params:      []parser.Param{{Name: "invoice", Type: "Invoice"}},
			},
		},
		References: []parser.Reference{
			{Name: "loadAccount", Location: parser.Location{Line: 3}},
			{Name: "applyCredit", Location: parser.Location{Line: 7}},
			{Name: "persistLedger", Location: parser.Location{Line: 15}},
		},
	}
	query := &parser.File{
		Path: "src/payouts.ts",
		Definitions: []parser.Definition{
			{
				Name:        "disburseFunds",
				Kind:        parser.KindFunction,
				Location:    parser.Location{File: "src/payouts.ts", Line: 1},
				EndLine:     22,
				BranchCount: 3,
				Params:      []parser.Param{{Name: "batch", Type: "PayoutBatch"}},
			},
		},
		References: []parser.Reference{
			{Name: "loadAccount", Location: parser.Location{Line: 4}},
			{Name: "applyCredit", Location: parser.Location{Line: 9}},
			{Name: "persistLedger", Location: parser.Location{Line: 18}},
		},
	}

	d.Index(indexed)
	matches := d.Detect(query)
	if len(matches) == 0 {
		t.Fatal("matching control flow should be reported")
	}
	if matches[0].Type != MatchBusinessLogic {
		t.Errorf("match type = %s, want business-logic", matches[0].Type)
	}
}

func TestAPIEndpointMatch(t *testing.T) {
	d := NewDetector(DefaultOptions())

	endpoint := func(path, name string) *parser.File {
		return &parser.File{
			Path: path,
			Definitions: []parser.Definition{
				{
					Name:     name,
					Kind:     parser.KindFunction,
					Location: parser.Location{File: path, Line: 1},
					EndLine:  10,
					Params: []parser.Param{
						{Name: "req", Type: "Request"},
						{Name: "res", Type: "Response"},
					},
				},
			},
			References: []parser.Reference{
				{Name: "router.get", Location: parser.Location{Line: 2}},
			},
		}
	}

	d.Index(endpoint("src/routes/users.ts", "getUsersHandler"))
	matches := d.Detect(endpoint("src/routes/accounts.ts", "getUsersHandler"))
	if len(matches) == 0 {
		t.Fatal("duplicate endpoint should be reported")
	}
	if matches[0].Type != MatchAPIEndpoint {
		t.Errorf("match type = %s, want api-endpoint", matches[0].Type)
	}
}

func TestExternalFilesSkippedByDefault(t *testing.T) {
	d := NewDetector(DefaultOptions())
	d.Index(orderTotalFile("node_modules/pkg/index.ts"))
	if d.IndexedCount() != 0 {
		t.Error("external packages must not be indexed by default")
	}

	opts := DefaultOptions()
	opts.IncludeExternalPackages = true
	d = NewDetector(opts)
	d.Index(orderTotalFile("node_modules/pkg/index.ts"))
	if d.IndexedCount() != 1 {
		t.Error("includeExternalPackages should admit vendored code")
	}
}

func TestReindexReplacesEntries(t *testing.T) {
	d := NewDetector(DefaultOptions())
	d.Index(orderTotalFile("src/orders.ts"))
	d.Index(orderTotalFile("src/orders.ts"))
	if d.IndexedCount() != 1 {
		t.Errorf("indexed count = %d, want 1 after re-index", d.IndexedCount())
	}

	d.Remove("src/orders.ts")
	if d.IndexedCount() != 0 {
		t.Error("removed file entries must leave the index")
	}
}
