package parser

import "testing"

func TestComputeComplexityEmptySource(t *testing.T) {
	file := &File{}
	c := computeComplexity(file, nil)
	if c.LinesOfCode != 0 {
		t.Errorf("loc = %d, want 0", c.LinesOfCode)
	}
	if c.MaintainabilityIndex != 100 {
		t.Errorf("empty file maintainability = %f, want 100", c.MaintainabilityIndex)
	}
}

func TestComputeComplexityCountsBranches(t *testing.T) {
	file := &File{
		Definitions: []Definition{
			{Name: "a", Kind: KindFunction, BranchCount: 3},
			{Name: "b", Kind: KindMethod, BranchCount: 1},
			{Name: "T", Kind: KindType, BranchCount: 9}, // non-callables do not count
		},
	}
	source := []byte("line1\n\nline2\nline3\n")
	c := computeComplexity(file, source)
	if c.Cyclomatic != 6 {
		t.Errorf("cyclomatic = %d, want 6", c.Cyclomatic)
	}
	if c.LinesOfCode != 3 {
		t.Errorf("loc = %d, want 3", c.LinesOfCode)
	}
}

func TestMaintainabilityIndexBounds(t *testing.T) {
	cases := []struct {
		cyclomatic int
		loc        int
	}{
		{0, 1},
		{5, 120},
		{400, 20000},
	}
	for _, tc := range cases {
		mi := maintainabilityIndex(tc.cyclomatic, tc.loc)
		if mi < 0 || mi > 100 {
			t.Errorf("maintainabilityIndex(%d, %d) = %f out of [0, 100]",
				tc.cyclomatic, tc.loc, mi)
		}
	}
}

func TestMaintainabilityIndexDecreasesWithSize(t *testing.T) {
	small := maintainabilityIndex(2, 50)
	large := maintainabilityIndex(80, 5000)
	if large >= small {
		t.Errorf("larger, branchier files must score lower: small=%f large=%f", small, large)
	}
}
