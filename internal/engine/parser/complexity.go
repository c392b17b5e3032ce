package parser

import (
	"math"
	"strings"
)

// computeComplexity derives per-file complexity metrics from the extracted
// definitions and raw source. Cyclomatic complexity is one per function plus
// one per branch point; the maintainability index follows the classic
// 171-based formula with volume approximated by LOC, rescaled to [0, 100].
func computeComplexity(file *File, source []byte) Complexity {
	loc := 0
	for _, line := range strings.Split(string(source), "\n") {
		if strings.TrimSpace(line) != "" {
			loc++
		}
	}

	cyclomatic := 0
	for _, def := range file.Definitions {
		if def.Kind == KindFunction || def.Kind == KindMethod {
			cyclomatic += 1 + def.BranchCount
		}
	}

	return Complexity{
		Cyclomatic:           cyclomatic,
		LinesOfCode:          loc,
		MaintainabilityIndex: maintainabilityIndex(cyclomatic, loc),
	}
}

func maintainabilityIndex(cyclomatic, loc int) float64 {
	if loc == 0 {
		return 100
	}
	volume := math.Log(float64(loc) + 1)
	raw := 171 - 5.2*volume - 0.23*float64(cyclomatic) - 16.2*math.Log(float64(loc)+1)
	scaled := raw * 100 / 171
	if scaled < 0 {
		return 0
	}
	if scaled > 100 {
		return 100
	}
	return scaled
}
