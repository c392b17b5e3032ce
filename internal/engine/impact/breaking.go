package impact

import (
	"fmt"
	"sort"
	"strings"

	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/parser"
)

// fanInCritical is the caller count at which a removed export escalates
// from major to critical.
const fanInCritical = 3

// IdentifyBreakingChanges diffs the exported surface of the change's old
// and new revisions. Parse failures degrade to whatever surface could be
// recovered; an unreadable revision contributes an empty contract.
func (a *Analyzer) IdentifyBreakingChanges(change CodeChange) []BreakingChange {
	oldFile := a.parseRevision(change.FilePath, change.OldContent)
	newFile := a.parseRevision(change.FilePath, change.NewContent)

	switch change.Type {
	case ChangeCreate:
		return nil
	case ChangeDelete, ChangeMove:
		// Every export disappears from this path.
		return a.removedExports(change.FilePath, parser.ExtractAPIContract(oldFile), nil)
	}

	oldContract := parser.ExtractAPIContract(oldFile)
	newContract := parser.ExtractAPIContract(newFile)

	var out []BreakingChange
	out = append(out, a.removedExports(change.FilePath, oldContract, &newContract)...)
	out = append(out, a.signatureChanges(change.FilePath, oldContract, newContract)...)
	out = append(out, a.typeChanges(change.FilePath, oldContract, newContract)...)
	return out
}

func (a *Analyzer) parseRevision(path string, content []byte) *parser.File {
	if len(content) == 0 {
		return &parser.File{Path: path}
	}
	file, err := a.parser.ParseFile(path, content)
	if err != nil && file == nil {
		return &parser.File{Path: path}
	}
	return file
}

func (a *Analyzer) removedExports(path string, oldContract parser.APIContract, newContract *parser.APIContract) []BreakingChange {
	var out []BreakingChange

	check := func(defs []parser.Definition, stillThere func(string) bool) {
		for _, def := range defs {
			if stillThere != nil && stillThere(def.Name) {
				continue
			}
			usages := a.callersOf(path, def.Name)
			severity := SeverityMinor
			if len(usages) >= fanInCritical {
				severity = SeverityCritical
			} else if len(usages) >= 1 {
				severity = SeverityMajor
			}
			out = append(out, BreakingChange{
				Type:           breakingTypeFor(def, path),
				Description:    fmt.Sprintf("exported %s %q was removed", def.Kind, def.Name),
				AffectedUsages: usages,
				Severity:       severity,
				AutoFixable:    false,
			})
		}
	}

	if newContract == nil {
		check(oldContract.Functions, nil)
		check(oldContract.Types, nil)
		check(oldContract.Variables, nil)
		return out
	}

	check(oldContract.Functions, func(name string) bool {
		_, ok := newContract.FindFunction(name)
		return ok
	})
	check(oldContract.Types, func(name string) bool {
		_, ok := newContract.FindType(name)
		return ok
	})
	check(oldContract.Variables, func(name string) bool {
		_, ok := newContract.FindVariable(name)
		return ok
	})
	return out
}

// signatureChanges classifies parameter-list changes of surviving exported
// functions. A new required parameter breaks every caller; widening-only
// changes (new optional parameter, parameter type widened) are minor and
// auto-fixable.
func (a *Analyzer) signatureChanges(path string, oldContract, newContract parser.APIContract) []BreakingChange {
	var out []BreakingChange

	for _, oldFn := range oldContract.Functions {
		newFn, ok := newContract.FindFunction(oldFn.Name)
		if !ok {
			continue // reported as a removal
		}

		requiredAdded := false
		narrowed := false
		widened := false

		newRequired := 0
		for _, p := range newFn.Params {
			if !p.Optional {
				newRequired++
			}
		}
		oldRequired := 0
		for _, p := range oldFn.Params {
			if !p.Optional {
				oldRequired++
			}
		}
		if newRequired > oldRequired {
			requiredAdded = true
		}

		for i, oldParam := range oldFn.Params {
			if i >= len(newFn.Params) {
				narrowed = true
				break
			}
			newParam := newFn.Params[i]
			if oldParam.Type == newParam.Type {
				continue
			}
			if parser.TypeAccepts(newParam.Type, oldParam.Type) {
				widened = true
			} else {
				narrowed = true
			}
		}
		if len(newFn.Params) > len(oldFn.Params) && !requiredAdded {
			widened = true
		}

		switch {
		case requiredAdded, narrowed:
			out = append(out, BreakingChange{
				Type: BreakingFunction,
				Description: fmt.Sprintf("signature of %q changed incompatibly: %s -> %s",
					oldFn.Name, oldFn.Signature, newFn.Signature),
				AffectedUsages: a.callersOf(path, oldFn.Name),
				Severity:       SeverityMajor,
				AutoFixable:    false,
			})
		case widened:
			out = append(out, BreakingChange{
				Type: BreakingFunction,
				Description: fmt.Sprintf("signature of %q was widened: %s -> %s",
					oldFn.Name, oldFn.Signature, newFn.Signature),
				AffectedUsages: a.callersOf(path, oldFn.Name),
				Severity:       SeverityMinor,
				AutoFixable:    true,
			})
		}
	}

	return out
}

func (a *Analyzer) typeChanges(path string, oldContract, newContract parser.APIContract) []BreakingChange {
	var out []BreakingChange

	for _, oldType := range oldContract.Types {
		newType, ok := newContract.FindType(oldType.Name)
		if !ok {
			continue
		}
		result := parser.ValidateTypeCompatibility(oldType, newType)
		if result.Compatible {
			continue
		}

		reasons := make([]string, 0, len(result.Issues))
		for _, issue := range result.Issues {
			reasons = append(reasons, issue.Field+": "+issue.Reason)
		}
		usages := a.callersOf(path, oldType.Name)
		severity := SeverityMajor
		if len(usages) >= fanInCritical {
			severity = SeverityCritical
		}
		out = append(out, BreakingChange{
			Type:           breakingTypeFor(oldType, path),
			Description:    fmt.Sprintf("type %q is no longer compatible (%s)", oldType.Name, strings.Join(reasons, "; ")),
			AffectedUsages: usages,
			Severity:       severity,
			AutoFixable:    false,
		})
	}

	return out
}

// callersOf finds every file referencing a symbol of the changed file:
// call/extends/implements edges matching the symbol, falling back to plain
// importers when no symbol-level edge exists.
func (a *Analyzer) callersOf(path, symbol string) []ComponentReference {
	var out []ComponentReference
	seen := make(map[string]bool)

	for _, from := range a.graph.DirectDependents(path) {
		for _, edge := range a.graph.EdgesFrom(from) {
			if edge.To != path {
				continue
			}
			if edge.Kind != graph.EdgeImport && edge.Symbol != symbol {
				continue
			}
			if edge.Kind == graph.EdgeImport && edge.Symbol != "" && edge.Symbol != symbol {
				continue
			}
			if seen[from] {
				continue
			}
			seen[from] = true
			out = append(out, ComponentReference{
				Type:     ComponentFunction,
				Name:     symbol,
				FilePath: from,
				Location: edge.Location,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

func breakingTypeFor(def parser.Definition, path string) BreakingChangeType {
	lower := strings.ToLower(path)
	if strings.Contains(lower, "/api/") || strings.Contains(lower, "/routes/") {
		return BreakingAPI
	}
	if strings.Contains(lower, "/migrations/") || strings.Contains(lower, "/schema/") {
		return BreakingDatabase
	}
	switch def.Kind {
	case parser.KindInterface:
		return BreakingInterface
	case parser.KindType, parser.KindClass:
		return BreakingType
	default:
		return BreakingFunction
	}
}

// mitigationStrategies derives advice from the breaking-change list and
// similarity hits against the new content.
func (a *Analyzer) mitigationStrategies(change CodeChange, breaking []BreakingChange) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, bc := range breaking {
		switch {
		case bc.Type == BreakingAPI:
			add("Introduce a versioned endpoint instead of changing the existing contract")
		case bc.Type == BreakingDatabase:
			add("Ship an expand-and-contract migration instead of an in-place schema change")
		case strings.Contains(bc.Description, "removed"):
			add("Deprecate the export and keep a forwarding alias for one release before removing it")
		case strings.Contains(bc.Description, "incompatibly"):
			add("Add the new parameter as optional with a default instead of required")
		case strings.Contains(bc.Description, "no longer compatible"):
			add("Add new fields as optional to keep the type backward compatible")
		}
	}

	if a.detector != nil && change.Type != ChangeDelete && len(change.NewContent) > 0 {
		if snippet, err := a.parser.ParseFile(change.FilePath, change.NewContent); err == nil || snippet != nil {
			for _, match := range a.detector.Detect(snippet) {
				if match.FilePath == change.FilePath {
					continue // a modified file always resembles itself
				}
				add(fmt.Sprintf("Reuse existing implementation %s at %s instead of duplicating it",
					match.Symbol, match.FilePath))
				break // one reuse hint is enough
			}
		}
	}

	return out
}
