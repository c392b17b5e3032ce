package parser

import (
	"fmt"
	"strings"
)

// CompatibilityIssue describes one structural incompatibility between two
// revisions of a type.
type CompatibilityIssue struct {
	Field  string
	Reason string
}

// CompatibilityResult is the outcome of a structural type diff.
type CompatibilityResult struct {
	Compatible bool
	Issues     []CompatibilityIssue
}

// ValidateTypeCompatibility performs a structural diff between two revisions
// of a type definition. The new revision is compatible when every old field
// still exists with an equal or widened type and no new required field was
// added. The check is reflexive: any type is compatible with itself.
func ValidateTypeCompatibility(oldType, newType Definition) CompatibilityResult {
	result := CompatibilityResult{Compatible: true}

	newFields := make(map[string]Field, len(newType.Fields))
	for _, f := range newType.Fields {
		newFields[f.Name] = f
	}

	for _, oldField := range oldType.Fields {
		newField, ok := newFields[oldField.Name]
		if !ok {
			result.Compatible = false
			result.Issues = append(result.Issues, CompatibilityIssue{
				Field:  oldField.Name,
				Reason: "field removed",
			})
			continue
		}
		if !typeWidensOrEqual(oldField.Type, newField.Type) {
			result.Compatible = false
			result.Issues = append(result.Issues, CompatibilityIssue{
				Field:  oldField.Name,
				Reason: fmt.Sprintf("type narrowed from %q to %q", oldField.Type, newField.Type),
			})
		}
		if oldField.Optional && !newField.Optional {
			result.Compatible = false
			result.Issues = append(result.Issues, CompatibilityIssue{
				Field:  oldField.Name,
				Reason: "optional field became required",
			})
		}
	}

	oldFields := make(map[string]bool, len(oldType.Fields))
	for _, f := range oldType.Fields {
		oldFields[f.Name] = true
	}
	for _, newField := range newType.Fields {
		if oldFields[newField.Name] {
			continue
		}
		if !newField.Optional {
			result.Compatible = false
			result.Issues = append(result.Issues, CompatibilityIssue{
				Field:  newField.Name,
				Reason: "new required field added",
			})
		}
	}

	return result
}

// TypeAccepts reports whether newT accepts every value oldT accepted, per
// the same widening rules used for field compatibility.
func TypeAccepts(newT, oldT string) bool {
	return typeWidensOrEqual(oldT, newT)
}

// typeWidensOrEqual reports whether newT accepts every value oldT accepted.
// Beyond equality it recognizes the catch-all types and union widening
// ("number" -> "number | string"); anything else is treated conservatively
// as a narrowing.
func typeWidensOrEqual(oldT, newT string) bool {
	oldT = normalizeTypeText(oldT)
	newT = normalizeTypeText(newT)
	if oldT == newT {
		return true
	}
	if oldT == "" || newT == "" {
		// Missing annotations on either side: nothing to compare.
		return true
	}
	switch newT {
	case "any", "unknown", "interface{}", "object":
		return true
	}

	oldMembers := unionMembers(oldT)
	newMembers := unionMembers(newT)
	if len(newMembers) > 1 || len(oldMembers) > 1 {
		memberSet := make(map[string]bool, len(newMembers))
		for _, m := range newMembers {
			memberSet[m] = true
		}
		for _, m := range oldMembers {
			if !memberSet[m] {
				return false
			}
		}
		return true
	}

	return false
}

func unionMembers(t string) []string {
	parts := strings.Split(t, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
