package parser

import (
	"strings"
	"unicode"
)

func trimQuoted(value string) string {
	value = strings.TrimSpace(value)
	return strings.Trim(value, "\"'`")
}

func splitAndTrim(value, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func isExportedName(name string) bool {
	if name == "" {
		return false
	}
	first := rune(name[0])
	return unicode.IsUpper(first)
}

func appendUnique(values []string, seen map[string]bool, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return values
	}
	if seen[value] {
		return values
	}
	seen[value] = true
	return append(values, value)
}

// isRelativeSpecifier reports whether a JS/TS import specifier addresses a
// file relative to the importing module.
func isRelativeSpecifier(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".."
}

// normalizeTypeText collapses whitespace in a declared type annotation so
// signature comparisons are layout-insensitive.
func normalizeTypeText(value string) string {
	fields := strings.Fields(value)
	return strings.Join(fields, " ")
}

// signatureString renders a canonical "name(t1, t2?) -> ret" form shared by
// every extractor; the impact analyzer compares these across revisions.
func signatureString(name string, params []Param, returnType string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, param := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		if param.Type != "" {
			b.WriteString(param.Type)
		} else {
			b.WriteString("_")
		}
		if param.Optional {
			b.WriteByte('?')
		}
	}
	b.WriteByte(')')
	if returnType != "" {
		b.WriteString(" -> ")
		b.WriteString(returnType)
	}
	return b.String()
}
