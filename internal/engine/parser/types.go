package parser

import (
	"time"
)

// File is the structured analysis of one source file: everything the graph
// builder, similarity index and impact analyzer need to know about it.
type File struct {
	Path         string
	Language     string
	Module       string // Fully qualified module name
	PackageName  string // Local package/module name
	Imports      []Import
	Definitions  []Definition
	References   []Reference // Function/symbol calls
	Dependencies []string    // Resolved file paths, filled by the resolver
	LocalSymbols []string    // Variables defined in local scope (vars, params, self)
	Complexity   Complexity
	ParseFailed  bool   // Syntactically invalid source; analysis is partial
	ParseNote    string // Human-readable degradation note when ParseFailed
	ParsedAt     time.Time
}

// Exports returns the exported definitions in declaration order.
func (f *File) Exports() []Definition {
	out := make([]Definition, 0, len(f.Definitions))
	for _, def := range f.Definitions {
		if def.Exported {
			out = append(out, def)
		}
	}
	return out
}

// Functions returns function and method definitions in declaration order.
func (f *File) Functions() []Definition {
	out := make([]Definition, 0, len(f.Definitions))
	for _, def := range f.Definitions {
		if def.Kind == KindFunction || def.Kind == KindMethod {
			out = append(out, def)
		}
	}
	return out
}

// Types returns type, interface and class definitions in declaration order.
func (f *File) Types() []Definition {
	out := make([]Definition, 0, len(f.Definitions))
	for _, def := range f.Definitions {
		if def.Kind == KindType || def.Kind == KindInterface || def.Kind == KindClass {
			out = append(out, def)
		}
	}
	return out
}

type Import struct {
	Module     string   // Imported module specifier as written
	RawImport  string   // Original import string
	Alias      string   // Optional alias
	Items      []string // For "from X import Y, Z" / "import { Y, Z }"
	IsRelative bool     // Package-relative specifier ("./x", "../y")
	Location   Location
}

type Definition struct {
	Name       string
	FullName   string // module.function or package.Type
	Kind       DefinitionKind
	Location   Location
	EndLine    int // Last source line of the definition body
	Exported   bool
	Signature  string // Lightweight declaration signature for cross-language comparisons
	Params     []Param
	ReturnType string
	Fields     []Field  // For type/interface/class definitions
	Extends    []string // Parent types/classes
	Implements []string // Implemented interfaces
	// Heuristic complexity metrics used for risk and hotspot ranking.
	BranchCount    int
	ParameterCount int
	NestingDepth   int
	LOC            int
}

type Param struct {
	Name     string
	Type     string // Declared or inferred; empty when unknown
	Optional bool   // Optional parameter or one with a default value
}

type Field struct {
	Name     string
	Type     string
	Optional bool
}

type Reference struct {
	Name     string
	FullName string // Resolved if possible
	Location Location
	Resolved bool // Did we find the definition?
}

// Complexity summarizes per-file complexity metrics. MaintainabilityIndex is
// normalized to [0, 100], higher is easier to maintain.
type Complexity struct {
	Cyclomatic           int
	LinesOfCode          int
	MaintainabilityIndex float64
}

type DefinitionKind int

const (
	KindFunction DefinitionKind = iota
	KindClass
	KindMethod
	KindVariable
	KindConstant
	KindType
	KindInterface
)

func (k DefinitionKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindVariable:
		return "variable"
	case KindConstant:
		return "constant"
	case KindType:
		return "type"
	case KindInterface:
		return "interface"
	}
	return "unknown"
}

type Location struct {
	File   string
	Line   int
	Column int
}
