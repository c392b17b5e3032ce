package parser

import (
	"path/filepath"
	"strings"
	"time"

	"guardrail/internal/shared/util"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// TypeScriptExtractor handles typescript, tsx and javascript sources. The
// javascript grammar shares the relevant node kinds minus type annotations,
// so one extractor covers all three.
type TypeScriptExtractor struct {
	Language string
}

var tsBranchKinds = map[string]bool{
	"if_statement":       true,
	"for_statement":      true,
	"for_in_statement":   true,
	"while_statement":    true,
	"do_statement":       true,
	"switch_case":        true,
	"catch_clause":       true,
	"ternary_expression": true,
}

func (e *TypeScriptExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:     filePath,
		Language: e.Language,
		Module:   moduleNameForPath(filePath),
		ParsedAt: time.Now(),
	}

	ctx := &ExtractionContext{Source: source, File: file}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"import_statement":               e.extractImport,
		"export_statement":               e.extractExport,
		"function_declaration":           e.topLevelFunction,
		"generator_function_declaration": e.topLevelFunction,
		"interface_declaration":          e.topLevelInterface,
		"type_alias_declaration":         e.topLevelTypeAlias,
		"class_declaration":              e.topLevelClass,
		"enum_declaration":               e.topLevelEnum,
		"lexical_declaration":            e.topLevelVariable,
		"variable_declaration":           e.topLevelVariable,
		"call_expression":                e.extractCall,
	})
	engine.Walk(ctx, root)

	return file, nil
}

func moduleNameForPath(filePath string) string {
	norm := util.NormalizePatternPath(filePath)
	ext := filepath.Ext(norm)
	return strings.TrimSuffix(norm, ext)
}

func (e *TypeScriptExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	sourceNode := ctx.ChildByKind(node, "string")
	if sourceNode == nil {
		return true
	}
	imp := Import{
		Module:     trimQuoted(ctx.Text(sourceNode)),
		RawImport:  ctx.Text(node),
		IsRelative: isRelativeSpecifier(trimQuoted(ctx.Text(sourceNode))),
		Location:   ctx.Location(node),
	}

	if clause := ctx.ChildByKind(node, "import_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			child := clause.Child(i)
			switch child.Kind() {
			case "identifier": // default import
				imp.Alias = ctx.Text(child)
			case "namespace_import": // import * as name
				if ident := ctx.ChildByKind(child, "identifier"); ident != nil {
					imp.Alias = ctx.Text(ident)
				}
			case "named_imports":
				for j := uint(0); j < child.ChildCount(); j++ {
					spec := child.Child(j)
					if spec.Kind() != "import_specifier" {
						continue
					}
					if name := spec.ChildByFieldName("name"); name != nil {
						imp.Items = append(imp.Items, ctx.Text(name))
					}
				}
			}
		}
	}

	ctx.File.Imports = append(ctx.File.Imports, imp)
	return true
}

func (e *TypeScriptExtractor) extractExport(ctx *ExtractionContext, node *sitter.Node) bool {
	// Re-exports: export { a } from './x'
	if sourceNode := ctx.ChildByKind(node, "string"); sourceNode != nil {
		e.extractImport(ctx, node)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "function_declaration", "generator_function_declaration":
			e.extractFunction(ctx, child, true)
		case "interface_declaration":
			e.extractInterface(ctx, child, true)
		case "type_alias_declaration":
			e.extractTypeAlias(ctx, child, true)
		case "class_declaration":
			e.extractClass(ctx, child, true)
		case "enum_declaration":
			e.extractEnum(ctx, child, true)
		case "lexical_declaration", "variable_declaration":
			e.extractVariable(ctx, child, true)
		case "export_clause":
			// export { a, b }: promote the already-extracted definitions.
			for j := uint(0); j < child.ChildCount(); j++ {
				spec := child.Child(j)
				if spec.Kind() != "export_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				exportedName := ctx.Text(name)
				for k := range ctx.File.Definitions {
					if ctx.File.Definitions[k].Name == exportedName {
						ctx.File.Definitions[k].Exported = true
					}
				}
			}
		}
	}
	// Walk the subtree again for call references inside exported bodies.
	// The export node is fully handled here; returning true stops the outer
	// walker from re-extracting the declarations as unexported.
	engine := NewExtractorEngine(map[string]NodeHandler{
		"call_expression": e.extractCall,
	})
	for i := uint(0); i < node.ChildCount(); i++ {
		engine.Walk(ctx, node.Child(i))
	}
	return true
}

func (e *TypeScriptExtractor) topLevelFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	e.extractFunction(ctx, node, false)
	return false
}

func (e *TypeScriptExtractor) topLevelInterface(ctx *ExtractionContext, node *sitter.Node) bool {
	e.extractInterface(ctx, node, false)
	return true
}

func (e *TypeScriptExtractor) topLevelTypeAlias(ctx *ExtractionContext, node *sitter.Node) bool {
	e.extractTypeAlias(ctx, node, false)
	return true
}

func (e *TypeScriptExtractor) topLevelClass(ctx *ExtractionContext, node *sitter.Node) bool {
	e.extractClass(ctx, node, false)
	return false
}

func (e *TypeScriptExtractor) topLevelEnum(ctx *ExtractionContext, node *sitter.Node) bool {
	e.extractEnum(ctx, node, false)
	return true
}

func (e *TypeScriptExtractor) topLevelVariable(ctx *ExtractionContext, node *sitter.Node) bool {
	e.extractVariable(ctx, node, false)
	return false
}

func (e *TypeScriptExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)

	params := e.extractParams(ctx, node.ChildByFieldName("parameters"))
	returnType := e.returnTypeText(ctx, node)

	body := node.ChildByFieldName("body")
	branches, nesting := ctx.CountBranches(body, tsBranchKinds)

	def := Definition{
		Name:           name,
		FullName:       ctx.File.Module + "." + name,
		Kind:           KindFunction,
		Location:       ctx.Location(node),
		EndLine:        ctx.EndLine(node),
		Exported:       exported,
		Params:         params,
		ReturnType:     returnType,
		Signature:      signatureString(name, params, returnType),
		BranchCount:    branches,
		NestingDepth:   nesting,
		ParameterCount: len(params),
		LOC:            ctx.EndLine(node) - ctx.Location(node).Line + 1,
	}
	ctx.File.Definitions = append(ctx.File.Definitions, def)
}

func (e *TypeScriptExtractor) extractParams(ctx *ExtractionContext, params *sitter.Node) []Param {
	if params == nil {
		return nil
	}
	out := make([]Param, 0, params.ChildCount())
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case "required_parameter", "optional_parameter":
			p := Param{Optional: child.Kind() == "optional_parameter"}
			if pattern := child.ChildByFieldName("pattern"); pattern != nil {
				p.Name = ctx.Text(pattern)
			}
			if typeNode := child.ChildByFieldName("type"); typeNode != nil {
				p.Type = normalizeTypeText(strings.TrimPrefix(ctx.Text(typeNode), ":"))
			}
			if child.ChildByFieldName("value") != nil {
				// Default value makes the parameter optional for callers.
				p.Optional = true
			}
			out = append(out, p)
		case "identifier": // untyped javascript parameter
			out = append(out, Param{Name: ctx.Text(child)})
		case "rest_pattern":
			p := Param{Optional: true}
			if ident := ctx.ChildByKind(child, "identifier"); ident != nil {
				p.Name = "..." + ctx.Text(ident)
			}
			out = append(out, p)
		case "assignment_pattern": // javascript default value
			p := Param{Optional: true}
			if left := child.ChildByFieldName("left"); left != nil {
				p.Name = ctx.Text(left)
			}
			out = append(out, p)
		}
	}
	return out
}

func (e *TypeScriptExtractor) returnTypeText(ctx *ExtractionContext, node *sitter.Node) string {
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		return normalizeTypeText(strings.TrimPrefix(ctx.Text(rt), ":"))
	}
	return ""
}

func (e *TypeScriptExtractor) extractInterface(ctx *ExtractionContext, node *sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)

	def := Definition{
		Name:     name,
		FullName: ctx.File.Module + "." + name,
		Kind:     KindInterface,
		Location: ctx.Location(node),
		EndLine:  ctx.EndLine(node),
		Exported: exported,
		LOC:      ctx.EndLine(node) - ctx.Location(node).Line + 1,
	}

	if heritage := ctx.ChildByKind(node, "extends_type_clause"); heritage != nil {
		for i := uint(0); i < heritage.ChildCount(); i++ {
			child := heritage.Child(i)
			if child.Kind() == "type_identifier" || child.Kind() == "generic_type" {
				def.Extends = append(def.Extends, ctx.Text(child))
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		def.Fields = e.extractObjectFields(ctx, body)
	}

	def.Signature = name
	ctx.File.Definitions = append(ctx.File.Definitions, def)
}

func (e *TypeScriptExtractor) extractObjectFields(ctx *ExtractionContext, body *sitter.Node) []Field {
	fields := make([]Field, 0, body.ChildCount())
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		switch child.Kind() {
		case "property_signature":
			field := Field{}
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				switch sub.Kind() {
				case "property_identifier":
					field.Name = ctx.Text(sub)
				case "?":
					field.Optional = true
				case "type_annotation":
					field.Type = normalizeTypeText(strings.TrimPrefix(ctx.Text(sub), ":"))
				}
			}
			if field.Name != "" {
				fields = append(fields, field)
			}
		case "method_signature":
			field := Field{}
			if name := ctx.ChildByKind(child, "property_identifier"); name != nil {
				field.Name = ctx.Text(name)
			}
			field.Type = normalizeTypeText(ctx.Text(child))
			if field.Name != "" {
				fields = append(fields, field)
			}
		}
	}
	return fields
}

func (e *TypeScriptExtractor) extractTypeAlias(ctx *ExtractionContext, node *sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)

	def := Definition{
		Name:      name,
		FullName:  ctx.File.Module + "." + name,
		Kind:      KindType,
		Location:  ctx.Location(node),
		EndLine:   ctx.EndLine(node),
		Exported:  exported,
		Signature: name,
		LOC:       ctx.EndLine(node) - ctx.Location(node).Line + 1,
	}

	if value := node.ChildByFieldName("value"); value != nil && value.Kind() == "object_type" {
		def.Fields = e.extractObjectFields(ctx, value)
	}

	ctx.File.Definitions = append(ctx.File.Definitions, def)
}

func (e *TypeScriptExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)

	def := Definition{
		Name:      name,
		FullName:  ctx.File.Module + "." + name,
		Kind:      KindClass,
		Location:  ctx.Location(node),
		EndLine:   ctx.EndLine(node),
		Exported:  exported,
		Signature: name,
		LOC:       ctx.EndLine(node) - ctx.Location(node).Line + 1,
	}

	if heritage := ctx.ChildByKind(node, "class_heritage"); heritage != nil {
		for i := uint(0); i < heritage.ChildCount(); i++ {
			clause := heritage.Child(i)
			switch clause.Kind() {
			case "extends_clause":
				for j := uint(0); j < clause.ChildCount(); j++ {
					sub := clause.Child(j)
					if sub.Kind() == "identifier" || sub.Kind() == "member_expression" {
						def.Extends = append(def.Extends, ctx.Text(sub))
					}
				}
			case "implements_clause":
				for j := uint(0); j < clause.ChildCount(); j++ {
					sub := clause.Child(j)
					if sub.Kind() == "type_identifier" || sub.Kind() == "generic_type" {
						def.Implements = append(def.Implements, ctx.Text(sub))
					}
				}
			}
		}
	}

	ctx.File.Definitions = append(ctx.File.Definitions, def)

	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			member := body.Child(i)
			if member.Kind() != "method_definition" {
				continue
			}
			e.extractMethod(ctx, member, name, exported)
		}
	}
}

func (e *TypeScriptExtractor) extractMethod(ctx *ExtractionContext, node *sitter.Node, className string, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)
	params := e.extractParams(ctx, node.ChildByFieldName("parameters"))
	returnType := e.returnTypeText(ctx, node)
	branches, nesting := ctx.CountBranches(node.ChildByFieldName("body"), tsBranchKinds)

	ctx.File.Definitions = append(ctx.File.Definitions, Definition{
		Name:           className + "." + name,
		FullName:       ctx.File.Module + "." + className + "." + name,
		Kind:           KindMethod,
		Location:       ctx.Location(node),
		EndLine:        ctx.EndLine(node),
		Exported:       exported && !strings.HasPrefix(name, "#"),
		Params:         params,
		ReturnType:     returnType,
		Signature:      signatureString(name, params, returnType),
		BranchCount:    branches,
		NestingDepth:   nesting,
		ParameterCount: len(params),
		LOC:            ctx.EndLine(node) - ctx.Location(node).Line + 1,
	})
}

func (e *TypeScriptExtractor) extractEnum(ctx *ExtractionContext, node *sitter.Node, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)
	ctx.File.Definitions = append(ctx.File.Definitions, Definition{
		Name:      name,
		FullName:  ctx.File.Module + "." + name,
		Kind:      KindType,
		Location:  ctx.Location(node),
		EndLine:   ctx.EndLine(node),
		Exported:  exported,
		Signature: name,
		LOC:       ctx.EndLine(node) - ctx.Location(node).Line + 1,
	})
}

func (e *TypeScriptExtractor) extractVariable(ctx *ExtractionContext, node *sitter.Node, exported bool) {
	isConst := strings.HasPrefix(ctx.Text(node), "const")
	for i := uint(0); i < node.ChildCount(); i++ {
		decl := node.Child(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			continue
		}
		name := ctx.Text(nameNode)

		value := decl.ChildByFieldName("value")
		if value != nil && (value.Kind() == "arrow_function" || value.Kind() == "function_expression" || value.Kind() == "function") {
			params := e.extractParams(ctx, value.ChildByFieldName("parameters"))
			returnType := e.returnTypeText(ctx, value)
			branches, nesting := ctx.CountBranches(value.ChildByFieldName("body"), tsBranchKinds)
			ctx.File.Definitions = append(ctx.File.Definitions, Definition{
				Name:           name,
				FullName:       ctx.File.Module + "." + name,
				Kind:           KindFunction,
				Location:       ctx.Location(decl),
				EndLine:        ctx.EndLine(decl),
				Exported:       exported,
				Params:         params,
				ReturnType:     returnType,
				Signature:      signatureString(name, params, returnType),
				BranchCount:    branches,
				NestingDepth:   nesting,
				ParameterCount: len(params),
				LOC:            ctx.EndLine(decl) - ctx.Location(decl).Line + 1,
			})
			continue
		}

		kind := KindVariable
		if isConst {
			kind = KindConstant
		}
		ctx.File.Definitions = append(ctx.File.Definitions, Definition{
			Name:      name,
			FullName:  ctx.File.Module + "." + name,
			Kind:      kind,
			Location:  ctx.Location(decl),
			EndLine:   ctx.EndLine(decl),
			Exported:  exported,
			Signature: name,
			LOC:       1,
		})
	}
}

func (e *TypeScriptExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	name := ctx.Text(fn)
	if name == "" {
		return false
	}
	ctx.File.References = append(ctx.File.References, Reference{
		Name:     name,
		Location: ctx.Location(node),
	})
	return false
}
