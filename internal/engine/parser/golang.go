package parser

import (
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type GoExtractor struct{}

var goBranchKinds = map[string]bool{
	"if_statement":                true,
	"for_statement":               true,
	"expression_switch_statement": true,
	"type_switch_statement":       true,
	"select_statement":            true,
	"case_clause":                 true,
	"communication_case":          true,
}

func (e *GoExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:     filePath,
		Language: "go",
		Module:   moduleNameForPath(filePath),
		ParsedAt: time.Now(),
	}

	ctx := &ExtractionContext{Source: source, File: file}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"package_clause":       e.extractPackage,
		"import_declaration":   e.extractImports,
		"function_declaration": e.extractFunction,
		"method_declaration":   e.extractMethod,
		"type_declaration":     e.extractType,
		"var_declaration":      e.extractVarDecl,
		"const_declaration":    e.extractVarDecl,
		"call_expression":      e.extractCall,
	})
	engine.Walk(ctx, root)

	return file, nil
}

func (e *GoExtractor) extractPackage(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "package_identifier" {
			ctx.File.PackageName = ctx.Text(child)
		}
	}
	return true
}

func (e *GoExtractor) extractImports(ctx *ExtractionContext, node *sitter.Node) bool {
	e.walkImports(ctx, node)
	return true
}

func (e *GoExtractor) walkImports(ctx *ExtractionContext, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		if child.Kind() == "import_spec" {
			var alias, path string
			for j := uint(0); j < child.ChildCount(); j++ {
				spec := child.Child(j)
				kind := spec.Kind()
				if kind == "package_identifier" || kind == "_" || kind == "." {
					alias = ctx.Text(spec)
				} else if kind == "interpreted_string_literal" || kind == "raw_string_literal" {
					path = strings.Trim(ctx.Text(spec), "\"`")
				}
			}
			if path != "" {
				ctx.File.Imports = append(ctx.File.Imports, Import{
					Module:    path,
					RawImport: path,
					Alias:     alias,
					Location:  ctx.Location(child),
				})
			}
		} else {
			e.walkImports(ctx, child)
		}
	}
}

func (e *GoExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	e.extractCallable(ctx, node, KindFunction, "")
	return false // Continue walking into body for call references
}

func (e *GoExtractor) extractMethod(ctx *ExtractionContext, node *sitter.Node) bool {
	receiverType := ""
	if receiver := node.ChildByFieldName("receiver"); receiver != nil {
		receiverType = strings.TrimLeft(normalizeTypeText(ctx.Text(receiver)), "(")
		receiverType = strings.TrimRight(receiverType, ")")
		if idx := strings.LastIndex(receiverType, " "); idx != -1 {
			receiverType = receiverType[idx+1:]
		}
		receiverType = strings.TrimPrefix(receiverType, "*")
	}
	e.extractCallable(ctx, node, KindMethod, receiverType)
	return false
}

func (e *GoExtractor) extractCallable(ctx *ExtractionContext, node *sitter.Node, kind DefinitionKind, receiverType string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)
	if name == "" {
		return
	}

	params := e.extractGoParams(ctx, node.ChildByFieldName("parameters"))
	returnType := ""
	if result := node.ChildByFieldName("result"); result != nil {
		returnType = normalizeTypeText(ctx.Text(result))
	}

	branches, nesting := ctx.CountBranches(node.ChildByFieldName("body"), goBranchKinds)
	loc := ctx.EndLine(node) - ctx.Location(node).Line + 1
	if loc < 1 {
		loc = 1
	}

	displayName := name
	if receiverType != "" {
		displayName = receiverType + "." + name
	}

	ctx.File.Definitions = append(ctx.File.Definitions, Definition{
		Name:           displayName,
		FullName:       ctx.File.Module + "." + displayName,
		Kind:           kind,
		Exported:       isExportedName(name),
		Params:         params,
		ReturnType:     returnType,
		Signature:      signatureString(name, params, returnType),
		ParameterCount: len(params),
		BranchCount:    branches,
		NestingDepth:   nesting,
		LOC:            loc,
		Location:       ctx.Location(node),
		EndLine:        ctx.EndLine(node),
	})
}

func (e *GoExtractor) extractGoParams(ctx *ExtractionContext, params *sitter.Node) []Param {
	if params == nil {
		return nil
	}
	out := make([]Param, 0, params.ChildCount())
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		if child.Kind() != "parameter_declaration" && child.Kind() != "variadic_parameter_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		typeText := ""
		if typeNode != nil {
			typeText = normalizeTypeText(ctx.Text(typeNode))
		}
		variadic := child.Kind() == "variadic_parameter_declaration"

		names := make([]string, 0, 2)
		for j := uint(0); j < child.ChildCount(); j++ {
			sub := child.Child(j)
			if sub.Kind() == "identifier" {
				names = append(names, ctx.Text(sub))
			}
		}
		if len(names) == 0 {
			// Unnamed parameter, type only
			out = append(out, Param{Type: typeText, Optional: variadic})
			continue
		}
		for _, n := range names {
			out = append(out, Param{Name: n, Type: typeText, Optional: variadic})
		}
	}
	return out
}

func (e *GoExtractor) extractType(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "type_spec" {
			e.extractTypeSpec(ctx, child)
		}
	}
	return true
}

func (e *GoExtractor) extractTypeSpec(ctx *ExtractionContext, node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := ctx.Text(nameNode)

	kind := KindType
	typeNode := node.ChildByFieldName("type")
	var fields []Field
	var extends []string
	if typeNode != nil {
		switch typeNode.Kind() {
		case "interface_type":
			kind = KindInterface
			fields, extends = e.extractInterfaceBody(ctx, typeNode)
		case "struct_type":
			fields, extends = e.extractStructBody(ctx, typeNode)
		}
	}

	signature := name
	if typeNode != nil {
		signature += " " + normalizeTypeText(ctx.Text(typeNode))
	}

	ctx.File.Definitions = append(ctx.File.Definitions, Definition{
		Name:      name,
		FullName:  ctx.File.Module + "." + name,
		Kind:      kind,
		Exported:  isExportedName(name),
		Signature: signature,
		Fields:    fields,
		Extends:   extends,
		Location:  ctx.Location(node),
		EndLine:   ctx.EndLine(node),
		LOC:       ctx.EndLine(node) - ctx.Location(node).Line + 1,
	})
}

func (e *GoExtractor) extractStructBody(ctx *ExtractionContext, structType *sitter.Node) ([]Field, []string) {
	body := ctx.ChildByKind(structType, "field_declaration_list")
	if body == nil {
		return nil, nil
	}
	var fields []Field
	var embedded []string
	for i := uint(0); i < body.ChildCount(); i++ {
		decl := body.Child(i)
		if decl.Kind() != "field_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		typeText := ""
		if typeNode != nil {
			typeText = normalizeTypeText(ctx.Text(typeNode))
		}
		named := false
		for j := uint(0); j < decl.ChildCount(); j++ {
			sub := decl.Child(j)
			if sub.Kind() == "field_identifier" {
				named = true
				fields = append(fields, Field{Name: ctx.Text(sub), Type: typeText})
			}
		}
		if !named && typeText != "" {
			// Embedded field behaves like inheritance for compatibility checks.
			embedded = append(embedded, strings.TrimPrefix(typeText, "*"))
		}
	}
	return fields, embedded
}

func (e *GoExtractor) extractInterfaceBody(ctx *ExtractionContext, ifaceType *sitter.Node) ([]Field, []string) {
	var fields []Field
	var embedded []string
	for i := uint(0); i < ifaceType.ChildCount(); i++ {
		member := ifaceType.Child(i)
		switch member.Kind() {
		case "method_elem":
			name := ""
			if n := ctx.ChildByKind(member, "field_identifier"); n != nil {
				name = ctx.Text(n)
			}
			if name != "" {
				fields = append(fields, Field{Name: name, Type: normalizeTypeText(ctx.Text(member))})
			}
		case "type_identifier", "qualified_type", "type_elem":
			embedded = append(embedded, normalizeTypeText(ctx.Text(member)))
		}
	}
	return fields, embedded
}

func (e *GoExtractor) extractVarDecl(ctx *ExtractionContext, node *sitter.Node) bool {
	kind := KindVariable
	if node.Kind() == "const_declaration" {
		kind = KindConstant
	}
	// Only record package-level declarations as definitions.
	if parent := node.Parent(); parent == nil || parent.Kind() != "source_file" {
		return false
	}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Kind() == "var_spec" || n.Kind() == "const_spec" {
			for j := uint(0); j < n.ChildCount(); j++ {
				sub := n.Child(j)
				if sub.Kind() == "identifier" {
					name := ctx.Text(sub)
					if name == "" || name == "_" {
						continue
					}
					ctx.File.Definitions = append(ctx.File.Definitions, Definition{
						Name:      name,
						FullName:  ctx.File.Module + "." + name,
						Kind:      kind,
						Exported:  isExportedName(name),
						Signature: name,
						Location:  ctx.Location(sub),
						EndLine:   ctx.EndLine(sub),
						LOC:       1,
					})
				}
			}
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return true
}

func (e *GoExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	name := ctx.Text(fn)
	if name == "" || name == "_" {
		return false
	}
	ctx.File.References = append(ctx.File.References, Reference{
		Name:     name,
		Location: ctx.Location(node),
	})
	return false
}
