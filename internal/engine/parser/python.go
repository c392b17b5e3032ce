package parser

import (
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type PythonExtractor struct{}

var pyBranchKinds = map[string]bool{
	"if_statement":           true,
	"for_statement":          true,
	"while_statement":        true,
	"except_clause":          true,
	"conditional_expression": true,
	"case_clause":            true,
}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:     filePath,
		Language: "python",
		Module:   moduleNameForPath(filePath),
		ParsedAt: time.Now(),
	}

	ctx := &ExtractionContext{Source: source, File: file}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"import_statement":      e.extractImport,
		"import_from_statement": e.extractFromImport,
		"function_definition":   e.extractFunction,
		"class_definition":      e.extractClass,
		"call":                  e.extractCall,
	})
	engine.Walk(ctx, root)

	return file, nil
}

func pythonExported(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_")
}

func (e *PythonExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name":
			ctx.File.Imports = append(ctx.File.Imports, Import{
				Module:    ctx.Text(child),
				RawImport: ctx.Text(node),
				Location:  ctx.Location(node),
			})
		case "aliased_import":
			imp := Import{RawImport: ctx.Text(node), Location: ctx.Location(node)}
			if name := child.ChildByFieldName("name"); name != nil {
				imp.Module = ctx.Text(name)
			}
			if alias := child.ChildByFieldName("alias"); alias != nil {
				imp.Alias = ctx.Text(alias)
			}
			ctx.File.Imports = append(ctx.File.Imports, imp)
		}
	}
	return true
}

func (e *PythonExtractor) extractFromImport(ctx *ExtractionContext, node *sitter.Node) bool {
	imp := Import{RawImport: ctx.Text(node), Location: ctx.Location(node)}
	if moduleName := node.ChildByFieldName("module_name"); moduleName != nil {
		imp.Module = ctx.Text(moduleName)
		imp.IsRelative = strings.HasPrefix(imp.Module, ".")
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "dotted_name" && ctx.Text(child) != imp.Module {
			imp.Items = append(imp.Items, ctx.Text(child))
		}
		if child.Kind() == "aliased_import" {
			if name := child.ChildByFieldName("name"); name != nil {
				imp.Items = append(imp.Items, ctx.Text(name))
			}
		}
	}
	ctx.File.Imports = append(ctx.File.Imports, imp)
	return true
}

func (e *PythonExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := ctx.Text(nameNode)

	kind := KindFunction
	displayName := name
	if className := enclosingPythonClass(ctx, node); className != "" {
		kind = KindMethod
		displayName = className + "." + name
	}

	params := e.extractPyParams(ctx, node.ChildByFieldName("parameters"))
	returnType := ""
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		returnType = normalizeTypeText(ctx.Text(rt))
	}
	branches, nesting := ctx.CountBranches(node.ChildByFieldName("body"), pyBranchKinds)

	ctx.File.Definitions = append(ctx.File.Definitions, Definition{
		Name:           displayName,
		FullName:       ctx.File.Module + "." + displayName,
		Kind:           kind,
		Exported:       pythonExported(name),
		Params:         params,
		ReturnType:     returnType,
		Signature:      signatureString(name, params, returnType),
		ParameterCount: len(params),
		BranchCount:    branches,
		NestingDepth:   nesting,
		LOC:            ctx.EndLine(node) - ctx.Location(node).Line + 1,
		Location:       ctx.Location(node),
		EndLine:        ctx.EndLine(node),
	})
	return false
}

func enclosingPythonClass(ctx *ExtractionContext, node *sitter.Node) string {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == "class_definition" {
			if name := p.ChildByFieldName("name"); name != nil {
				return ctx.Text(name)
			}
		}
	}
	return ""
}

func (e *PythonExtractor) extractPyParams(ctx *ExtractionContext, params *sitter.Node) []Param {
	if params == nil {
		return nil
	}
	out := make([]Param, 0, params.ChildCount())
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case "identifier":
			name := ctx.Text(child)
			if name == "self" || name == "cls" {
				continue
			}
			out = append(out, Param{Name: name})
		case "typed_parameter":
			p := Param{}
			if ident := ctx.ChildByKind(child, "identifier"); ident != nil {
				p.Name = ctx.Text(ident)
			}
			if typeNode := child.ChildByFieldName("type"); typeNode != nil {
				p.Type = normalizeTypeText(ctx.Text(typeNode))
			}
			out = append(out, p)
		case "default_parameter", "typed_default_parameter":
			p := Param{Optional: true}
			if name := child.ChildByFieldName("name"); name != nil {
				p.Name = ctx.Text(name)
			}
			if typeNode := child.ChildByFieldName("type"); typeNode != nil {
				p.Type = normalizeTypeText(ctx.Text(typeNode))
			}
			out = append(out, p)
		case "list_splat_pattern", "dictionary_splat_pattern":
			p := Param{Optional: true}
			if ident := ctx.ChildByKind(child, "identifier"); ident != nil {
				p.Name = ctx.Text(ident)
			}
			out = append(out, p)
		}
	}
	return out
}

func (e *PythonExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := ctx.Text(nameNode)

	def := Definition{
		Name:      name,
		FullName:  ctx.File.Module + "." + name,
		Kind:      KindClass,
		Exported:  pythonExported(name),
		Signature: name,
		Location:  ctx.Location(node),
		EndLine:   ctx.EndLine(node),
		LOC:       ctx.EndLine(node) - ctx.Location(node).Line + 1,
	}

	if superclasses := node.ChildByFieldName("superclasses"); superclasses != nil {
		for i := uint(0); i < superclasses.ChildCount(); i++ {
			child := superclasses.Child(i)
			if child.Kind() == "identifier" || child.Kind() == "attribute" {
				def.Extends = append(def.Extends, ctx.Text(child))
			}
		}
	}

	ctx.File.Definitions = append(ctx.File.Definitions, def)
	return false // Walk into the body for methods and calls
}

func (e *PythonExtractor) extractCall(ctx *ExtractionContext, node *sitter.Node) bool {
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
