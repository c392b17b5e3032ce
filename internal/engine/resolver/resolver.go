// Package resolver maps import specifiers onto concrete project files.
// Resolution is performed against an index of known files rather than the
// filesystem, so partial scans and in-memory analyses resolve the same way.
package resolver

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/parser"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

// Resolution is the outcome of resolving one import specifier.
type Resolution struct {
	// Paths are the project-relative target files. Script and Python
	// specifiers resolve to exactly one file; Go specifiers resolve to every
	// file of the imported package, so graph edges always land on analyzed
	// file nodes. Empty when the import is external.
	Paths    []string
	External bool
}

type Resolver struct {
	// aliases maps a specifier prefix onto a project-relative directory,
	// longest prefix wins ("@app/" -> "src/").
	aliases map[string]string
	// goModulePath anchors absolute Go import paths ("example.com/svc").
	goModulePath string
	files        map[string]bool
	dirs         map[string]bool
}

type Options struct {
	Aliases      map[string]string
	GoModulePath string
}

func NewResolver(opts Options) *Resolver {
	aliases := make(map[string]string, len(opts.Aliases))
	for prefix, target := range opts.Aliases {
		aliases[prefix] = util.NormalizePatternPath(target)
	}
	return &Resolver{
		aliases:      aliases,
		goModulePath: opts.GoModulePath,
		files:        make(map[string]bool),
		dirs:         make(map[string]bool),
	}
}

// AddFile registers a project file as a resolution target. Paths are
// normalized to forward slashes relative to the project root.
func (r *Resolver) AddFile(filePath string) {
	norm := util.NormalizePatternPath(filePath)
	r.files[norm] = true
	for dir := path.Dir(norm); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if r.dirs[dir] {
			break
		}
		r.dirs[dir] = true
	}
}

func (r *Resolver) RemoveFile(filePath string) {
	delete(r.files, util.NormalizePatternPath(filePath))
}

// Resolve maps one import of fromFile onto a Resolution. A specifier that
// points inside the project but matches no known file yields a
// RESOLUTION_ERROR; callers log it and omit the edge instead of aborting.
func (r *Resolver) Resolve(fromFile string, imp parser.Import, language string) (Resolution, error) {
	fromFile = util.NormalizePatternPath(fromFile)

	switch language {
	case "go":
		return r.resolveGo(fromFile, imp)
	case "python":
		return r.resolvePython(fromFile, imp)
	default:
		return r.resolveScript(fromFile, imp)
	}
}

// scriptExtensions are probed in order when a specifier omits the extension.
var scriptExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

func (r *Resolver) resolveScript(fromFile string, imp parser.Import) (Resolution, error) {
	spec := imp.Module

	if imp.IsRelative {
		base := path.Join(path.Dir(fromFile), spec)
		if found, ok := r.probeScript(base); ok {
			return Resolution{Paths: []string{found}}, nil
		}
		return Resolution{}, r.unresolved(fromFile, spec)
	}

	if target, rest, ok := r.matchAlias(spec); ok {
		base := path.Join(target, rest)
		if found, ok := r.probeScript(base); ok {
			return Resolution{Paths: []string{found}}, nil
		}
		return Resolution{}, r.unresolved(fromFile, spec)
	}

	// Bare specifier: a package from node_modules or the runtime.
	return Resolution{External: true}, nil
}

func (r *Resolver) probeScript(base string) (string, bool) {
	if r.files[base] {
		return base, true
	}
	for _, ext := range scriptExtensions {
		if candidate := base + ext; r.files[candidate] {
			return candidate, true
		}
	}
	if r.dirs[base] {
		for _, ext := range scriptExtensions {
			if candidate := path.Join(base, "index"+ext); r.files[candidate] {
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Resolver) resolveGo(fromFile string, imp parser.Import) (Resolution, error) {
	spec := imp.Module
	if r.goModulePath == "" || !strings.HasPrefix(spec, r.goModulePath) {
		return Resolution{External: true}, nil
	}

	rel := strings.TrimPrefix(spec, r.goModulePath)
	rel = strings.TrimPrefix(rel, "/")
	dir := rel
	if dir == "" {
		dir = "."
	}
	if dir == "." || r.dirs[dir] {
		// A Go import targets a package, not a file; expand to every
		// indexed source file of that directory so edges land on nodes
		// the scan layer has analyzed.
		if files := r.packageFiles(dir); len(files) > 0 {
			return Resolution{Paths: files}, nil
		}
	}
	return Resolution{}, r.unresolved(fromFile, spec)
}

func (r *Resolver) packageFiles(dir string) []string {
	var files []string
	for f := range r.files {
		if path.Dir(f) != dir {
			continue
		}
		if !strings.HasSuffix(f, ".go") || strings.HasSuffix(f, "_test.go") {
			continue
		}
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func (r *Resolver) resolvePython(fromFile string, imp parser.Import) (Resolution, error) {
	spec := imp.Module

	if imp.IsRelative {
		level := 0
		for level < len(spec) && spec[level] == '.' {
			level++
		}
		remainder := spec[level:]

		base := path.Dir(fromFile)
		for i := 1; i < level; i++ {
			base = path.Dir(base)
		}
		target := base
		if remainder != "" {
			target = path.Join(base, strings.ReplaceAll(remainder, ".", "/"))
		}
		if found, ok := r.probePython(target); ok {
			return Resolution{Paths: []string{found}}, nil
		}
		return Resolution{}, r.unresolved(fromFile, spec)
	}

	// Absolute imports resolve from the project root; a miss means stdlib
	// or site-packages, which is external rather than an error.
	target := strings.ReplaceAll(spec, ".", "/")
	if found, ok := r.probePython(target); ok {
		return Resolution{Paths: []string{found}}, nil
	}
	return Resolution{External: true}, nil
}

func (r *Resolver) probePython(base string) (string, bool) {
	if candidate := base + ".py"; r.files[candidate] {
		return candidate, true
	}
	if candidate := path.Join(base, "__init__.py"); r.files[candidate] {
		return candidate, true
	}
	return "", false
}

func (r *Resolver) matchAlias(spec string) (target, rest string, ok bool) {
	best := ""
	for prefix := range r.aliases {
		if !strings.HasPrefix(spec, prefix) {
			continue
		}
		if len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", "", false
	}
	return r.aliases[best], strings.TrimPrefix(spec, best), true
}

func (r *Resolver) unresolved(fromFile, spec string) error {
	observability.UnresolvedImportsTotal.Inc()
	return (&errors.DomainError{
		Code:    errors.CodeResolutionError,
		Message: fmt.Sprintf("cannot resolve import %q", spec),
	}).WithContext(errors.CtxPath, fromFile)
}
