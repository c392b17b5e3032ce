package parser

// APIContract is the publicly exported surface of one file: the basis for
// breaking-change comparison between two revisions.
type APIContract struct {
	FilePath  string
	Functions []Definition // Exported functions and methods
	Types     []Definition // Exported types, interfaces and classes
	Variables []Definition // Exported variables and constants
}

// ExtractAPIContract projects a parsed file down to its exported surface.
func ExtractAPIContract(file *File) APIContract {
	contract := APIContract{FilePath: file.Path}
	for _, def := range file.Definitions {
		if !def.Exported {
			continue
		}
		switch def.Kind {
		case KindFunction, KindMethod:
			contract.Functions = append(contract.Functions, def)
		case KindType, KindInterface, KindClass:
			contract.Types = append(contract.Types, def)
		case KindVariable, KindConstant:
			contract.Variables = append(contract.Variables, def)
		}
	}
	return contract
}

// FindFunction returns the exported function with the given name, if any.
func (c APIContract) FindFunction(name string) (Definition, bool) {
	for _, fn := range c.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return Definition{}, false
}

// FindType returns the exported type with the given name, if any.
func (c APIContract) FindType(name string) (Definition, bool) {
	for _, t := range c.Types {
		if t.Name == name {
			return t, true
		}
	}
	return Definition{}, false
}

// FindVariable returns the exported variable or constant with the given
// name, if any.
func (c APIContract) FindVariable(name string) (Definition, bool) {
	for _, v := range c.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Definition{}, false
}
