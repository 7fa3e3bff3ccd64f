package parser

import (
	"go/ast"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strconv"
	"strings"
)

// source ties a declaration to the file it was found in.
type source struct {
	file    string
	imports map[string]string // local package name -> import path
}

type typeDecl struct {
	source
	name   string
	spec   *ast.TypeSpec
	doc    *ast.CommentGroup
	strct  *ast.StructType
	iface  *ast.InterfaceType
	offset token.Pos
}

type funcDecl struct {
	source
	decl *ast.FuncDecl
}

// receiver returns the base type name of a method and whether it is a pointer receiver.
func (f *funcDecl) receiver() (string, bool, bool) {
	if f.decl.Recv == nil || len(f.decl.Recv.List) == 0 {
		return "", false, false
	}
	expr := f.decl.Recv.List[0].Type
	pointer := false
	if star, ok := expr.(*ast.StarExpr); ok {
		expr, pointer = star.X, true
	}
	ident, ok := expr.(*ast.Ident)
	if !ok {
		// generic receivers are not supported
		return "", false, false
	}
	return ident.Name, pointer, true
}

// packageIndex holds the declarations of one package.
type packageIndex struct {
	types   map[string]*typeDecl
	order   []*typeDecl
	funcs   map[string]*funcDecl
	methods map[string][]*funcDecl
	free    []*funcDecl
}

func buildIndex(files map[string]*ast.File) *packageIndex {
	idx := &packageIndex{
		types:   make(map[string]*typeDecl),
		funcs:   make(map[string]*funcDecl),
		methods: make(map[string][]*funcDecl),
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		file := files[name]
		src := source{file: name, imports: fileImports(file)}

		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				if d.Tok != token.TYPE {
					continue
				}
				for _, spec := range d.Specs {
					ts := spec.(*ast.TypeSpec)
					td := &typeDecl{source: src, name: ts.Name.Name, spec: ts, doc: ts.Doc, offset: ts.Pos()}
					if td.doc == nil && len(d.Specs) == 1 {
						td.doc = d.Doc
					}
					switch t := ts.Type.(type) {
					case *ast.StructType:
						td.strct = t
					case *ast.InterfaceType:
						td.iface = t
					}
					idx.types[td.name] = td
					idx.order = append(idx.order, td)
				}
			case *ast.FuncDecl:
				fd := &funcDecl{source: src, decl: d}
				if d.Recv == nil {
					idx.funcs[d.Name.Name] = fd
					idx.free = append(idx.free, fd)
					continue
				}
				if recv, _, ok := fd.receiver(); ok {
					idx.methods[recv] = append(idx.methods[recv], fd)
				}
			}
		}
	}
	return idx
}

// hasMethod reports whether typeName declares a method called name.
func (idx *packageIndex) hasMethod(typeName, name string) bool {
	for _, m := range idx.methods[typeName] {
		if m.decl.Name.Name == name {
			return true
		}
	}
	return false
}

func fileImports(file *ast.File) map[string]string {
	imports := make(map[string]string, len(file.Imports))
	for _, spec := range file.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := guessPackageName(importPath)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		imports[name] = importPath
	}
	return imports
}

// guessPackageName applies the usual naming conventions; packages that break
// them must be imported with an explicit name.
func guessPackageName(importPath string) string {
	name := path.Base(importPath)
	if isMajorVersion(name) {
		name = path.Base(path.Dir(importPath))
	}
	if i := strings.LastIndex(name, ".v"); i > 0 && isMajorVersion(name[i+1:]) {
		name = name[:i]
	}
	return strings.TrimPrefix(name, "go-")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// exprString renders a type expression as Go source.
func exprString(expr ast.Expr) string {
	return types.ExprString(expr)
}

// qualifiers returns the package names referenced by a type expression.
func qualifiers(expr ast.Expr) []string {
	var out []string
	ast.Inspect(expr, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if ident, ok := sel.X.(*ast.Ident); ok {
				out = append(out, ident.Name)
			}
			return false
		}
		return true
	})
	return out
}

// baseTypeName strips one level of pointer and returns the identifier, if any.
func baseTypeName(expr ast.Expr) (string, bool) {
	pointer := false
	if star, ok := expr.(*ast.StarExpr); ok {
		expr, pointer = star.X, true
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name, pointer
	}
	return "", pointer
}

func isErrorType(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == "error"
}

// flatten expands a field list into one entry per name; unnamed entries get a positional name.
func flatten(list *ast.FieldList, prefix string) []namedExpr {
	if list == nil {
		return nil
	}
	var out []namedExpr
	for _, field := range list.List {
		if len(field.Names) == 0 {
			out = append(out, namedExpr{name: prefix + strconv.Itoa(len(out)), expr: field.Type})
			continue
		}
		for _, n := range field.Names {
			name := n.Name
			if name == "_" {
				name = prefix + strconv.Itoa(len(out))
			}
			out = append(out, namedExpr{name: name, expr: field.Type})
		}
	}
	return out
}

type namedExpr struct {
	name string
	expr ast.Expr
}
