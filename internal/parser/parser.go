// Package parser discovers cortex annotations in Go packages and turns them
// into the metadata the generator renders as a descriptor table.
package parser

import (
	"fmt"
	"go/ast"
	"go/token"
	"slices"
	"sort"
	"strings"

	"github.com/toyz/cortex/internal/annotations"
	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/models"
	"github.com/toyz/cortex/internal/utils"
)

// DefaultOutputFile is the name of the generated file in each package.
const DefaultOutputFile = "autogen_components.go"

// Parser extracts component metadata from annotated Go source.
type Parser struct {
	reader      *utils.FileReader
	annotations *annotations.Parser
	output      string
}

// NewParser creates a parser; nil arguments fall back to fresh defaults.
func NewParser(reader *utils.FileReader, ap *annotations.Parser) *Parser {
	if reader == nil {
		reader = utils.NewFileReader()
	}
	if ap == nil {
		ap = annotations.NewParser(nil)
	}
	return &Parser{reader: reader, annotations: ap, output: DefaultOutputFile}
}

// SetOutputFile changes the generated file name the parser skips.
func (p *Parser) SetOutputFile(name string) {
	if name != "" {
		p.output = name
	}
}

// ParseSource parses source code from a string, mostly for tests.
func (p *Parser) ParseSource(filename, source string) (*models.PackageMetadata, error) {
	file, err := p.reader.ParseGoSource(filename, source)
	if err != nil {
		return nil, errors.Wrap(errors.SyntaxErrorCode, "failed to parse source", err)
	}
	return p.analyze(file.Name.Name, ".", map[string]*ast.File{filename: file})
}

// ParseDirectory parses every source file of the package in dir.
func (p *Parser) ParseDirectory(dir string) (*models.PackageMetadata, error) {
	files, name, err := p.reader.ParseDirectoryFiles(dir, p.output)
	if err != nil {
		return nil, errors.Wrap(errors.FileSystemErrorCode, "failed to load package", err).
			WithLocation(errors.SourceLocation{File: dir})
	}
	return p.analyze(name, dir, files)
}

type analysis struct {
	fset     *token.FileSet
	idx      *packageIndex
	parser   *annotations.Parser
	pkg      *models.PackageMetadata
	imports  map[string]string
	proxies  map[string]bool
	services map[string]bool
	errs     []error
}

func (p *Parser) analyze(name, dir string, files map[string]*ast.File) (*models.PackageMetadata, error) {
	a := &analysis{
		fset:     p.reader.FileSet(),
		idx:      buildIndex(files),
		parser:   annotations.NewParser(p.annotations.Registry().Clone()),
		imports:  make(map[string]string),
		proxies:  make(map[string]bool),
		services: make(map[string]bool),
		pkg: &models.PackageMetadata{
			PackageName: name,
			PackagePath: dir,
		},
	}

	a.collectMarkers()
	a.collectComponents()
	a.collectMethods()
	a.inheritHooks()
	a.pkg.SortComponents()
	a.pkg.Imports = a.imports

	if err := errors.Combine(a.errs...); err != nil {
		return nil, err
	}
	return a.pkg, nil
}

func (a *analysis) fail(err error) {
	a.errs = append(a.errs, err)
}

func (a *analysis) location(pos token.Pos) errors.SourceLocation {
	position := a.fset.Position(pos)
	return errors.SourceLocation{File: position.Filename, Line: position.Line, Column: position.Column}
}

// annotationName returns the bare annotation name of a comment line.
func annotationName(comment string) string {
	rest := strings.TrimPrefix(strings.TrimSpace(comment), "//"+annotations.Prefix+"::")
	if fields := strings.Fields(rest); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// parseDoc parses the annotations in doc, keeping those accepted by filter.
func (a *analysis) parseDoc(doc *ast.CommentGroup, target string, kind annotations.TargetKind, filter func(name string) bool) []*annotations.ParsedAnnotation {
	if doc == nil {
		return nil
	}
	var out []*annotations.ParsedAnnotation
	for _, c := range doc.List {
		if !annotations.IsAnnotation(c.Text) {
			continue
		}
		if filter != nil && !filter(annotationName(c.Text)) {
			continue
		}
		loc := a.location(c.Pos())
		ann, err := a.parser.Parse(c.Text, loc)
		if err != nil {
			a.fail(err)
			continue
		}
		if ann.Type.Target() != kind {
			a.fail(errors.DiscoveryError(loc, "//%s::%s belongs on a %s, not on %s %s",
				annotations.Prefix, ann.Name, ann.Type.Target(), kind, target))
			continue
		}
		ann.Target = target
		out = append(out, ann)
	}
	return out
}

func (a *analysis) useType(expr ast.Expr, src source, loc errors.SourceLocation) {
	for _, q := range qualifiers(expr) {
		a.usePackage(q, src, loc)
	}
}

func (a *analysis) usePackage(name string, src source, loc errors.SourceLocation) {
	importPath, ok := src.imports[name]
	if !ok {
		a.fail(errors.DiscoveryError(loc, "cannot resolve package %q", name))
		return
	}
	if existing, ok := a.imports[name]; ok && existing != importPath {
		a.fail(errors.DiscoveryError(loc, "package name %q refers to both %s and %s", name, existing, importPath).
			WithSuggestion("use the same import alias in every file of the package"))
		return
	}
	a.imports[name] = importPath
}

func (a *analysis) collectMarkers() {
	isMarker := func(name string) bool { return name == annotations.MarkerAnnotation.String() }

	for _, td := range a.idx.order {
		for _, ann := range a.parseDoc(td.doc, td.name, annotations.TypeTarget, isMarker) {
			loc := ann.Location
			if td.strct == nil {
				a.fail(errors.DiscoveryError(loc, "marker %s must be a struct type", td.name))
				continue
			}
			marker := &models.MarkerMetadata{
				TypeName:       td.name,
				Name:           ann.GetString("Name", td.name),
				Alias:          ann.GetString("Alias"),
				GenerateMethod: !a.idx.hasMethod(td.name, "MarkerName"),
				Location:       loc,
			}
			if marker.Alias != "" {
				err := a.parser.Registry().RegisterAlias(annotations.Alias{
					Name:     marker.Alias,
					Type:     annotations.ServiceAnnotation,
					Defaults: map[string]any{"Marker": td.name},
				})
				if err != nil {
					a.fail(errors.Wrap(errors.SchemaErrorCode, "invalid marker alias", err).WithLocation(loc))
					continue
				}
			}
			a.pkg.Markers = append(a.pkg.Markers, marker)
		}
	}
}

func (a *analysis) collectComponents() {
	notMarker := func(name string) bool { return name != annotations.MarkerAnnotation.String() }

	for _, td := range a.idx.order {
		anns := a.parseDoc(td.doc, td.name, annotations.TypeTarget, notMarker)
		if len(anns) == 0 {
			continue
		}
		if len(anns) > 1 {
			a.fail(errors.DiscoveryError(anns[1].Location, "%s has more than one service annotation", td.name))
			continue
		}
		ann := anns[0]
		if td.strct == nil {
			a.fail(errors.DiscoveryError(ann.Location, "service %s must be a struct type", td.name))
			continue
		}
		if td.spec.TypeParams != nil {
			a.fail(errors.DiscoveryError(ann.Location, "service %s cannot be generic", td.name))
			continue
		}
		a.services[td.name] = true
		if c := a.buildComponent(td, ann); c != nil {
			a.pkg.Components = append(a.pkg.Components, c)
		}
	}
}

func (a *analysis) buildComponent(td *typeDecl, ann *annotations.ParsedAnnotation) *models.ComponentMetadata {
	c := &models.ComponentMetadata{
		TypeName: td.name,
		Type:     "*" + td.name,
		Name:     ann.GetString("Name"),
		Marker:   ann.GetString("Marker"),
		Proxy:    ann.GetString("Proxy"),
		Location: ann.Location,
	}

	if c.Marker != "" {
		if pkg, _, qualified := strings.Cut(c.Marker, "."); qualified {
			a.usePackage(pkg, td.source, ann.Location)
		}
	}

	if !a.resolveInit(c, td, ann) {
		return nil
	}
	a.collectFields(c, td)
	if len(c.Fields) > 0 && !strings.HasPrefix(c.Type, "*") {
		a.fail(errors.DiscoveryError(ann.Location, "%s has injected fields but is constructed as a value", td.name).
			WithSuggestion(fmt.Sprintf("return *%s from %s", td.name, c.Init.Name)))
		return nil
	}

	if c.Proxy != "" && !a.proxies[c.Proxy] {
		proxy, ok := a.buildProxy(c.Proxy, ann.Location)
		if !ok {
			return nil
		}
		a.proxies[c.Proxy] = true
		a.pkg.Proxies = append(a.pkg.Proxies, proxy)
	}
	return c
}

// resolveInit picks the constructor: -Init when given, else New<Type>, else the
// New* function returning the type with the fewest parameters, else a zero value.
func (a *analysis) resolveInit(c *models.ComponentMetadata, td *typeDecl, ann *annotations.ParsedAnnotation) bool {
	var chosen *funcDecl

	if explicit := ann.GetString("Init"); explicit != "" {
		fd, ok := a.idx.funcs[explicit]
		if !ok {
			a.fail(errors.DiscoveryError(ann.Location, "constructor %s for %s not found", explicit, td.name))
			return false
		}
		if _, ok := constructs(fd, td.name); !ok {
			a.fail(errors.DiscoveryError(a.location(fd.decl.Pos()), "%s must return %s or *%s, optionally with an error", explicit, td.name, td.name))
			return false
		}
		chosen = fd
	} else if fd, ok := a.idx.funcs["New"+td.name]; ok {
		if _, ok := constructs(fd, td.name); ok {
			chosen = fd
		}
	}

	if chosen == nil && ann.GetString("Init") == "" {
		var candidates []*funcDecl
		for _, fd := range a.idx.free {
			if !strings.HasPrefix(fd.decl.Name.Name, "New") {
				continue
			}
			if _, ok := constructs(fd, td.name); ok {
				candidates = append(candidates, fd)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			pi, pj := len(flatten(candidates[i].decl.Type.Params, "")), len(flatten(candidates[j].decl.Type.Params, ""))
			if pi != pj {
				return pi < pj
			}
			return candidates[i].decl.Name.Name < candidates[j].decl.Name.Name
		})
		if len(candidates) > 0 {
			chosen = candidates[0]
		}
	}

	if chosen == nil {
		return true
	}

	pointer, _ := constructs(chosen, td.name)
	if !pointer {
		c.Type = td.name
	}
	results := flatten(chosen.decl.Type.Results, "r")
	init := &models.InitMetadata{
		Name:         chosen.decl.Name.Name,
		ReturnsError: len(results) == 2,
	}

	params, ok := a.params(chosen, chosen.decl.Type.Params, ann.GetStringSlice("Optional"), ann.GetStringSlice("Deferred"))
	if !ok {
		return false
	}
	init.Params = params
	c.Init = init
	return true
}

// constructs reports whether fd returns T or *T (optionally with an error); the
// first result tells whether it is a pointer.
func constructs(fd *funcDecl, typeName string) (bool, bool) {
	if fd.decl.Type.TypeParams != nil {
		return false, false
	}
	results := flatten(fd.decl.Type.Results, "r")
	if len(results) == 0 || len(results) > 2 {
		return false, false
	}
	if len(results) == 2 && !isErrorType(results[1].expr) {
		return false, false
	}
	name, pointer := baseTypeName(results[0].expr)
	if name != typeName {
		return false, false
	}
	return pointer, true
}

func (a *analysis) params(fd *funcDecl, list *ast.FieldList, optional, deferred []string) ([]models.Param, bool) {
	loc := a.location(fd.decl.Pos())
	var out []models.Param
	names := make(map[string]bool)
	for _, p := range flatten(list, "arg") {
		if _, variadic := p.expr.(*ast.Ellipsis); variadic {
			a.fail(errors.DiscoveryError(loc, "%s: variadic parameter %s cannot be injected", fd.decl.Name.Name, p.name))
			return nil, false
		}
		a.useType(p.expr, fd.source, loc)
		names[p.name] = true
		out = append(out, models.Param{
			Name:     p.name,
			Type:     exprString(p.expr),
			Optional: slices.Contains(optional, p.name),
			Deferred: slices.Contains(deferred, p.name),
		})
	}

	ok := true
	for _, listed := range slices.Concat(optional, deferred) {
		if !names[listed] {
			a.fail(errors.DiscoveryError(loc, "%s has no parameter named %s", fd.decl.Name.Name, listed))
			ok = false
		}
	}
	return out, ok
}

func (a *analysis) collectFields(c *models.ComponentMetadata, td *typeDecl) {
	for _, field := range td.strct.Fields.List {
		if len(field.Names) == 0 {
			if name, _ := baseTypeName(field.Type); name != "" {
				c.Embeds = append(c.Embeds, name)
			}
		}

		docs := []*ast.CommentGroup{field.Doc, field.Comment}
		var anns []*annotations.ParsedAnnotation
		for _, doc := range docs {
			anns = append(anns, a.parseDoc(doc, td.name+"."+fieldName(field), annotations.FieldTarget, nil)...)
		}
		if len(anns) == 0 {
			continue
		}

		a.useType(field.Type, td.source, anns[0].Location)
		if len(field.Names) == 0 {
			c.Fields = append(c.Fields, models.Field{Name: fieldName(field), Type: exprString(field.Type)})
			continue
		}
		for _, n := range field.Names {
			c.Fields = append(c.Fields, models.Field{Name: n.Name, Type: exprString(field.Type)})
		}
	}
}

func fieldName(field *ast.Field) string {
	if len(field.Names) > 0 {
		return field.Names[0].Name
	}
	expr := field.Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	}
	return exprString(field.Type)
}

func (a *analysis) collectMethods() {
	for _, fd := range a.idx.free {
		for _, ann := range a.parseDoc(fd.decl.Doc, fd.decl.Name.Name, annotations.MethodTarget, nil) {
			a.fail(errors.DiscoveryError(ann.Location, "//%s::%s must annotate a method, %s is a function",
				annotations.Prefix, ann.Name, fd.decl.Name.Name))
		}
	}

	for _, td := range a.idx.order {
		for _, fd := range a.idx.methods[td.name] {
			anns := a.parseDoc(fd.decl.Doc, td.name+"."+fd.decl.Name.Name, annotations.MethodTarget, nil)
			if len(anns) == 0 {
				continue
			}
			c := a.pkg.Component(td.name)
			if c == nil {
				if !a.services[td.name] {
					a.fail(errors.DiscoveryError(anns[0].Location, "%s.%s is annotated but %s is not a service",
						td.name, fd.decl.Name.Name, td.name))
				}
				continue
			}
			for _, ann := range anns {
				a.applyMethod(c, fd, ann)
			}
		}
	}
}

func (a *analysis) applyMethod(c *models.ComponentMetadata, fd *funcDecl, ann *annotations.ParsedAnnotation) {
	method := fd.decl.Name.Name
	loc := ann.Location

	if _, pointer, _ := fd.receiver(); pointer && !strings.HasPrefix(c.Type, "*") {
		a.fail(errors.DiscoveryError(loc, "%s has a pointer receiver but %s is constructed as a value", method, c.TypeName))
		return
	}

	params := flatten(fd.decl.Type.Params, "arg")
	results := flatten(fd.decl.Type.Results, "r")

	hook := func(current *string, allowError bool) (bool, bool) {
		if *current != "" {
			a.fail(errors.DiscoveryError(loc, "%s already has a //%s::%s hook (%s)", c.TypeName, annotations.Prefix, ann.Name, *current))
			return false, false
		}
		if len(params) != 0 {
			a.fail(errors.DiscoveryError(loc, "hook %s must not take parameters", method))
			return false, false
		}
		switch {
		case len(results) == 0:
			return true, false
		case len(results) == 1 && allowError && isErrorType(results[0].expr):
			return true, true
		}
		a.fail(errors.DiscoveryError(loc, "hook %s has an unsupported signature", method))
		return false, false
	}

	switch ann.Type {
	case annotations.PostConstructAnnotation:
		if ok, returnsErr := hook(&c.PostConstruct, true); ok {
			c.PostConstruct, c.PostConstructReturnsE = method, returnsErr
		}
	case annotations.PreDestroyAnnotation:
		if ok, returnsErr := hook(&c.PreDestroy, true); ok {
			c.PreDestroy, c.PreDestroyReturnsE = method, returnsErr
		}
	case annotations.StartupAnnotation:
		if ok, _ := hook(&c.Startup, false); ok {
			c.Startup = method
		}
	case annotations.BeanAnnotation:
		a.applyBean(c, fd, ann, results)
	}
}

func (a *analysis) applyBean(c *models.ComponentMetadata, fd *funcDecl, ann *annotations.ParsedAnnotation, results []namedExpr) {
	loc := ann.Location
	if len(results) == 0 || len(results) > 2 || (len(results) == 2 && !isErrorType(results[1].expr)) {
		a.fail(errors.DiscoveryError(loc, "bean %s must return a value, optionally with an error", fd.decl.Name.Name))
		return
	}
	params, ok := a.params(fd, fd.decl.Type.Params, ann.GetStringSlice("Optional"), nil)
	if !ok {
		return
	}
	a.useType(results[0].expr, fd.source, loc)

	bean := models.BeanMetadata{
		Method:       fd.decl.Name.Name,
		Name:         ann.GetString("Name", fd.decl.Name.Name),
		ProductType:  exprString(results[0].expr),
		Params:       params,
		ReturnsError: len(results) == 2,
	}
	for _, existing := range c.Beans {
		if existing.Name == bean.Name {
			a.fail(errors.DiscoveryError(loc, "%s declares two beans named %s", c.TypeName, bean.Name))
			return
		}
	}
	c.Beans = append(c.Beans, bean)
}

// inheritHooks copies unset hooks from embedded services, deepest first.
func (a *analysis) inheritHooks() {
	done := make(map[string]bool)
	var visit func(c *models.ComponentMetadata, path []string)
	visit = func(c *models.ComponentMetadata, path []string) {
		if done[c.TypeName] || slices.Contains(path, c.TypeName) {
			return
		}
		path = append(path, c.TypeName)
		for _, embed := range c.Embeds {
			parent := a.pkg.Component(embed)
			if parent == nil {
				continue
			}
			visit(parent, path)
			c.Inherit(parent.HookTrait)
		}
		done[c.TypeName] = true
	}
	for _, c := range a.pkg.Components {
		visit(c, nil)
	}
}

func (a *analysis) buildProxy(name string, loc errors.SourceLocation) (models.ProxyMetadata, bool) {
	methods, ok := a.interfaceMethods(name, loc, nil)
	if !ok {
		return models.ProxyMetadata{}, false
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	return models.ProxyMetadata{Interface: name, Methods: methods}, true
}

func (a *analysis) interfaceMethods(name string, loc errors.SourceLocation, seen []string) ([]models.Method, bool) {
	td, ok := a.idx.types[name]
	if !ok || td.iface == nil {
		a.fail(errors.DiscoveryError(loc, "proxy interface %s is not declared in package %s", name, a.pkg.PackageName))
		return nil, false
	}
	if td.spec.TypeParams != nil {
		a.fail(errors.DiscoveryError(loc, "proxy interface %s cannot be generic", name))
		return nil, false
	}
	if slices.Contains(seen, name) {
		return nil, true
	}
	seen = append(seen, name)

	var methods []models.Method
	for _, field := range td.iface.Methods.List {
		fn, isMethod := field.Type.(*ast.FuncType)
		if !isMethod {
			embedded, ok := field.Type.(*ast.Ident)
			if !ok {
				a.fail(errors.DiscoveryError(loc, "cannot forward %s embedded in %s", exprString(field.Type), name))
				return nil, false
			}
			nested, ok := a.interfaceMethods(embedded.Name, loc, seen)
			if !ok {
				return nil, false
			}
			methods = append(methods, nested...)
			continue
		}

		m := models.Method{Name: field.Names[0].Name}
		for i, p := range flatten(fn.Params, "a") {
			expr := p.expr
			if ellipsis, ok := expr.(*ast.Ellipsis); ok {
				m.Variadic = true
				expr = ellipsis.Elt
			}
			a.useType(expr, td.source, loc)
			m.Params = append(m.Params, models.Param{Name: fmt.Sprintf("a%d", i), Type: exprString(expr)})
		}
		for _, r := range flatten(fn.Results, "r") {
			a.useType(r.expr, td.source, loc)
			m.Results = append(m.Results, exprString(r.expr))
		}
		methods = append(methods, m)
	}
	return methods, true
}
