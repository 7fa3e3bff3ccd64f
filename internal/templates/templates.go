// Package templates renders package metadata into the Go source of a
// descriptor table.
package templates

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/toyz/cortex/internal/models"
	"github.com/toyz/cortex/internal/utils"
)

// RuntimeImport is the import path of the runtime package generated code targets.
const RuntimeImport = "github.com/toyz/cortex/pkg/cortex"

const componentsTemplate = `{{define "file" -}}
{{header}}

package {{.Package.PackageName}}

{{.Imports}}
{{- range .Package.Markers}}{{if .GenerateMethod}}
// MarkerName identifies components tagged with {{.TypeName}}.
func ({{.TypeName}}) MarkerName() string { return {{quote .Name}} }
{{end}}{{end}}
// Components returns the descriptors of the annotated components in this package.
func Components() []*cortex.Descriptor {
	return []*cortex.Descriptor{
{{- range .Package.Components}}
		{{descriptorFunc .}}(),
{{- end}}
	}
}
{{if .MaxIterations}}
// Config returns the runtime configuration of the project.
func Config() cortex.Config {
	c := cortex.DefaultConfig()
	c.MaxIterations = {{.MaxIterations}}
	return c
}
{{end}}
{{- range .Package.Components}}{{template "component" .}}{{end}}
{{- range .Package.Proxies}}{{template "proxy" .}}{{end}}
{{- end}}

{{define "component"}}
func {{descriptorFunc .}}() *cortex.Descriptor {
	d := cortex.Describe[{{.Type}}](func(args []any) (any, error) {
{{- if .Init}}
		return {{.Init.Name}}({{callArgs .Init.Params}}){{if not .Init.ReturnsError}}, nil{{end}}
{{- else}}
		return &{{.TypeName}}{}, nil
{{- end}}
	}{{if .Init}}{{range .Init.Params}}, {{paramDecl .}}{{end}}{{end}})
{{- if .Name}}
	d.Name = {{quote .Name}}
{{- end}}
{{- if .Marker}}
	d.Marker = {{.Marker}}{}
{{- end}}
{{- if .Fields}}
	d.Fields = []cortex.FieldSlot{
{{- range .Fields}}
		cortex.Field[{{$.Type}}, {{.Type}}]({{quote .Name}}, func(c {{$.Type}}, v {{.Type}}) { c.{{.Name}} = v }),
{{- end}}
	}
{{- end}}
{{- if .PostConstruct}}
	d.PostCreate = {{hook .Type .PostConstruct .PostConstructReturnsE}}
{{- end}}
{{- if .PreDestroy}}
	d.PreDestroy = {{hook .Type .PreDestroy .PreDestroyReturnsE}}
{{- end}}
{{- if .Startup}}
	d.Startup = func(instance any) { instance.({{.Type}}).{{.Startup}}() }
{{- end}}
{{- if .Beans}}
	d.Factories = []cortex.FactoryMember{
{{- range .Beans}}
{{- if or .Params .ReturnsError}}
		cortex.BeanWith[{{$.Type}}, {{.ProductType}}]({{quote .Name}}, {{paramList .Params}}, func(c {{$.Type}}, args []any) ({{.ProductType}}, error) {
			return c.{{.Method}}({{callArgs .Params}}){{if not .ReturnsError}}, nil{{end}}
		}),
{{- else}}
		cortex.Bean[{{$.Type}}, {{.ProductType}}]({{quote .Name}}, func(c {{$.Type}}) {{.ProductType}} { return c.{{.Method}}() }),
{{- end}}
{{- end}}
	}
{{- end}}
{{- if .Proxy}}
	d.Proxy = cortex.ProxyOf[{{.Proxy}}](func(h *cortex.Handle) {{.Proxy}} { return {{standIn .Proxy}}{h: h} })
{{- end}}
	return d
}
{{if .Proxy}}
var _ {{.Proxy}} = {{zeroValue .}}
{{end}}
{{- end}}

{{define "proxy"}}
// {{.StandInName}} forwards {{.Interface}} calls to the live instance.
type {{.StandInName}} struct {
	h *cortex.Handle
}
{{range .Methods}}
func (s {{$.StandInName}}) {{.Name}}({{methodParams .}}) {{methodResults .}} {
	{{if .Results}}return {{end}}cortex.Current[{{$.Interface}}](s.h).{{.Name}}({{methodArgs .}})
}
{{end}}
{{- end}}
`

var funcs = template.FuncMap{
	"header":         func() string { return utils.GeneratedHeader },
	"quote":          strconv.Quote,
	"descriptorFunc": DescriptorFunc,
	"standIn":        func(iface string) string { return models.ProxyMetadata{Interface: iface}.StandInName() },
	"callArgs":       callArgs,
	"paramDecl":      paramDecl,
	"paramList":      paramList,
	"hook":           hook,
	"zeroValue":      zeroValue,
	"methodParams":   methodParams,
	"methodResults":  methodResults,
	"methodArgs":     methodArgs,
}

var fileTemplate = template.Must(template.New("components").Funcs(funcs).Parse(componentsTemplate))

// FileData is the input of the components template.
type FileData struct {
	Package       *models.PackageMetadata
	Imports       string
	MaxIterations int
}

// Options tune the generated file beyond the package metadata.
type Options struct {
	// MaxIterations, when positive, adds a Config function with that resolution budget.
	MaxIterations int
}

// RenderComponents renders the unformatted source of a package's generated file.
func RenderComponents(pkg *models.PackageMetadata) (string, error) {
	return RenderComponentsWith(pkg, Options{})
}

// RenderComponentsWith is RenderComponents with explicit options.
func RenderComponentsWith(pkg *models.PackageMetadata, opts Options) (string, error) {
	im := NewImportManager()
	im.AddImport(RuntimeImport)
	for name, importPath := range pkg.Imports {
		im.AddNamedImport(name, importPath)
	}

	var buf bytes.Buffer
	err := fileTemplate.ExecuteTemplate(&buf, "file", FileData{
		Package:       pkg,
		Imports:       im.GenerateImports(),
		MaxIterations: opts.MaxIterations,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render components for %s: %w", pkg.PackageName, err)
	}
	return buf.String(), nil
}

// DescriptorFunc is the name of the generated function building c's descriptor.
func DescriptorFunc(c *models.ComponentMetadata) string {
	return "cortex" + c.TypeName + "Descriptor"
}

func callArgs(params []models.Param) string {
	args := make([]string, len(params))
	for i, p := range params {
		args[i] = fmt.Sprintf("cortex.Arg[%s](args, %d)", p.Type, i)
	}
	return strings.Join(args, ", ")
}

func paramDecl(p models.Param) string {
	name := strconv.Quote(p.Name)
	switch {
	case p.Optional && p.Deferred:
		return fmt.Sprintf("cortex.Param{Name: %s, Type: cortex.TypeOf[%s](), Optional: true, Deferred: true}", name, p.Type)
	case p.Deferred:
		return fmt.Sprintf("cortex.Deferred[%s](%s)", p.Type, name)
	case p.Optional:
		return fmt.Sprintf("cortex.Optional[%s](%s)", p.Type, name)
	default:
		return fmt.Sprintf("cortex.In[%s](%s)", p.Type, name)
	}
}

func paramList(params []models.Param) string {
	if len(params) == 0 {
		return "nil"
	}
	decls := make([]string, len(params))
	for i, p := range params {
		decls[i] = paramDecl(p)
	}
	return "[]cortex.Param{" + strings.Join(decls, ", ") + "}"
}

func hook(typ, method string, returnsError bool) string {
	if returnsError {
		return fmt.Sprintf("cortex.HookOf[%s](%s.%s)", typ, methodReceiver(typ), method)
	}
	return fmt.Sprintf("cortex.HookOf[%s](func(c %s) error {\n\t\tc.%s()\n\t\treturn nil\n\t})", typ, typ, method)
}

// methodReceiver renders the receiver expression of a method value, e.g. (*T) for *T.
func methodReceiver(typ string) string {
	if strings.HasPrefix(typ, "*") {
		return "(" + typ + ")"
	}
	return typ
}

func zeroValue(c *models.ComponentMetadata) string {
	if strings.HasPrefix(c.Type, "*") {
		return fmt.Sprintf("(%s)(nil)", c.Type)
	}
	return c.Type + "{}"
}

func methodParams(m models.Method) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		typ := p.Type
		if m.Variadic && i == len(m.Params)-1 {
			typ = "..." + typ
		}
		parts[i] = p.Name + " " + typ
	}
	return strings.Join(parts, ", ")
}

func methodResults(m models.Method) string {
	switch len(m.Results) {
	case 0:
		return ""
	case 1:
		return m.Results[0]
	default:
		return "(" + strings.Join(m.Results, ", ") + ")"
	}
}

func methodArgs(m models.Method) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Name
		if m.Variadic && i == len(m.Params)-1 {
			parts[i] += "..."
		}
	}
	return strings.Join(parts, ", ")
}
