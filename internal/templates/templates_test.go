package templates

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/cortex/internal/models"
)

func samplePackage() *models.PackageMetadata {
	return &models.PackageMetadata{
		PackageName: "app",
		Imports:     map[string]string{"sql": "database/sql", "zap": "go.uber.org/zap"},
		Markers: []*models.MarkerMetadata{
			{TypeName: "AdminMarker", Name: "admin", GenerateMethod: true},
			{TypeName: "OpsMarker", Name: "ops"},
		},
		Components: []*models.ComponentMetadata{
			{TypeName: "Plain", Type: "*Plain", HookTrait: models.HookTrait{Startup: "Run"}},
			{
				TypeName: "PingService",
				Type:     "*PingService",
				Marker:   "AdminMarker",
				Proxy:    "Pinger",
				Init:     &models.InitMetadata{Name: "NewPingService", Params: []models.Param{{Name: "db", Type: "*sql.DB"}}},
				Fields:   []models.Field{{Name: "log", Type: "*zap.Logger"}},
				HookTrait: models.HookTrait{
					PostConstruct:         "Open",
					PostConstructReturnsE: true,
					PreDestroy:            "Close",
				},
			},
			{
				TypeName: "Pong",
				Type:     "Pong",
				Name:     "pong",
				Init: &models.InitMetadata{Name: "NewPong", ReturnsError: true, Params: []models.Param{
					{Name: "pinger", Type: "Pinger", Deferred: true},
					{Name: "cache", Type: "*sql.DB", Optional: true},
					{Name: "both", Type: "Pinger", Optional: true, Deferred: true},
				}},
				Beans: []models.BeanMetadata{
					{Method: "Settings", Name: "primary", ProductType: "*sql.DB", ReturnsError: true},
					{Method: "Report", Name: "Report", ProductType: "string", Params: []models.Param{{Name: "db", Type: "*sql.DB"}}},
					{Method: "Label", Name: "Label", ProductType: "string"},
				},
			},
		},
		Proxies: []models.ProxyMetadata{{
			Interface: "Pinger",
			Methods: []models.Method{
				{Name: "Name", Variadic: true, Params: []models.Param{{Name: "a0", Type: "string"}, {Name: "a1", Type: "string"}}, Results: []string{"string", "error"}},
				{Name: "Ping", Results: []string{"string"}},
				{Name: "Reset"},
			},
		}},
	}
}

func TestRenderComponents(t *testing.T) {
	src, err := RenderComponents(samplePackage())
	require.NoError(t, err)

	_, err = parser.ParseFile(token.NewFileSet(), "autogen_components.go", src, parser.ParseComments)
	require.NoError(t, err, src)

	for _, want := range []string{
		"// Code generated by cortex. DO NOT EDIT.",
		`"database/sql"`,
		`"github.com/toyz/cortex/pkg/cortex"`,
		`func (AdminMarker) MarkerName() string { return "admin" }`,
		"cortexPlainDescriptor(),",
		"return &Plain{}, nil",
		`d.Startup = func(instance any) { instance.(*Plain).Run() }`,
		`return NewPingService(cortex.Arg[*sql.DB](args, 0)), nil`,
		`}, cortex.In[*sql.DB]("db"))`,
		"d.Marker = AdminMarker{}",
		`cortex.Field[*PingService, *zap.Logger]("log", func(c *PingService, v *zap.Logger) { c.log = v }),`,
		"d.PostCreate = cortex.HookOf[*PingService]((*PingService).Open)",
		"c.Close()",
		"d.Proxy = cortex.ProxyOf[Pinger](func(h *cortex.Handle) Pinger { return cortexPingerStandIn{h: h} })",
		"var _ Pinger = (*PingService)(nil)",
		`d.Name = "pong"`,
		`cortex.Deferred[Pinger]("pinger"), cortex.Optional[*sql.DB]("cache")`,
		`cortex.Param{Name: "both", Type: cortex.TypeOf[Pinger](), Optional: true, Deferred: true}`,
		"return NewPong(cortex.Arg[Pinger](args, 0), cortex.Arg[*sql.DB](args, 1), cortex.Arg[Pinger](args, 2))\n",
		`cortex.BeanWith[Pong, *sql.DB]("primary", nil, func(c Pong, args []any) (*sql.DB, error) {`,
		`cortex.BeanWith[Pong, string]("Report", []cortex.Param{cortex.In[*sql.DB]("db")}`,
		"return c.Report(cortex.Arg[*sql.DB](args, 0)), nil",
		`cortex.Bean[Pong, string]("Label", func(c Pong) string { return c.Label() }),`,
		"func (s cortexPingerStandIn) Name(a0 string, a1 ...string) (string, error) {",
		"return cortex.Current[Pinger](s.h).Name(a0, a1...)",
		"func (s cortexPingerStandIn) Reset()  {",
		"\tcortex.Current[Pinger](s.h).Reset()",
	} {
		assert.Contains(t, src, want)
	}
	assert.NotContains(t, src, "func (OpsMarker) MarkerName()")
}

func TestImportManager(t *testing.T) {
	im := NewImportManager()
	im.AddImport(RuntimeImport)
	im.AddNamedImport("sql", "database/sql")
	im.AddNamedImport("echo", "github.com/labstack/echo/v4")
	im.AddNamedImport("yaml", "gopkg.in/yaml.v3")
	im.AddImport("")

	assert.Equal(t, 4, im.Len())
	assert.Equal(t, `import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/toyz/cortex/pkg/cortex"
	yaml "gopkg.in/yaml.v3"
)
`, im.GenerateImports())

	single := NewImportManager()
	single.AddImport(RuntimeImport)
	assert.Equal(t, "import \"github.com/toyz/cortex/pkg/cortex\"\n", single.GenerateImports())
	assert.Empty(t, NewImportManager().GenerateImports())
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "echo", DefaultName("github.com/labstack/echo/v4"))
	assert.Equal(t, "sql", DefaultName("database/sql"))
	assert.Equal(t, "yaml.v3", DefaultName("gopkg.in/yaml.v3"))
}

func TestRenderComponentsWith_MaxIterations(t *testing.T) {
	src, err := RenderComponents(samplePackage())
	require.NoError(t, err)
	assert.NotContains(t, src, "func Config() cortex.Config")

	src, err = RenderComponentsWith(samplePackage(), Options{MaxIterations: 5000})
	require.NoError(t, err)
	_, err = parser.ParseFile(token.NewFileSet(), "autogen_components.go", src, 0)
	require.NoError(t, err, src)
	assert.Contains(t, src, "func Config() cortex.Config {")
	assert.Contains(t, src, "c.MaxIterations = 5000")
}
