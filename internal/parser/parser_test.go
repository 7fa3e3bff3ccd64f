package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/cortex/internal/annotations"
	"github.com/toyz/cortex/internal/errors"
	"github.com/toyz/cortex/internal/models"
)

const pingSource = `package app

import (
	"database/sql"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping() string
	Named
}

type Named interface {
	Name(prefix string, parts ...string) (string, error)
}

//cortex::service -Proxy=Pinger
type PingService struct {
	//cortex::inject
	log *zap.Logger
	db  *sql.DB
}

func NewPingService(db *sql.DB) *PingService { return &PingService{db: db} }

func NewPingServiceFromEnv() (*PingService, error) { return &PingService{}, nil }

func (p *PingService) Ping() string { return "ping" }

func (p *PingService) Name(prefix string, parts ...string) (string, error) { return prefix, nil }

//cortex::post_construct
func (p *PingService) Open() error { return nil }

//cortex::pre_destroy
func (p *PingService) Close() {}

// Pong answers pings.
//
//cortex::service -Name=pong -Deferred=pinger -Optional=cache
type Pong struct {
	pinger Pinger
}

func MakePong(pinger Pinger, cache *sql.DB) Pong { return Pong{pinger: pinger} }

func NewPong(pinger Pinger, cache *sql.DB) Pong { return Pong{pinger: pinger} }

//cortex::bean -Name=primary
func (p Pong) Settings() (*sql.DB, error) { return nil, nil }

//cortex::bean
func (p Pong) Report(db *sql.DB) string { return "" }

//cortex::service
type Plain struct{}

//cortex::startup
func (Plain) Run() {}
`

func parse(t *testing.T, source string) *models.PackageMetadata {
	t.Helper()
	pkg, err := NewParser(nil, nil).ParseSource("app.go", source)
	require.NoError(t, err)
	return pkg
}

func TestParseSource_Components(t *testing.T) {
	pkg := parse(t, pingSource)

	assert.Equal(t, "app", pkg.PackageName)
	require.Len(t, pkg.Components, 3)
	assert.Equal(t, []string{"Plain", "PingService", "Pong"}, []string{
		pkg.Components[0].TypeName, pkg.Components[1].TypeName, pkg.Components[2].TypeName,
	}, "components are sorted by constructor arity")

	ping := pkg.Component("PingService")
	assert.Equal(t, "*PingService", ping.Type)
	require.NotNil(t, ping.Init)
	assert.Equal(t, "NewPingService", ping.Init.Name, "New<Type> wins over other constructors")
	assert.Equal(t, []models.Param{{Name: "db", Type: "*sql.DB"}}, ping.Init.Params)
	assert.False(t, ping.Init.ReturnsError)
	assert.Equal(t, []models.Field{{Name: "log", Type: "*zap.Logger"}}, ping.Fields)
	assert.Equal(t, "Open", ping.PostConstruct)
	assert.True(t, ping.PostConstructReturnsE)
	assert.Equal(t, "Close", ping.PreDestroy)
	assert.False(t, ping.PreDestroyReturnsE)
	assert.Equal(t, "Pinger", ping.Proxy)

	pong := pkg.Component("Pong")
	assert.Equal(t, "Pong", pong.Type, "value constructors expose the value type")
	assert.Equal(t, "pong", pong.Name)
	assert.Equal(t, "NewPong", pong.Init.Name)
	assert.Equal(t, []models.Param{
		{Name: "pinger", Type: "Pinger", Deferred: true},
		{Name: "cache", Type: "*sql.DB", Optional: true},
	}, pong.Init.Params)
	require.Len(t, pong.Beans, 2)
	assert.Equal(t, models.BeanMetadata{Method: "Settings", Name: "primary", ProductType: "*sql.DB", ReturnsError: true}, pong.Beans[0])
	assert.Equal(t, "Report", pong.Beans[1].Name)
	assert.Equal(t, []models.Param{{Name: "db", Type: "*sql.DB"}}, pong.Beans[1].Params)

	plain := pkg.Component("Plain")
	assert.Nil(t, plain.Init, "no constructor means a zero value")
	assert.Equal(t, "*Plain", plain.Type)
	assert.Equal(t, "Run", plain.Startup)

	assert.Equal(t, map[string]string{"sql": "database/sql", "zap": "go.uber.org/zap"}, pkg.Imports)
}

func TestParseSource_ProxyFlattensEmbeddedInterfaces(t *testing.T) {
	pkg := parse(t, pingSource)
	require.Len(t, pkg.Proxies, 1)

	proxy := pkg.Proxies[0]
	assert.Equal(t, "Pinger", proxy.Interface)
	require.Len(t, proxy.Methods, 2)

	name := proxy.Methods[0]
	assert.Equal(t, "Name", name.Name)
	assert.True(t, name.Variadic)
	assert.Equal(t, []models.Param{{Name: "a0", Type: "string"}, {Name: "a1", Type: "string"}}, name.Params)
	assert.Equal(t, []string{"string", "error"}, name.Results)

	assert.Equal(t, "Ping", proxy.Methods[1].Name)
	assert.Empty(t, proxy.Methods[1].Params)
}

func TestParseSource_FewestParamsConstructor(t *testing.T) {
	pkg := parse(t, `package app

//cortex::service
type Store struct{}

func NewStoreWithDSN(dsn string, retries int) *Store { return &Store{} }

func NewStoreDefault(dsn string) (*Store, error) { return &Store{}, nil }
`)
	store := pkg.Component("Store")
	assert.Equal(t, "NewStoreDefault", store.Init.Name)
	assert.True(t, store.Init.ReturnsError)
}

func TestParseSource_ExplicitInit(t *testing.T) {
	pkg := parse(t, `package app

//cortex::service -Init=Build
type Store struct{}

func NewStore() *Store { return &Store{} }

func Build(n int) *Store { return &Store{} }
`)
	assert.Equal(t, "Build", pkg.Component("Store").Init.Name)
}

func TestParseSource_MarkersAndAliases(t *testing.T) {
	pkg := parse(t, `package app

//cortex::marker -Name=admin -Alias=admin
type AdminMarker struct{}

//cortex::marker
type OpsMarker struct{}

func (OpsMarker) MarkerName() string { return "ops" }

//cortex::admin
type Console struct{}

//cortex::service -Marker=OpsMarker
type Pager struct{}
`)
	require.Len(t, pkg.Markers, 2)
	assert.Equal(t, "admin", pkg.Markers[0].Name)
	assert.True(t, pkg.Markers[0].GenerateMethod)
	assert.Equal(t, "OpsMarker", pkg.Markers[1].Name)
	assert.False(t, pkg.Markers[1].GenerateMethod)

	assert.Equal(t, "AdminMarker", pkg.Component("Console").Marker)
	assert.Equal(t, "OpsMarker", pkg.Component("Pager").Marker)
}

func TestParseSource_ConfigAliases(t *testing.T) {
	reg := annotations.NewRegistry()
	require.NoError(t, reg.RegisterAlias(annotations.Alias{Name: "component", Type: annotations.ServiceAnnotation}))

	pkg, err := NewParser(nil, annotations.NewParser(reg)).ParseSource("app.go", `package app

//cortex::component -Name=clock
type Clock struct{}
`)
	require.NoError(t, err)
	assert.Equal(t, "clock", pkg.Component("Clock").Name)
}

func TestParseSource_HookInheritance(t *testing.T) {
	pkg := parse(t, `package app

//cortex::service
type Base struct{}

//cortex::post_construct
func (b *Base) Init() error { return nil }

//cortex::pre_destroy
func (b *Base) Close() error { return nil }

//cortex::service
type Derived struct {
	Base
}

//cortex::pre_destroy
func (d *Derived) Shutdown() {}

//cortex::service
type MoreDerived struct {
	*Derived
}
`)
	derived := pkg.Component("Derived")
	assert.Equal(t, "Init", derived.PostConstruct)
	assert.Equal(t, "Shutdown", derived.PreDestroy)

	more := pkg.Component("MoreDerived")
	assert.Equal(t, "Init", more.PostConstruct)
	assert.Equal(t, "Shutdown", more.PreDestroy)
	assert.False(t, more.PreDestroyReturnsE)
}

func TestParseSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "service on interface",
			source: "package app\n\n//cortex::service\ntype S interface{}\n",
			want:   "must be a struct type",
		},
		{
			name:   "missing explicit constructor",
			source: "package app\n\n//cortex::service -Init=Make\ntype S struct{}\n",
			want:   "constructor Make for S not found",
		},
		{
			name:   "unknown optional param",
			source: "package app\n\n//cortex::service -Optional=nope\ntype S struct{}\n\nfunc NewS(a int) *S { return nil }\n",
			want:   "has no parameter named nope",
		},
		{
			name:   "variadic constructor",
			source: "package app\n\n//cortex::service\ntype S struct{}\n\nfunc NewS(a ...int) *S { return nil }\n",
			want:   "variadic parameter",
		},
		{
			name:   "hook with params",
			source: "package app\n\n//cortex::service\ntype S struct{}\n\n//cortex::post_construct\nfunc (s *S) Init(n int) {}\n",
			want:   "must not take parameters",
		},
		{
			name:   "duplicate hook",
			source: "package app\n\n//cortex::service\ntype S struct{}\n\n//cortex::startup\nfunc (s *S) A() {}\n\n//cortex::startup\nfunc (s *S) B() {}\n",
			want:   "already has a //cortex::startup hook",
		},
		{
			name:   "method annotation on function",
			source: "package app\n\n//cortex::bean\nfunc Make() int { return 1 }\n",
			want:   "must annotate a method",
		},
		{
			name:   "method on non service",
			source: "package app\n\ntype S struct{}\n\n//cortex::bean\nfunc (s *S) Make() int { return 1 }\n",
			want:   "S is not a service",
		},
		{
			name:   "type annotation on field",
			source: "package app\n\n//cortex::service\ntype S struct {\n\t//cortex::service\n\tx int\n}\n",
			want:   "belongs on a type",
		},
		{
			name:   "pointer hook on value component",
			source: "package app\n\n//cortex::service\ntype S struct{}\n\nfunc NewS() S { return S{} }\n\n//cortex::pre_destroy\nfunc (s *S) Close() {}\n",
			want:   "pointer receiver",
		},
		{
			name:   "unknown proxy",
			source: "package app\n\n//cortex::service -Proxy=Missing\ntype S struct{}\n",
			want:   "proxy interface Missing is not declared",
		},
		{
			name:   "unresolved package",
			source: "package app\n\n//cortex::service\ntype S struct{}\n\nfunc NewS(c *http.Client) *S { return nil }\n",
			want:   `cannot resolve package "http"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(nil, nil).ParseSource("app.go", tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "app.go:")
		})
	}
}

func TestParseSource_CollectsEveryError(t *testing.T) {
	_, err := NewParser(nil, nil).ParseSource("app.go", `package app

//cortex::service -Init=Missing
type A struct{}

//cortex::service -Bogus=1
type B struct{}
`)
	require.Error(t, err)
	assert.Len(t, errors.List(err), 2)
	assert.True(t, errors.HasCode(err, errors.DiscoveryErrorCode))
	assert.True(t, errors.HasCode(err, errors.ValidationErrorCode))
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("clock.go", "package timing\n\n//cortex::service\ntype Clock struct{}\n")
	write("ticker.go", "package timing\n\n//cortex::service\ntype Ticker struct{}\n\nfunc NewTicker(c *Clock) *Ticker { return nil }\n")
	write("clock_test.go", "package timing\n\n//cortex::service\ntype Fake struct{}\n")
	write(DefaultOutputFile, "// Code generated by cortex. DO NOT EDIT.\n\npackage timing\n\n//cortex::service\ntype Stale struct{}\n")

	pkg, err := NewParser(nil, nil).ParseDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, "timing", pkg.PackageName)
	assert.Equal(t, dir, pkg.PackagePath)
	require.Len(t, pkg.Components, 2)
	assert.Equal(t, "Clock", pkg.Components[0].TypeName)
	assert.Equal(t, "Ticker", pkg.Components[1].TypeName)

	_, err = NewParser(nil, nil).ParseDirectory(filepath.Join(dir, "missing"))
	assert.Equal(t, errors.FileSystemErrorCode, errors.Code(err))
}

func TestGuessPackageName(t *testing.T) {
	tests := map[string]string{
		"database/sql":                   "sql",
		"github.com/labstack/echo/v4":    "echo",
		"gopkg.in/yaml.v3":               "yaml",
		"github.com/pelletier/go-toml/v2": "toml",
		"go.uber.org/zap":                "zap",
	}
	for importPath, want := range tests {
		assert.Equal(t, want, guessPackageName(importPath), importPath)
	}
}
