package annotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/cortex/internal/errors"
)

var loc = SourceLocation{File: "service.go", Line: 10}

func TestIsAnnotation(t *testing.T) {
	assert.True(t, IsAnnotation("//cortex::service"))
	assert.True(t, IsAnnotation("  //cortex::bean -Name=x"))
	assert.False(t, IsAnnotation("// cortex::service"))
	assert.False(t, IsAnnotation("//inject::service"))
	assert.False(t, IsAnnotation("// regular comment"))
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		typ     AnnotationType
		checkFn func(t *testing.T, a *ParsedAnnotation)
	}{
		{
			name:  "bare service",
			input: "//cortex::service",
			typ:   ServiceAnnotation,
			checkFn: func(t *testing.T, a *ParsedAnnotation) {
				assert.Empty(t, a.Parameters)
				assert.Equal(t, "fallback", a.GetString("Name", "fallback"))
			},
		},
		{
			name:  "named service with init",
			input: "//cortex::service -Name=users -Init=NewUserStore",
			typ:   ServiceAnnotation,
			checkFn: func(t *testing.T, a *ParsedAnnotation) {
				assert.Equal(t, "users", a.GetString("Name"))
				assert.Equal(t, "NewUserStore", a.GetString("Init"))
			},
		},
		{
			name:  "quoted name",
			input: `//cortex::service -Name="user store"`,
			typ:   ServiceAnnotation,
			checkFn: func(t *testing.T, a *ParsedAnnotation) {
				assert.Equal(t, "user store", a.GetString("Name"))
			},
		},
		{
			name:  "list parameters",
			input: "//cortex::service -Optional=cache,metrics -Deferred=pong",
			typ:   ServiceAnnotation,
			checkFn: func(t *testing.T, a *ParsedAnnotation) {
				assert.Equal(t, []string{"cache", "metrics"}, a.GetStringSlice("Optional"))
				assert.Equal(t, []string{"pong"}, a.GetStringSlice("Deferred"))
				assert.False(t, a.HasParameter("Proxy"))
			},
		},
		{
			name:  "bean",
			input: "//cortex::bean -Name=primary",
			typ:   BeanAnnotation,
			checkFn: func(t *testing.T, a *ParsedAnnotation) {
				assert.Equal(t, "primary", a.GetString("Name"))
				assert.Equal(t, MethodTarget, a.Type.Target())
			},
		},
		{
			name:  "hook",
			input: "//cortex::post_construct",
			typ:   PostConstructAnnotation,
		},
		{
			name:  "inject",
			input: "  //cortex::inject  ",
			typ:   InjectAnnotation,
			checkFn: func(t *testing.T, a *ParsedAnnotation) {
				assert.Equal(t, "//cortex::inject", a.Raw)
				assert.Equal(t, FieldTarget, a.Type.Target())
			},
		},
	}

	p := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := p.Parse(tt.input, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, a.Type)
			assert.Equal(t, loc, a.Location)
			if tt.checkFn != nil {
				tt.checkFn(t, a)
			}
		})
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  errors.ErrorCode
	}{
		{"wrong prefix", "//inject::service", errors.SyntaxErrorCode},
		{"unknown annotation", "//cortex::controller", errors.SyntaxErrorCode},
		{"unknown parameter", "//cortex::service -Mode=Transient", errors.ValidationErrorCode},
		{"duplicate parameter", "//cortex::service -Name=a -Name=b", errors.ValidationErrorCode},
		{"list for string", "//cortex::service -Init=NewA,NewB", errors.ValidationErrorCode},
		{"missing value", "//cortex::service -Name", errors.ValidationErrorCode},
		{"not an identifier", `//cortex::service -Init="New A"`, errors.ValidationErrorCode},
		{"dangling dash", "//cortex::service -", errors.SyntaxErrorCode},
		{"parameters on hook", "//cortex::startup -Name=x", errors.ValidationErrorCode},
	}

	p := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.input, loc)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.Code(err))
			assert.Contains(t, err.Error(), "service.go:10")
		})
	}
}

func TestParser_Aliases(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterAlias(Alias{Name: "component", Type: ServiceAnnotation}))
	require.NoError(t, reg.RegisterAlias(Alias{
		Name:     "admin",
		Type:     ServiceAnnotation,
		Defaults: map[string]any{"Marker": "AdminMarker"},
	}))

	p := NewParser(reg)

	a, err := p.Parse("//cortex::component -Name=x", loc)
	require.NoError(t, err)
	assert.Equal(t, ServiceAnnotation, a.Type)
	assert.Equal(t, "component", a.Name)

	a, err = p.Parse("//cortex::admin", loc)
	require.NoError(t, err)
	assert.Equal(t, "AdminMarker", a.GetString("Marker"))

	a, err = p.Parse("//cortex::admin -Marker=OpsMarker", loc)
	require.NoError(t, err)
	assert.Equal(t, "OpsMarker", a.GetString("Marker"), "explicit parameters win over alias presets")

	_, err = NewParser(nil).Parse("//cortex::component", loc)
	assert.Error(t, err, "aliases are scoped to their registry")
}
