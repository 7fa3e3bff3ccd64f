package annotations

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/toyz/cortex/internal/errors"
)

// Prefix is the namespace every annotation comment starts with.
const Prefix = "cortex"

var annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//`},
	{Name: "Separator", Pattern: `::`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Dash", Pattern: `-`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

type annotationNode struct {
	Prefix string       `parser:"Comment @Ident Separator"`
	Name   string       `parser:"@Ident"`
	Params []*paramNode `parser:"@@*"`
}

type paramNode struct {
	Key    string   `parser:"Dash @Ident"`
	Values []string `parser:"( Equals @(String | Ident | Number) ( Comma @(String | Ident | Number) )* )?"`
}

var grammar = participle.MustBuild[annotationNode](
	participle.Lexer(annotationLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// IsAnnotation reports whether a comment line is a cortex annotation.
func IsAnnotation(comment string) bool {
	return strings.HasPrefix(strings.TrimSpace(comment), "//"+Prefix+"::")
}

// Parser turns annotation comments into ParsedAnnotations checked against a registry.
type Parser struct {
	registry *AnnotationRegistry
}

// NewParser creates a parser; a nil registry means DefaultRegistry.
func NewParser(registry *AnnotationRegistry) *Parser {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Parser{registry: registry}
}

// Registry returns the schema registry the parser validates against.
func (p *Parser) Registry() *AnnotationRegistry { return p.registry }

// Parse parses a single `//cortex::name -Key=Value` comment.
func (p *Parser) Parse(comment string, loc SourceLocation) (*ParsedAnnotation, error) {
	raw := strings.TrimSpace(comment)
	node, err := grammar.ParseString(loc.File, raw)
	if err != nil {
		return nil, errors.Wrap(errors.SyntaxErrorCode, "malformed annotation", err).
			WithLocation(loc).
			WithContext("annotation", raw)
	}
	if node.Prefix != Prefix {
		return nil, errors.SyntaxError(loc, "annotation must start with //%s::, got //%s::", Prefix, node.Prefix)
	}

	typ, presets, ok := p.registry.Resolve(node.Name)
	if !ok {
		return nil, errors.SyntaxError(loc, "unknown annotation %q", node.Name).
			WithSuggestion(fmt.Sprintf("known annotations: %s", strings.Join(p.knownNames(), ", ")))
	}
	schema, err := p.registry.GetSchema(typ)
	if err != nil {
		return nil, errors.Wrap(errors.SchemaErrorCode, "missing schema", err).WithLocation(loc)
	}

	params := make(map[string]any, len(node.Params))
	for _, param := range node.Params {
		spec, ok := schema.Parameters[param.Key]
		if !ok {
			return nil, errors.Newf(errors.ValidationErrorCode, "unknown parameter -%s for //%s::%s", param.Key, Prefix, node.Name).
				WithLocation(loc).
				WithSuggestion(fmt.Sprintf("valid parameters: %s", strings.Join(slices.Sorted(maps.Keys(schema.Parameters)), ", ")))
		}
		if _, dup := params[param.Key]; dup {
			return nil, errors.Newf(errors.ValidationErrorCode, "parameter -%s given twice", param.Key).WithLocation(loc)
		}
		value, err := convertValue(param.Values, spec.Type)
		if err != nil {
			return nil, errors.ValidationError(loc, param.Key, spec.Type.String(), err.Error())
		}
		if spec.Validator != nil {
			if err := spec.Validator(value); err != nil {
				return nil, errors.Wrapf(errors.ValidationErrorCode, err, "invalid -%s", param.Key).WithLocation(loc)
			}
		}
		params[param.Key] = value
	}

	for key, value := range presets {
		if _, set := params[key]; !set {
			params[key] = value
		}
	}
	for key, spec := range schema.Parameters {
		if _, set := params[key]; set {
			continue
		}
		if spec.Required {
			return nil, errors.Newf(errors.ValidationErrorCode, "missing required parameter -%s", key).WithLocation(loc)
		}
		if spec.DefaultValue != nil {
			params[key] = spec.DefaultValue
		}
	}

	return &ParsedAnnotation{
		Type:       typ,
		Name:       node.Name,
		Parameters: params,
		Location:   loc,
		Raw:        raw,
	}, nil
}

func (p *Parser) knownNames() []string {
	names := make([]string, 0, len(annotationNames))
	for _, t := range p.registry.ListTypes() {
		names = append(names, t.String())
	}
	return append(names, p.registry.Aliases()...)
}

func convertValue(values []string, t ParameterType) (any, error) {
	switch t {
	case BoolType:
		switch {
		case len(values) == 0:
			return true, nil
		case len(values) == 1 && values[0] == "true":
			return true, nil
		case len(values) == 1 && values[0] == "false":
			return false, nil
		}
		return nil, fmt.Errorf("%q", strings.Join(values, ","))
	case StringSliceType:
		if len(values) == 0 {
			return nil, fmt.Errorf("no value")
		}
		return slices.Clone(values), nil
	default:
		if len(values) != 1 {
			return nil, fmt.Errorf("%d values", len(values))
		}
		return values[0], nil
	}
}
