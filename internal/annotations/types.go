package annotations

import (
	"fmt"

	"github.com/toyz/cortex/internal/errors"
)

// AnnotationType represents the type of annotation
type AnnotationType int

const (
	ServiceAnnotation AnnotationType = iota
	BeanAnnotation
	PostConstructAnnotation
	PreDestroyAnnotation
	StartupAnnotation
	InjectAnnotation
	MarkerAnnotation
)

var annotationNames = map[AnnotationType]string{
	ServiceAnnotation:       "service",
	BeanAnnotation:          "bean",
	PostConstructAnnotation: "post_construct",
	PreDestroyAnnotation:    "pre_destroy",
	StartupAnnotation:       "startup",
	InjectAnnotation:        "inject",
	MarkerAnnotation:        "marker",
}

// String returns the string representation of the annotation type
func (a AnnotationType) String() string {
	if name, ok := annotationNames[a]; ok {
		return name
	}
	return "unknown"
}

// Target reports which kind of declaration the annotation may be attached to.
func (a AnnotationType) Target() TargetKind {
	switch a {
	case BeanAnnotation, PostConstructAnnotation, PreDestroyAnnotation, StartupAnnotation:
		return MethodTarget
	case InjectAnnotation:
		return FieldTarget
	default:
		return TypeTarget
	}
}

// ParseAnnotationType converts string to AnnotationType
func ParseAnnotationType(s string) (AnnotationType, error) {
	for t, name := range annotationNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown annotation type: %s", s)
}

// TargetKind is the declaration kind an annotation decorates.
type TargetKind int

const (
	TypeTarget TargetKind = iota
	MethodTarget
	FieldTarget
)

func (k TargetKind) String() string {
	switch k {
	case MethodTarget:
		return "method"
	case FieldTarget:
		return "field"
	default:
		return "type"
	}
}

// SourceLocation is shared with the error package so locations flow into diagnostics unchanged.
type SourceLocation = errors.SourceLocation

// ParsedAnnotation represents a fully parsed annotation with typed parameters
type ParsedAnnotation struct {
	Type       AnnotationType
	Name       string // as written; differs from Type.String() for aliases
	Target     string
	Parameters map[string]any
	Location   SourceLocation
	Raw        string
}

// GetString returns a string parameter or defaultValue when unset.
func (p *ParsedAnnotation) GetString(key string, defaultValue ...string) string {
	if v, ok := p.Parameters[key].(string); ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// GetBool returns a boolean parameter, false when unset.
func (p *ParsedAnnotation) GetBool(key string) bool {
	v, _ := p.Parameters[key].(bool)
	return v
}

// GetStringSlice returns a list parameter, nil when unset.
func (p *ParsedAnnotation) GetStringSlice(key string) []string {
	v, _ := p.Parameters[key].([]string)
	return v
}

// HasParameter reports whether key was given or defaulted.
func (p *ParsedAnnotation) HasParameter(key string) bool {
	_, ok := p.Parameters[key]
	return ok
}

// ParameterType is the value shape a parameter accepts.
type ParameterType int

const (
	StringType ParameterType = iota
	BoolType
	StringSliceType
)

func (t ParameterType) String() string {
	switch t {
	case BoolType:
		return "bool"
	case StringSliceType:
		return "[]string"
	default:
		return "string"
	}
}

// ParameterSpec describes one `-Key=Value` parameter.
type ParameterSpec struct {
	Type         ParameterType
	Required     bool
	DefaultValue any
	Description  string
	Validator    func(any) error
}

// AnnotationSchema defines the accepted parameters for an annotation type.
type AnnotationSchema struct {
	Type        AnnotationType
	Description string
	Parameters  map[string]ParameterSpec
	Examples    []string
}
