package annotations

import (
	"fmt"
	"go/token"
	"strings"
)

func identifier(v any) error {
	s := v.(string)
	if !token.IsIdentifier(s) {
		return fmt.Errorf("%q is not a Go identifier", s)
	}
	return nil
}

func identifiers(v any) error {
	for _, s := range v.([]string) {
		if err := identifier(s); err != nil {
			return err
		}
	}
	return nil
}

func typeName(v any) error {
	s := v.(string)
	pkg, name, qualified := strings.Cut(s, ".")
	if !token.IsIdentifier(name) || (qualified && !token.IsIdentifier(pkg)) {
		return fmt.Errorf("%q is not a type name", s)
	}
	return nil
}

func componentName(v any) error {
	if v.(string) == "" {
		return fmt.Errorf("name must not be empty")
	}
	return nil
}

// ServiceAnnotationSchema defines the schema for //cortex::service annotations
var ServiceAnnotationSchema = AnnotationSchema{
	Type:        ServiceAnnotation,
	Description: "Marks a struct as a component the registry constructs",
	Parameters: map[string]ParameterSpec{
		"Name": {
			Type:        StringType,
			Description: "Registry key; defaults to the type name",
			Validator:   componentName,
		},
		"Marker": {
			Type:        StringType,
			Description: "Marker type used by GetServicesByMarker",
			Validator:   typeName,
		},
		"Init": {
			Type:        StringType,
			Description: "Constructor function; defaults to New<Type> with the fewest parameters",
			Validator:   identifier,
		},
		"Proxy": {
			Type:        StringType,
			Description: "Interface the generated forwarding stand-in implements",
			Validator:   identifier,
		},
		"Optional": {
			Type:        StringSliceType,
			Description: "Constructor parameters that may be left nil",
			Validator:   identifiers,
		},
		"Deferred": {
			Type:        StringSliceType,
			Description: "Constructor parameters filled with a stand-in before construction",
			Validator:   identifiers,
		},
	},
	Examples: []string{
		"//cortex::service",
		"//cortex::service -Name=users",
		"//cortex::service -Init=NewUserStore -Optional=cache",
		"//cortex::service -Proxy=Pinger -Deferred=pong",
		"//cortex::service -Marker=AdminMarker",
	},
}

// BeanAnnotationSchema defines the schema for //cortex::bean annotations
var BeanAnnotationSchema = AnnotationSchema{
	Type:        BeanAnnotation,
	Description: "Marks a service method as a factory member producing a component",
	Parameters: map[string]ParameterSpec{
		"Name": {
			Type:        StringType,
			Description: "Product name suffix; defaults to the method name",
			Validator:   componentName,
		},
		"Optional": {
			Type:        StringSliceType,
			Description: "Method parameters that may be left nil",
			Validator:   identifiers,
		},
	},
	Examples: []string{
		"//cortex::bean",
		"//cortex::bean -Name=primary",
	},
}

// InjectAnnotationSchema defines the schema for //cortex::inject annotations
var InjectAnnotationSchema = AnnotationSchema{
	Type:        InjectAnnotation,
	Description: "Marks a struct field as a field slot filled after construction",
	Parameters:  map[string]ParameterSpec{},
	Examples:    []string{"//cortex::inject"},
}

// MarkerAnnotationSchema defines the schema for //cortex::marker annotations
var MarkerAnnotationSchema = AnnotationSchema{
	Type:        MarkerAnnotation,
	Description: "Declares a marker type; -Alias registers a service annotation that applies it",
	Parameters: map[string]ParameterSpec{
		"Name": {
			Type:        StringType,
			Description: "Value returned by MarkerName; defaults to the type name",
			Validator:   componentName,
		},
		"Alias": {
			Type:        StringType,
			Description: "Annotation name equivalent to //cortex::service -Marker=<this type>",
			Validator:   identifier,
		},
	},
	Examples: []string{
		"//cortex::marker",
		"//cortex::marker -Name=admin -Alias=admin",
	},
}

func hookSchema(t AnnotationType, description string) AnnotationSchema {
	return AnnotationSchema{
		Type:        t,
		Description: description,
		Parameters:  map[string]ParameterSpec{},
		Examples:    []string{"//cortex::" + t.String()},
	}
}

// BuiltinSchemas returns every schema the default registry knows.
func BuiltinSchemas() []AnnotationSchema {
	return []AnnotationSchema{
		ServiceAnnotationSchema,
		BeanAnnotationSchema,
		hookSchema(PostConstructAnnotation, "Runs on the instance after fields are injected"),
		hookSchema(PreDestroyAnnotation, "Runs on the instance before it is discarded"),
		hookSchema(StartupAnnotation, "Entry point run once the registry is initialized"),
		InjectAnnotationSchema,
		MarkerAnnotationSchema,
	}
}
