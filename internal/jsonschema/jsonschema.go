// Package jsonschema derives JSON Schema documents from Go types via
// reflection. The subset implemented here covers what tool parameter
// declarations need: objects, primitives, slices, and maps, with
// description/enum/required customization through the `jsonschema` struct tag.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema is a JSON Schema fragment describing one value.
type Schema struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"required,omitempty"`
	// Properties of an object schema, each with its own schema.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Items is the element schema for array types.
	Items *Schema `json:"items,omitempty"`
	// AdditionalProperties carries the value schema for map types.
	AdditionalProperties any `json:"additionalProperties,omitempty"`
	// Enum lists the allowed values for the field.
	Enum []any `json:"enum,omitempty"`
}

// Generate derives a schema from type T. Pointers dereference to their
// element type; unexported and json:"-" fields are skipped.
func Generate[T any]() *Schema {
	return fromType(reflect.TypeFor[T]())
}

func fromType(t reflect.Type) *Schema {
	switch t.Kind() {
	case reflect.Ptr:
		return fromType(t.Elem())
	case reflect.Struct:
		return fromStruct(t)
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: fromType(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: fromType(t.Elem())}
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	default:
		return &Schema{Type: "object"}
	}
}

func fromStruct(t reflect.Type) *Schema {
	schema := &Schema{
		Type:       "object",
		Properties: map[string]*Schema{},
	}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitEmpty := fieldName(field)
		if name == "" {
			continue
		}

		fieldSchema := fromType(field.Type)
		requiredByTag := applyTag(field, fieldSchema)
		schema.Properties[name] = fieldSchema

		// Non-pointer fields without omitempty are required, as is anything
		// the tag marks explicitly.
		if (field.Type.Kind() != reflect.Ptr && !omitEmpty) || requiredByTag {
			required = append(required, name)
		}
	}

	if len(required) > 0 {
		schema.Required = required
	}
	return schema
}

// fieldName resolves the JSON property name for a struct field, honoring the
// json tag. An empty return means the field is excluded.
func fieldName(field reflect.StructField) (name string, omitEmpty bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name = field.Name
	if tag != "" {
		if idx := strings.Index(tag, ","); idx != -1 {
			if tag[:idx] != "" {
				name = tag[:idx]
			}
			omitEmpty = strings.Contains(tag[idx:], "omitempty")
		} else {
			name = tag
		}
	}
	return name, omitEmpty
}

// applyTag parses the `jsonschema` struct tag and applies description, enum,
// and required settings. Enum values are converted to the field's own type;
// values that cannot convert are skipped.
func applyTag(field reflect.StructField, schema *Schema) (requiredByTag bool) {
	tag := field.Tag.Get("jsonschema")
	if tag == "" {
		return false
	}

	for _, item := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		switch {
		case key == "required" && !hasValue:
			requiredByTag = true
		case key == "description" && hasValue:
			schema.Description = value
		case key == "enum" && hasValue:
			if v, ok := convertEnumValue(field.Type, value); ok {
				schema.Enum = append(schema.Enum, v)
			}
		}
	}
	return requiredByTag
}

func convertEnumValue(t reflect.Type, value string) (any, bool) {
	switch t.Kind() {
	case reflect.String:
		return value, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		return v, err == nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		return v, err == nil
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		return v, err == nil
	default:
		return nil, false
	}
}

// String returns the compact JSON representation of the schema.
func (s *Schema) String() string {
	jsonBytes, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(jsonBytes)
}
