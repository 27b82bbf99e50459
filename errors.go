package kindred

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrInvalidDecimal indicates decimal precision or scale outside the supported range.
	ErrInvalidDecimal = errors.New("invalid decimal parameters")

	// ErrDuplicateRole indicates more than one field claims the same special role.
	ErrDuplicateRole = errors.New("duplicate role")

	// ErrMissingIdentifier indicates an entity without an identifier field.
	ErrMissingIdentifier = errors.New("missing identifier")

	// ErrInvalidRoleType indicates a special-role field of an unsupported type.
	ErrInvalidRoleType = errors.New("invalid type for role")

	// ErrNonStringMapKey indicates a map field whose key type is not a string.
	ErrNonStringMapKey = errors.New("map key must be a string")

	// ErrDuplicateName indicates two fields of a class share a mapped name.
	ErrDuplicateName = errors.New("duplicate mapped name")

	// ErrRecursiveType indicates a type that embeds itself.
	ErrRecursiveType = errors.New("recursive type")

	// ErrUnknownIndexer indicates a secondary index naming an unregistered indexer.
	ErrUnknownIndexer = errors.New("unknown indexer")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidDeclaration indicates a Declare call with inconsistent options.
	ErrInvalidDeclaration = errors.New("invalid declaration")

	// ErrNoSuitableMapper indicates no mapper exists for a type.
	ErrNoSuitableMapper = errors.New("no suitable mapper")

	// ErrRange indicates a stored integer does not fit the model type.
	ErrRange = errors.New("value out of range")

	// ErrUnsupportedType indicates a runtime value the catch-all mapper cannot handle.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrMalformedValue indicates stored text that does not parse as the model type.
	ErrMalformedValue = errors.New("malformed value")

	// ErrPrecision indicates a decimal that needs rounding or exceeds its precision.
	ErrPrecision = errors.New("decimal precision exceeded")

	// ErrTypeMismatch indicates a native value of the wrong kind for the target.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrMissingProperty indicates a required property absent from a document.
	ErrMissingProperty = errors.New("missing property")

	// ErrInvalidTarget indicates a value that is not a pointer to a mapped struct.
	ErrInvalidTarget = errors.New("invalid target")
)

// ConfigError represents a mapping configuration error detected at introspection
// or construction time.
type ConfigError struct {
	Err    error  // Underlying sentinel error
	Type   string // Type that triggered the error
	Field  string // Field name, when the error concerns one field
	Detail string // Additional context
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	switch {
	case e.Type != "" && e.Field != "":
		fmt.Fprintf(&b, " (type %s, field %s)", e.Type, e.Field)
	case e.Type != "":
		fmt.Fprintf(&b, " (type %s)", e.Type)
	case e.Field != "":
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConversionError represents a failure while encoding or decoding a value.
type ConversionError struct {
	Err   error  // Underlying sentinel error
	Type  string // Model type being converted
	Field string // Field path, e.g. "address.city" or "tags[2]"
	Value any    // Offending value, model or native
	Cause error  // Original error from a parser, when any
}

func (e *ConversionError) Error() string {
	var b strings.Builder
	if e.Field != "" {
		fmt.Fprintf(&b, "field %s: ", e.Field)
	}
	b.WriteString(e.Err.Error())
	if e.Type != "" {
		fmt.Fprintf(&b, " for %s", e.Type)
	}
	if e.Value != nil {
		fmt.Fprintf(&b, " (value %v)", e.Value)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// newConfigError creates a ConfigError for a type and optional field.
func newConfigError(sentinel error, t reflect.Type, field, detail string) error {
	return &ConfigError{
		Err:    sentinel,
		Type:   typeName(t),
		Field:  field,
		Detail: detail,
	}
}

// newConversionError creates a ConversionError for a model type and offending value.
func newConversionError(sentinel error, t reflect.Type, value any, cause error) error {
	return &ConversionError{
		Err:   sentinel,
		Type:  typeName(t),
		Value: value,
		Cause: cause,
	}
}

// mismatch reports a native value of the wrong kind for t.
func mismatch(t reflect.Type, v Value) error {
	return newConversionError(ErrTypeMismatch, t, v.Kind().String(), nil)
}

// atField prefixes the field path of a conversion or config error.
// Element paths ("[2]") attach without a separator.
func atField(err error, name string) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		ce.Field = joinPath(name, ce.Field)
		return err
	}
	var cfg *ConfigError
	if errors.As(err, &cfg) {
		cfg.Field = joinPath(name, cfg.Field)
	}
	return err
}

func joinPath(head, tail string) string {
	switch {
	case tail == "":
		return head
	case strings.HasPrefix(tail, "["):
		return head + tail
	default:
		return head + "." + tail
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
