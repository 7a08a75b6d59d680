// Package fields defines the closed catalog of correctable attributes.
//
// Every editable attribute belongs to exactly one entity kind. The Field
// interface is sealed: only UnitField, BuildingField and ClientField satisfy
// it, and each carries its own TargetType, so a field of one entity kind
// cannot be attached to another.
package fields

import (
	"errors"
	"fmt"
	"strings"
)

// TargetType is the kind of entity a field edit applies to
type TargetType string

const (
	TargetUnit     TargetType = "unit"
	TargetBuilding TargetType = "building"
	TargetClient   TargetType = "client"
)

// IsValid reports whether t is a known entity kind
func (t TargetType) IsValid() bool {
	switch t {
	case TargetUnit, TargetBuilding, TargetClient:
		return true
	}
	return false
}

// Scraped reports whether entities of this kind have a scraped baseline
func (t TargetType) Scraped() bool {
	return t == TargetUnit || t == TargetBuilding
}

// DataType is the declared value type of a field
type DataType string

const (
	DataTypeNumber  DataType = "number"
	DataTypeText    DataType = "text"
	DataTypeBoolean DataType = "boolean"
	DataTypeList    DataType = "list"
)

// Spec describes how a field is typed and displayed
type Spec struct {
	DataType DataType `json:"data_type"`
	Label    string   `json:"label"`
	Prefix   string   `json:"prefix,omitempty"`
	Suffix   string   `json:"suffix,omitempty"`
}

// Field is one correctable attribute of a specific entity kind
type Field interface {
	Target() TargetType
	Name() string
	Spec() Spec
	sealed()
}

// Key identifies the edit history of one field on one entity
type Key struct {
	Field    Field
	TargetID string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Field.Target(), k.TargetID, k.Field.Name())
}

// Parse resolves a wire-level (targetType, fieldName) pair to a Field.
// Unknown pairs fail with a *ValidationError.
func Parse(targetType TargetType, name string) (Field, error) {
	name = strings.TrimSpace(name)
	switch targetType {
	case TargetUnit:
		f := UnitField(name)
		if _, ok := unitSpecs[f]; ok {
			return f, nil
		}
	case TargetBuilding:
		f := BuildingField(name)
		if _, ok := buildingSpecs[f]; ok {
			return f, nil
		}
	case TargetClient:
		f := ClientField(name)
		if _, ok := clientSpecs[f]; ok {
			return f, nil
		}
	default:
		return nil, &ValidationError{Field: "target_type", Message: fmt.Sprintf("unknown target type %q", targetType)}
	}
	return nil, &ValidationError{Field: "field_name", Message: fmt.Sprintf("%q is not an editable %s field", name, targetType)}
}

// FieldsFor lists the partition for a target type in declaration order
func FieldsFor(targetType TargetType) []Field {
	var out []Field
	switch targetType {
	case TargetUnit:
		for _, f := range unitOrder {
			out = append(out, f)
		}
	case TargetBuilding:
		for _, f := range buildingOrder {
			out = append(out, f)
		}
	case TargetClient:
		for _, f := range clientOrder {
			out = append(out, f)
		}
	}
	return out
}

// Format renders a value with the field's prefix and suffix
func Format(f Field, v Value) string {
	if v.IsNull() {
		return ""
	}
	spec := f.Spec()
	return spec.Prefix + v.String() + spec.Suffix
}

// ErrInvalid is matched by every *ValidationError
var ErrInvalid = errors.New("invalid field edit")

// ValidationError reports an illegal field or value
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Validate checks that v is a legal correction value for f
func Validate(f Field, v Value) error {
	if f == nil {
		return &ValidationError{Field: "field_name", Message: "field is required"}
	}
	want := f.Spec().DataType
	if want == "" {
		return &ValidationError{Field: "field_name", Message: fmt.Sprintf("%q is not an editable %s field", f.Name(), f.Target())}
	}
	if v.IsNull() {
		return &ValidationError{Field: f.Name(), Message: "new value is required"}
	}
	if v.DataType() != want {
		return &ValidationError{
			Field:   f.Name(),
			Message: fmt.Sprintf("expected %s value, got %s", want, v.DataType()),
		}
	}
	return nil
}
