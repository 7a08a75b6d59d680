package fields

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Value is a schema-less field value that keeps its JSON type across
// storage round trips: a numeric edit reads back as a number, never as
// a numeric string.
type Value struct {
	kind DataType
	num  float64
	text string
	flag bool
	list []string
}

// Null is the absent value
var Null = Value{}

func Number(n float64) Value     { return Value{kind: DataTypeNumber, num: n} }
func Text(s string) Value        { return Value{kind: DataTypeText, text: s} }
func Bool(b bool) Value          { return Value{kind: DataTypeBoolean, flag: b} }
func List(items ...string) Value { return Value{kind: DataTypeList, list: slices.Clone(items)} }

// IsNull reports whether the value is absent
func (v Value) IsNull() bool { return v.kind == "" }

// DataType returns the value's kind; empty for Null
func (v Value) DataType() DataType { return v.kind }

func (v Value) Num() (float64, bool) { return v.num, v.kind == DataTypeNumber }
func (v Value) Str() (string, bool)  { return v.text, v.kind == DataTypeText }
func (v Value) Flag() (bool, bool)   { return v.flag, v.kind == DataTypeBoolean }
func (v Value) Items() ([]string, bool) {
	return slices.Clone(v.list), v.kind == DataTypeList
}

// Equal compares kind and content. Lists compare element-wise in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case DataTypeNumber:
		return v.num == o.num
	case DataTypeText:
		return v.text == o.text
	case DataTypeBoolean:
		return v.flag == o.flag
	case DataTypeList:
		return slices.Equal(v.list, o.list)
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case DataTypeNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case DataTypeText:
		return v.text
	case DataTypeBoolean:
		if v.flag {
			return "yes"
		}
		return "no"
	case DataTypeList:
		return strings.Join(v.list, ", ")
	}
	return ""
}

// Ptr returns nil for Null, otherwise a pointer to a copy of v
func (v Value) Ptr() *Value {
	if v.IsNull() {
		return nil
	}
	return &v
}

// Deref returns Null for a nil pointer
func Deref(v *Value) Value {
	if v == nil {
		return Null
	}
	return *v
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case DataTypeNumber:
		return json.Marshal(v.num)
	case DataTypeText:
		return json.Marshal(v.text)
	case DataTypeBoolean:
		return json.Marshal(v.flag)
	case DataTypeList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("list values must contain strings: %w", err)
		}
		*v = List(items...)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported field value %s: %w", data, err)
		}
		*v = Number(n)
	}
	return nil
}

// Value stores the value as JSON text; Null stores SQL NULL
func (v Value) Value() (driver.Value, error) {
	if v.IsNull() {
		return nil, nil
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON column back into a typed value
func (v *Value) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = Null
		return nil
	case []byte:
		return v.UnmarshalJSON(s)
	case string:
		return v.UnmarshalJSON([]byte(s))
	}
	return fmt.Errorf("cannot scan %T into fields.Value", src)
}
