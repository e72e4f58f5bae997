package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ValueKind tags the variant stored in a Value.
type ValueKind int

const (
	ValueKindNull ValueKind = iota
	ValueKindText
	ValueKindNumber
	ValueKindBool
	ValueKindTime
	ValueKindList
)

// Value is one attribute value inside a record's schemaless bag: a tagged
// variant that round-trips through JSONB. Raw JSON carries no date type, so
// date-kind strings stay ValueKindText until coerced against a field
// definition (see CoerceBag).
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
	Time   time.Time
	List   []string
}

// NullValue is the explicit JSON null.
func NullValue() Value { return Value{Kind: ValueKindNull} }

func TextValue(s string) Value    { return Value{Kind: ValueKindText, Text: s} }
func NumberValue(f float64) Value { return Value{Kind: ValueKindNumber, Number: f} }
func BoolValue(b bool) Value      { return Value{Kind: ValueKindBool, Bool: b} }
func TimeValue(t time.Time) Value { return Value{Kind: ValueKindTime, Time: t} }
func ListValue(ss []string) Value { return Value{Kind: ValueKindList, List: ss} }

// IsEmpty reports whether the value is null or an empty string, the two
// states treated as "no value" by relationship validation and IS_EMPTY rules.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case ValueKindNull:
		return true
	case ValueKindText:
		return v.Text == ""
	}
	return false
}

// AsText renders the value as the comparison string used by rule evaluation
// and relationship reads. Null renders as "".
func (v Value) AsText() string {
	switch v.Kind {
	case ValueKindText:
		return v.Text
	case ValueKindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueKindBool:
		return strconv.FormatBool(v.Bool)
	case ValueKindTime:
		return v.Time.UTC().Format(time.RFC3339)
	}
	return ""
}

// MarshalJSON encodes the variant as its native JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueKindText:
		return json.Marshal(v.Text)
	case ValueKindNumber:
		return json.Marshal(v.Number)
	case ValueKindBool:
		return json.Marshal(v.Bool)
	case ValueKindTime:
		return json.Marshal(v.Time.UTC().Format(time.RFC3339))
	case ValueKindList:
		return json.Marshal(v.List)
	}
	return []byte("null"), nil
}

// UnmarshalJSON infers the variant from the native JSON type. Objects and
// mixed arrays are rejected: the bag holds only scalar and string-list values.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = TextValue(x)
	case float64:
		*v = NumberValue(x)
	case bool:
		*v = BoolValue(x)
	case []any:
		list := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("attribute list element is not a string: %v", item)
			}
			list = append(list, s)
		}
		*v = ListValue(list)
	default:
		return fmt.Errorf("unsupported attribute value type %T", raw)
	}
	return nil
}

// Bag is a record's schemaless attribute map, keyed by field key.
type Bag map[string]Value

// Get returns the value stored under key and whether the key is present.
func (b Bag) Get(key string) (Value, bool) {
	v, ok := b[key]
	return v, ok
}

// TextOf returns the text rendering of the value under key, "" if absent.
func (b Bag) TextOf(key string) string {
	v, ok := b[key]
	if !ok {
		return ""
	}
	return v.AsText()
}

// Keys returns the field keys in sorted order.
func (b Bag) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dateLayouts accepted for DATE-kind coercion.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// CoerceBag validates and converts raw attribute values against their field
// definitions. Typing is enforced here, at the registry-driven boundary,
// rather than at every read site. Keys without a definition pass through
// unchanged. Required fields that are absent or empty produce a field error.
// Returns the coerced bag and a ValidationError listing every offending field
// (checking does not stop at the first failure).
func CoerceBag(fields []FieldDefinition, raw Bag) (Bag, error) {
	out := make(Bag, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	var fieldErrs []FieldError
	for _, f := range fields {
		v, present := raw[f.Key]
		if !present || v.IsEmpty() {
			if f.Required {
				fieldErrs = append(fieldErrs, FieldError{Field: f.Key, Message: "required"})
			}
			continue
		}

		coerced, err := coerceValue(f.Kind, v)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: f.Key, Message: err.Error()})
			continue
		}
		out[f.Key] = coerced
	}

	if len(fieldErrs) > 0 {
		return nil, NewValidationErrors(fieldErrs)
	}
	return out, nil
}

func coerceValue(kind FieldKind, v Value) (Value, error) {
	switch kind {
	case FieldKindText, FieldKindSelect, FieldKindRelationship:
		if v.Kind != ValueKindText {
			return Value{}, fmt.Errorf("expected text, got %s", kindName(v.Kind))
		}
		return v, nil

	case FieldKindNumber:
		switch v.Kind {
		case ValueKindNumber:
			return v, nil
		case ValueKindText:
			f, err := strconv.ParseFloat(v.Text, 64)
			if err != nil {
				return Value{}, fmt.Errorf("not a number: %q", v.Text)
			}
			return NumberValue(f), nil
		}
		return Value{}, fmt.Errorf("expected number, got %s", kindName(v.Kind))

	case FieldKindBoolean:
		if v.Kind != ValueKindBool {
			return Value{}, fmt.Errorf("expected boolean, got %s", kindName(v.Kind))
		}
		return v, nil

	case FieldKindDate:
		if v.Kind == ValueKindTime {
			return v, nil
		}
		if v.Kind == ValueKindText {
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, v.Text); err == nil {
					return TimeValue(t), nil
				}
			}
		}
		return Value{}, fmt.Errorf("not a date: %q", v.AsText())

	case FieldKindMultiSelect:
		if v.Kind != ValueKindList {
			return Value{}, fmt.Errorf("expected list, got %s", kindName(v.Kind))
		}
		return v, nil
	}
	return Value{}, fmt.Errorf("unknown field kind %q", kind)
}

func kindName(k ValueKind) string {
	switch k {
	case ValueKindNull:
		return "null"
	case ValueKindText:
		return "text"
	case ValueKindNumber:
		return "number"
	case ValueKindBool:
		return "boolean"
	case ValueKindTime:
		return "date"
	case ValueKindList:
		return "list"
	}
	return "unknown"
}
