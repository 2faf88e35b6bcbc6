// Package jsonvalue provides a generic JSON value tree for payloads whose
// shape is not known up front (scraped structured data, third-party search
// responses, login replies).
//
// Values are decoded with go-faster/jx into an immutable sum type and walked
// with a depth-bounded visitor, so pathological nesting can neither blow the
// stack nor make extraction unbounded.
package jsonvalue

import (
	"strconv"
	"strings"
)

// Kind enumerates JSON value kinds.
type Kind uint8

// Value kinds.
const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Field is a single object member. Member order follows the source document.
type Field struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. The zero Value is JSON null.
type Value struct {
	kind Kind
	b    bool
	// s holds the string contents, or the literal text of a number.
	s      string
	items  []Value
	fields []Field
}

// Constructors, mostly useful in tests.

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: String, s: s} }

// NewNumber returns a number value from its literal text.
func NewNumber(literal string) Value { return Value{kind: Number, s: literal} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

// NewArray returns an array value.
func NewArray(items ...Value) Value { return Value{kind: Array, items: items} }

// NewObject returns an object value.
func NewObject(fields ...Field) Value { return Value{kind: Object, fields: fields} }

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null (or missing).
func (v Value) IsNull() bool { return v.kind == Null }

// Get returns the member named key. Missing members and non-objects yield
// null and false.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// At returns the member named key, or null.
func (v Value) At(key string) Value {
	out, _ := v.Get(key)
	return out
}

// Path follows a chain of member names.
func (v Value) Path(keys ...string) Value {
	for _, k := range keys {
		v = v.At(k)
	}
	return v
}

// Index returns the i-th array element, or null.
func (v Value) Index(i int) Value {
	if v.kind != Array || i < 0 || i >= len(v.items) {
		return Value{}
	}
	return v.items[i]
}

// First returns the first element of an array, or v itself when v is not an
// array. Many upstream fields are "one value or a list of values".
func (v Value) First() Value {
	if v.kind == Array {
		return v.Index(0)
	}
	return v
}

// Len returns the number of array elements or object members.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return len(v.fields)
	default:
		return 0
	}
}

// Items returns the array elements. The slice must not be modified.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.items
}

// Fields returns the object members. The slice must not be modified.
func (v Value) Fields() []Field {
	if v.kind != Object {
		return nil
	}
	return v.fields
}

// Str returns the string contents when v is a string.
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// StrOr returns the string contents, or def when v is not a string.
func (v Value) StrOr(def string) string {
	if s, ok := v.Str(); ok {
		return s
	}
	return def
}

// Literal returns the text of a string or number value. Identifiers are
// frequently sent as either.
func (v Value) Literal() (string, bool) {
	switch v.kind {
	case String, Number:
		return v.s, true
	default:
		return "", false
	}
}

// Float returns the numeric value when v is a finite number.
func (v Value) Float() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool returns the boolean value when v is a bool.
func (v Value) Bool() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}
	return v.b, true
}

// String renders v for debugging. It is not a JSON encoder.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.b)
	case Number:
		return v.s
	case String:
		return strconv.Quote(v.s)
	case Array:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		parts := make([]string, len(v.fields))
		for i, f := range v.fields {
			parts[i] = strconv.Quote(f.Key) + ":" + f.Value.String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
}
