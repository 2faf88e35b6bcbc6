package jsonvalue

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// MaxDepth bounds nesting both while decoding and while walking.
const MaxDepth = 64

// Decode errors.
var (
	ErrTooDeep  = errors.New("json nesting too deep")
	ErrTrailing = errors.New("unexpected data after json value")
)

// Parse decodes a single JSON document.
func Parse(data []byte) (Value, error) {
	d := jx.DecodeBytes(data)
	v, err := decode(d, 0)
	if err != nil {
		return Value{}, errors.Wrap(err, "decode json")
	}
	if d.Next() != jx.Invalid {
		return Value{}, ErrTrailing
	}
	return v, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

func decode(d *jx.Decoder, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, ErrTooDeep
	}

	switch d.Next() {
	case jx.Null:
		if err := d.Null(); err != nil {
			return Value{}, err
		}
		return Value{}, nil
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return Value{}, err
		}
		return NewBool(b), nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return Value{}, err
		}
		return NewNumber(n.String()), nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return Value{}, err
		}
		return NewString(s), nil
	case jx.Array:
		var items []Value
		if err := d.Arr(func(d *jx.Decoder) error {
			item, err := decode(d, depth+1)
			if err != nil {
				return err
			}
			items = append(items, item)
			return nil
		}); err != nil {
			return Value{}, err
		}
		return Value{kind: Array, items: items}, nil
	case jx.Object:
		var fields []Field
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			item, err := decode(d, depth+1)
			if err != nil {
				return err
			}
			fields = append(fields, Field{Key: key, Value: item})
			return nil
		}); err != nil {
			return Value{}, err
		}
		return Value{kind: Object, fields: fields}, nil
	default:
		return Value{}, errors.New("invalid json value")
	}
}
