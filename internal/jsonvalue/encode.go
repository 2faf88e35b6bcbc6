package jsonvalue

import "github.com/go-faster/jx"

// Encode writes v to e. Numbers keep their source literal.
func (v Value) Encode(e *jx.Encoder) {
	switch v.kind {
	case Bool:
		e.Bool(v.b)
	case Number:
		e.Num(jx.Num(v.s))
	case String:
		e.Str(v.s)
	case Array:
		e.Arr(func(e *jx.Encoder) {
			for _, item := range v.items {
				item.Encode(e)
			}
		})
	case Object:
		e.Obj(func(e *jx.Encoder) {
			for _, f := range v.fields {
				e.Field(f.Key, f.Value.Encode)
			}
		})
	default:
		e.Null()
	}
}
