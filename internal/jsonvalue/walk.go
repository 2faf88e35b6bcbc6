package jsonvalue

// Visitor is called for every object node reached by Walk. Returning false
// stops the whole walk.
type Visitor func(obj Value) bool

// Walk visits every object in v depth-first, parents before children,
// following array elements and object members in document order. Nodes
// nested deeper than MaxDepth are not visited.
func Walk(v Value, visit Visitor) {
	walk(v, 0, visit)
}

func walk(v Value, depth int, visit Visitor) bool {
	if depth > MaxDepth {
		return true
	}
	switch v.kind {
	case Array:
		for _, item := range v.items {
			if !walk(item, depth+1, visit) {
				return false
			}
		}
	case Object:
		if !visit(v) {
			return false
		}
		for _, f := range v.fields {
			if !walk(f.Value, depth+1, visit) {
				return false
			}
		}
	}
	return true
}

// FindString returns the first non-empty string stored under any of keys,
// searching depth-first. Keys are tried per object in the order given.
func FindString(v Value, keys ...string) (string, bool) {
	var found string
	Walk(v, func(obj Value) bool {
		for _, k := range keys {
			if s, ok := obj.At(k).Str(); ok && s != "" {
				found = s
				return false
			}
		}
		return true
	})
	return found, found != ""
}
