package catalog

// Set collects products keyed by ID. A product added under an existing ID
// replaces the stored one but keeps its original position. The zero Set is
// ready to use.
type Set struct {
	index map[string]int
	items []Product
}

// Add inserts or replaces products.
func (s *Set) Add(products ...Product) {
	if s.index == nil {
		s.index = make(map[string]int, len(products))
	}
	for _, p := range products {
		if i, ok := s.index[p.ID]; ok {
			s.items[i] = p
			continue
		}
		s.index[p.ID] = len(s.items)
		s.items = append(s.items, p)
	}
}

// AddNew inserts products whose ID is not present yet and reports how many
// were inserted.
func (s *Set) AddNew(products ...Product) int {
	if s.index == nil {
		s.index = make(map[string]int, len(products))
	}
	var added int
	for _, p := range products {
		if _, ok := s.index[p.ID]; ok {
			continue
		}
		s.index[p.ID] = len(s.items)
		s.items = append(s.items, p)
		added++
	}
	return added
}

// Has reports whether a product with id was added.
func (s *Set) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of distinct products.
func (s *Set) Len() int { return len(s.items) }

// Products returns a copy of the stored products in insertion order.
func (s *Set) Products() []Product {
	out := make([]Product, len(s.items))
	copy(out, s.items)
	return out
}
