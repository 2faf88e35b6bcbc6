// Package brand holds the static registry of reseller brands the catalog
// aggregator knows how to fetch, and resolves free-text brand names to their
// canonical slug.
package brand

import (
	"strings"

	"github.com/go-faster/errors"
)

// Slug is the canonical identifier of a reseller brand.
type Slug string

// Known brands.
const (
	Avon              Slug = "avon"
	MaryKay           Slug = "mary-kay"
	Tupperware        Slug = "tupperware"
	Eudora            Slug = "eudora"
	Boticario         Slug = "boticario"
	Oui               Slug = "oui"
	Natura            Slug = "natura"
	Demillus          Slug = "demillus"
	Farmasi           Slug = "farmasi"
	Hinode            Slug = "hinode"
	Jequiti           Slug = "jequiti"
	LoccitaneAuBresil Slug = "loccitane-au-bresil"
	Mahogany          Slug = "mahogany"
	MomentsParis      Slug = "moments-paris"
	Odorata           Slug = "odorata"
	QuemDisseBerenice Slug = "quem-disse-berenice"
	Racco             Slug = "racco"
	Skelt             Slug = "skelt"
	Extase            Slug = "extase"
	Diamante          Slug = "diamante"
)

// ErrUnknown is returned when a brand name does not resolve to a known slug.
var ErrUnknown = errors.New("unknown brand")

// Info describes a single registered brand.
type Info struct {
	Slug    Slug
	Label   string
	BaseURL string
	Aliases []string
}

var registry = []Info{
	{Slug: Avon, Label: "Avon", BaseURL: "https://www.avon.com.br",
		Aliases: []string{"avon"}},
	{Slug: MaryKay, Label: "Mary Kay", BaseURL: "https://loja.marykay.com.br",
		Aliases: []string{"mary-kay", "mary kay", "marykay"}},
	{Slug: Tupperware, Label: "Tupperware", BaseURL: "https://www.tupperware.com.br",
		Aliases: []string{"tupperware", "tupper", "tuppware", "tupparware", "tupware"}},
	{Slug: Eudora, Label: "Eudora", BaseURL: "https://www.eudora.com.br",
		Aliases: []string{"eudora"}},
	{Slug: Boticario, Label: "Boticario", BaseURL: "https://www.boticario.com.br",
		Aliases: []string{"boticario", "o boticario", "o-boticario"}},
	{Slug: Oui, Label: "Oui", BaseURL: "https://www.boticario.com.br/perfumaria/oui",
		Aliases: []string{"oui"}},
	{Slug: Natura, Label: "Natura", BaseURL: "https://www.natura.com.br",
		Aliases: []string{"natura"}},
	{Slug: Demillus, Label: "Demillus", BaseURL: "https://www.demillus.com.br",
		Aliases: []string{"demillus", "de millus"}},
	{Slug: Farmasi, Label: "Farmasi", BaseURL: "https://www.farmasi.com.br",
		Aliases: []string{"farmasi"}},
	{Slug: Hinode, Label: "Hinode", BaseURL: "https://www.hinode.com.br",
		Aliases: []string{"hinode"}},
	{Slug: Jequiti, Label: "Jequiti", BaseURL: "https://www.jequiti.com.br",
		Aliases: []string{"jequiti"}},
	{Slug: LoccitaneAuBresil, Label: "L'Occitane au Bresil", BaseURL: "https://br.loccitaneaubresil.com",
		Aliases: []string{"l'occitane au bresil", "loccitane au bresil", "loccitane", "l occitane"}},
	{Slug: Mahogany, Label: "Mahogany", BaseURL: "https://www.mahogany.com.br",
		Aliases: []string{"mahogany"}},
	{Slug: MomentsParis, Label: "Moments Paris", BaseURL: "https://www.momentsparis.com.br",
		Aliases: []string{"moments paris", "moments-paris"}},
	{Slug: Odorata, Label: "Odorata", BaseURL: "https://www.odorata.com.br",
		Aliases: []string{"odorata"}},
	{Slug: QuemDisseBerenice, Label: "Quem Disse, Berenice?", BaseURL: "https://www.quemdisseberenice.com.br",
		Aliases: []string{"quem disse berenice", "quem disse, berenice?", "qdb", "quemdisseberenice"}},
	{Slug: Racco, Label: "Racco", BaseURL: "https://www.racco.com.br",
		Aliases: []string{"racco"}},
	{Slug: Skelt, Label: "Skelt", BaseURL: "https://www.skelt.com.br",
		Aliases: []string{"skelt"}},
	// Public storefront reselling Extase products.
	{Slug: Extase, Label: "Extase", BaseURL: "https://www.flattercosmeticos.com.br",
		Aliases: []string{"extase", "extasee", "extasis", "extasecosmeticos"}},
	{Slug: Diamante, Label: "Diamante", BaseURL: "https://www.diamanteprofissional.com.br",
		Aliases: []string{"diamante", "diamanteq", "diamante q"}},
}

var (
	bySlug  = make(map[Slug]*Info, len(registry))
	byAlias = make(map[string]Slug, len(registry)*3)
	slugs   = make([]Slug, 0, len(registry))
)

func init() {
	for i := range registry {
		info := &registry[i]
		bySlug[info.Slug] = info
		slugs = append(slugs, info.Slug)

		for _, alias := range append([]string{string(info.Slug)}, info.Aliases...) {
			token := Token(alias)
			if token == "" {
				continue
			}
			if owner, ok := byAlias[token]; ok && owner != info.Slug {
				panic("brand: alias " + alias + " registered for both " + string(owner) + " and " + string(info.Slug))
			}
			byAlias[token] = info.Slug
		}
	}
}

// All returns every registered brand in registry order. The returned slice is
// a copy and may be modified by the caller.
func All() []Slug {
	out := make([]Slug, len(slugs))
	copy(out, slugs)
	return out
}

// Resolve maps free text such as "Mary Kay" or "O Boticário" to a canonical
// slug. Matching ignores case, diacritics and punctuation.
func Resolve(name string) (Slug, bool) {
	token := Token(name)
	if token == "" {
		return "", false
	}
	s, ok := byAlias[token]
	return s, ok
}

// Valid reports whether s is a registered slug.
func Valid(s Slug) bool {
	_, ok := bySlug[s]
	return ok
}

// Lookup returns the registry entry for s.
func Lookup(s Slug) (Info, bool) {
	info, ok := bySlug[s]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// Label returns the display label of s, or the slug itself when unknown.
func Label(s Slug) string {
	if info, ok := bySlug[s]; ok {
		return info.Label
	}
	return string(s)
}

// BaseURL returns the storefront root of s without a trailing slash.
func BaseURL(s Slug) string {
	if info, ok := bySlug[s]; ok {
		return info.BaseURL
	}
	return ""
}

// ParseList resolves a comma separated list of brand names. Duplicates are
// removed while preserving the first occurrence order.
func ParseList(csv string) ([]Slug, error) {
	var (
		out  []Slug
		seen = make(map[Slug]struct{})
	)
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s, ok := Resolve(part)
		if !ok {
			return nil, errors.Wrapf(ErrUnknown, "resolve %q", part)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
