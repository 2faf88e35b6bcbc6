package brand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mary Kay", "marykay"},
		{"O Boticário", "oboticario"},
		{"L'Occitane au Brésil", "loccitaneaubresil"},
		{"Quem Disse, Berenice?", "quemdisseberenice"},
		{"  ", ""},
		{"ÇÃO-123", "cao123"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Token(tt.in))
		})
	}
}

func TestResolve_EveryAlias(t *testing.T) {
	for _, info := range registry {
		s, ok := Resolve(string(info.Slug))
		require.True(t, ok, "slug %s", info.Slug)
		assert.Equal(t, info.Slug, s)

		for _, alias := range info.Aliases {
			s, ok := Resolve(alias)
			require.True(t, ok, "alias %q", alias)
			assert.Equal(t, info.Slug, s, "alias %q", alias)
		}
	}
}

func TestResolve_CaseAndPunctuationInsensitive(t *testing.T) {
	for _, in := range []string{"Mary Kay", "mary-kay", "MARYKAY", "máry kay"} {
		s, ok := Resolve(in)
		require.True(t, ok, in)
		assert.Equal(t, MaryKay, s, in)
	}
}

func TestResolve_Unknown(t *testing.T) {
	_, ok := Resolve("Acme Cosmetics")
	assert.False(t, ok)

	_, ok = Resolve("")
	assert.False(t, ok)

	_, ok = Resolve("!!!")
	assert.False(t, ok)
}

func TestRegistry_Complete(t *testing.T) {
	all := All()
	require.Len(t, all, 20)

	for _, s := range all {
		info, ok := Lookup(s)
		require.True(t, ok)
		assert.NotEmpty(t, info.Label, s)
		assert.NotEmpty(t, info.Aliases, s)
		assert.Regexp(t, `^https://[^/]+`, info.BaseURL, s)
		assert.False(t, strings.HasSuffix(info.BaseURL, "/"), s)
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	a := All()
	a[0] = "mutated"
	assert.Equal(t, Avon, All()[0])
}

func TestParseList(t *testing.T) {
	got, err := ParseList("Avon, natura ,avon,,Mary Kay")
	require.NoError(t, err)
	assert.Equal(t, []Slug{Avon, Natura, MaryKay}, got)

	_, err = ParseList("avon,nope")
	require.ErrorIs(t, err, ErrUnknown)
}

func TestLabelAndBaseURL(t *testing.T) {
	assert.Equal(t, "L'Occitane au Bresil", Label(LoccitaneAuBresil))
	assert.Equal(t, "https://www.boticario.com.br", BaseURL(Boticario))
	assert.Equal(t, "ghost", Label("ghost"))
	assert.Empty(t, BaseURL("ghost"))
	assert.False(t, Valid("ghost"))
	assert.True(t, Valid(Skelt))
}
