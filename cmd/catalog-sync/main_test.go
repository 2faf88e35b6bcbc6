package main

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iagopasso/revendis-sub001/internal/aggregate"
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

func TestExport(t *testing.T) {
	res := aggregate.Result{Products: []catalog.Product{
		{ID: "AV-1", SKU: "AV-1", Name: "Batom", Brand: "Avon", SourceBrand: brand.Avon,
			Price: decimal.NewNullDecimal(decimal.RequireFromString("19.90")), InStock: true},
		{ID: "NATURA-2", SKU: "2", Name: "Sabonete", Brand: "Natura", SourceBrand: brand.Natura},
	}}
	path := filepath.Join(t.TempDir(), "catalog.ndjson.gz")
	require.NoError(t, export(path, res))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)

	type line struct {
		id    string
		price string
	}
	var got []line
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		var l line
		require.NoError(t, jx.DecodeBytes(sc.Bytes()).Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				l.id = v
				return err
			case "price":
				if d.Next() == jx.Null {
					l.price = "null"
					return d.Null()
				}
				v, err := d.Num()
				l.price = string(v)
				return err
			default:
				return d.Skip()
			}
		}))
		got = append(got, l)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []line{{"AV-1", "19.9"}, {"NATURA-2", "null"}}, got)
}
