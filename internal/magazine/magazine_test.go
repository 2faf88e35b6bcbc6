package magazine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iagopasso/revendis-sub001/internal/bff"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
)

type fakeRunner struct {
	// missing interpreters answer with exec.ErrNotFound.
	missing map[string]bool
	stdout  string
	err     error

	mu    sync.Mutex
	calls [][]string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()
	if r.missing[name] {
		return nil, &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return []byte(r.stdout), r.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func newTestExtractor(t *testing.T, r *fakeRunner, bin string) (*Extractor, string) {
	t.Helper()
	dir := t.TempDir()
	script := writeFile(t, dir, "extract.py", "# extractor")
	e := New(Config{PythonBin: bin, ScriptPath: script}, fetch.New(fetch.Config{}), WithRunner(r))
	return e, dir
}

const payload = `{"data":[
	{"code":"12345","name":"  Kaiak  Aventura ","price":"R$ 1.234,56","page":3},
	{"code":"12345"},
	{"code":"cod. 999","price":49.9},
	{"code":"abc"},
	{"code":777,"page":0.4}
],"meta":{"pages":12}}`

func TestExtract_FromPath(t *testing.T) {
	r := &fakeRunner{stdout: payload}
	e, dir := newTestExtractor(t, r, "")
	pdf := writeFile(t, dir, "revista.pdf", "%PDF-1.7 body")

	out, err := e.Extract(context.Background(), Source{Path: pdf}, 0)
	require.NoError(t, err)

	assert.Equal(t, "path", out.SourceType)
	assert.Equal(t, pdf, out.Source)
	require.Len(t, out.Candidates, 3)

	c := out.Candidates[0]
	assert.Equal(t, "12345", c.Code)
	assert.Equal(t, "Kaiak Aventura", c.Name)
	assert.Equal(t, "1234.56", c.Price.Decimal.String())
	assert.Equal(t, 3, c.Page)

	assert.Equal(t, "777", out.Candidates[1].Code)
	assert.Equal(t, 1, out.Candidates[1].Page)
	assert.Equal(t, "999", out.Candidates[2].Code)
	assert.Equal(t, "49.9", out.Candidates[2].Price.Decimal.String())

	pages, ok := out.Meta.At("pages").Float()
	require.True(t, ok)
	assert.EqualValues(t, 12, pages)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "python3", r.calls[0][0])
	assert.Equal(t, []string{"--pdf", pdf, "--limit", "10000"}, r.calls[0][2:])
}

func TestExtract_Limit(t *testing.T) {
	r := &fakeRunner{stdout: payload}
	e, dir := newTestExtractor(t, r, "")
	pdf := writeFile(t, dir, "revista.pdf", "%PDF-1.7")

	out, err := e.Extract(context.Background(), Source{Path: pdf}, 2)
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 2)
	assert.Equal(t, "2", r.calls[0][len(r.calls[0])-1])
}

func TestExtract_InterpreterFallback(t *testing.T) {
	r := &fakeRunner{stdout: payload, missing: map[string]bool{"/opt/py": true, "python3": true}}
	e, dir := newTestExtractor(t, r, "/opt/py")
	pdf := writeFile(t, dir, "revista.pdf", "%PDF-1.7")

	_, err := e.Extract(context.Background(), Source{Path: pdf}, 0)
	require.NoError(t, err)
	var bins []string
	for _, c := range r.calls {
		bins = append(bins, c[0])
	}
	assert.Equal(t, []string{"/opt/py", "python3", "python"}, bins)
}

func TestExtract_Errors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		runner *fakeRunner
		src    func(dir string) Source
		code   string
	}{
		{
			name:   "MissingSource",
			runner: &fakeRunner{},
			src:    func(string) Source { return Source{} },
			code:   CodeMissingSource,
		},
		{
			name:   "PDFNotFound",
			runner: &fakeRunner{},
			src:    func(dir string) Source { return Source{Path: filepath.Join(dir, "nope.pdf")} },
			code:   CodePDFNotFound,
		},
		{
			name:   "NotPDF",
			runner: &fakeRunner{},
			src:    func(dir string) Source { return Source{Path: writeFile(t, dir, "x.pdf", "<html>")} },
			code:   CodeNotPDF,
		},
		{
			name:   "PythonNotFound",
			runner: &fakeRunner{missing: map[string]bool{"python3": true, "python": true}},
			src:    func(dir string) Source { return Source{Path: writeFile(t, dir, "x.pdf", "%PDF-")} },
			code:   CodePythonNotFound,
		},
		{
			name:   "EmptyOutput",
			runner: &fakeRunner{stdout: "  \n"},
			src:    func(dir string) Source { return Source{Path: writeFile(t, dir, "x.pdf", "%PDF-")} },
			code:   CodeEmptyOutput,
		},
		{
			name:   "ExtractorReported",
			runner: &fakeRunner{stdout: `{"error":"pypdf_missing","message":"install pypdf"}`, err: errors.New("exit status 1")},
			src:    func(dir string) Source { return Source{Path: writeFile(t, dir, "x.pdf", "%PDF-")} },
			code:   "pypdf_missing",
		},
		{
			name:   "ExtractorCrashed",
			runner: &fakeRunner{err: errors.New("exit status 2")},
			src:    func(dir string) Source { return Source{Path: writeFile(t, dir, "x.pdf", "%PDF-")} },
			code:   CodeExtractorFailed,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e, dir := newTestExtractor(t, tt.runner, "")
			_, err := e.Extract(context.Background(), tt.src(dir), 0)
			var extErr *ExtractError
			require.ErrorAs(t, err, &extErr)
			assert.Equal(t, tt.code, extErr.Code)
		})
	}
}

func TestExtract_ScriptNotFound(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "x.pdf", "%PDF-")
	e := New(Config{ScriptPath: filepath.Join(dir, "missing.py")}, nil, WithRunner(&fakeRunner{}))

	_, err := e.Extract(context.Background(), Source{Path: pdf}, 0)
	var extErr *ExtractError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, CodeScriptNotFound, extErr.Code)
}

func TestExtract_FromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/revista.pdf":
			assert.Equal(t, "Bearer x", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte("%PDF-1.4 data"))
		case "/page.html":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	r := &fakeRunner{stdout: "warning: noise\n" + payload + "\ntrailing"}
	e, _ := newTestExtractor(t, r, "")

	out, err := e.Extract(context.Background(), Source{
		URL:    srv.URL + "/revista.pdf",
		Header: http.Header{"Authorization": {"Bearer x"}},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "url", out.SourceType)
	assert.Len(t, out.Candidates, 3)

	// The downloaded copy is removed once extraction is done.
	pdf := r.calls[0][3]
	assert.True(t, strings.HasSuffix(pdf, "catalogue.pdf"))
	_, statErr := os.Stat(pdf)
	assert.True(t, os.IsNotExist(statErr))

	for path, code := range map[string]string{
		"/page.html":   CodeNotPDF,
		"/missing.pdf": "http_404",
	} {
		_, err := e.Extract(context.Background(), Source{URL: srv.URL + path}, 0)
		var extErr *ExtractError
		require.ErrorAs(t, err, &extErr, path)
		assert.Equal(t, code, extErr.Code, path)
	}
}

func TestParseOutput(t *testing.T) {
	v, err := ParseOutput([]byte(`prefix {"data":[]} suffix`))
	require.NoError(t, err)
	assert.Equal(t, 0, v.At("data").Len())

	_, err = ParseOutput([]byte(`{broken`))
	var extErr *ExtractError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, CodeInvalidOutput, extErr.Code)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxLimit, ClampLimit(MaxLimit+1))
}

type fakeSearcher struct {
	products map[string]catalog.Product
	err      error
	delay    time.Duration

	mu    sync.Mutex
	codes []string
}

func (s *fakeSearcher) SearchByCode(ctx context.Context, code string, _ bff.Session) (catalog.Product, bool, error) {
	s.mu.Lock()
	s.codes = append(s.codes, code)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return catalog.Product{}, false, ctx.Err()
		}
	}
	if s.err != nil {
		return catalog.Product{}, false, s.err
	}
	p, ok := s.products[code]
	return p, ok, nil
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestBuild_Enrich(t *testing.T) {
	s := &fakeSearcher{products: map[string]catalog.Product{
		"12345": {
			ID:             "NATBRA-12345",
			SKU:            "NATBRA-12345",
			Barcode:        "7891234567890",
			Name:           "Kaiak Aventura Desodorante",
			Brand:          "Kaiak",
			Price:          price("159.90"),
			PurchasePrice:  price("111.93"),
			InStock:        false,
			URL:            "https://www.natura.com.br/p/kaiak/NATBRA-12345",
			ImageURL:       "https://img/kaiak.jpg",
			SourceCategory: "perfumaria",
		},
	}}
	candidates := []Candidate{
		{Code: "12345", Name: "Kaiak", Price: price("149.90"), Page: 3},
		{Code: "999", Price: price("49.90")},
		{Code: "777"},
	}

	out, err := Build(context.Background(), s, candidates, BuildOptions{
		Enrich:    true,
		SourceURL: "https://cdn/revista.pdf",
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 3)
	assert.Equal(t, 1, out.EnrichedCount)
	assert.Equal(t, []string{"999", "777"}, out.FailedCodes)
	assert.ElementsMatch(t, []string{"12345", "999", "777"}, s.codes)

	k := out.Items[0]
	assert.True(t, k.Enriched)
	assert.Equal(t, "NATBRA-12345", k.ID)
	assert.Equal(t, "Kaiak Aventura Desodorante", k.Name)
	assert.Equal(t, "Natura", k.Brand)
	assert.Equal(t, "Kaiak", k.LineBrand)
	assert.Equal(t, "7891234567890", k.Barcode)
	assert.Equal(t, "159.9", k.Price.Decimal.String())
	assert.Equal(t, "111.93", k.PurchasePrice.Decimal.String())
	assert.False(t, k.InStock)
	assert.Equal(t, "perfumaria", k.SourceCategory)
	assert.Equal(t, "https://img/kaiak.jpg", k.ImageURL)
	assert.Equal(t, 3, k.Page)

	p := out.Items[1]
	assert.False(t, p.Enriched)
	assert.Equal(t, "999", p.ID)
	assert.Equal(t, "Produto Natura 999", p.Name)
	assert.Equal(t, "49.9", p.PurchasePrice.Decimal.String())
	assert.True(t, p.InStock)
	assert.Equal(t, DefaultCategory, p.SourceCategory)
	assert.Equal(t, "https://cdn/revista.pdf", p.URL)
	assert.Empty(t, p.Barcode)
	assert.True(t, strings.HasPrefix(p.ImageURL, "data:image/svg+xml"))
}

func TestBuild_WithoutEnrich(t *testing.T) {
	s := &fakeSearcher{}
	out, err := Build(context.Background(), s, []Candidate{{Code: "12345678"}}, BuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, s.codes)
	assert.Empty(t, out.FailedCodes)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "12345678", out.Items[0].Barcode)
}

func TestBuild_InStockOnlyAndLimit(t *testing.T) {
	s := &fakeSearcher{products: map[string]catalog.Product{
		"1": {ID: "A", InStock: false},
		"2": {ID: "B", InStock: true},
	}}
	candidates := []Candidate{{Code: "1"}, {Code: "2"}, {Code: "3"}, {Code: "4"}}

	out, err := Build(context.Background(), s, candidates, BuildOptions{Enrich: true, InStockOnly: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "B", out.Items[0].ID)
	assert.Equal(t, "3", out.Items[1].ID)
	assert.Equal(t, 1, out.EnrichedCount)
	assert.Equal(t, []string{"3"}, out.FailedCodes)
}

func TestBuild_FailedCodesStopAtLimit(t *testing.T) {
	s := &fakeSearcher{}
	candidates := make([]Candidate, 40)
	for i := range candidates {
		candidates[i] = Candidate{Code: strconv.Itoa(1000 + i)}
	}

	out, err := Build(context.Background(), s, candidates, BuildOptions{Enrich: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, []string{"1000", "1001"}, out.FailedCodes)
	assert.Len(t, s.codes, EnrichWorkers)
}

func TestBuild_Canceled(t *testing.T) {
	s := &fakeSearcher{delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, s, []Candidate{{Code: "1"}, {Code: "2"}}, BuildOptions{Enrich: true})
	require.ErrorIs(t, err, context.Canceled)
}
