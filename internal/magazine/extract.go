// Package magazine reads product candidates out of a Natura magazine PDF
// through an external extractor script and enriches them against the
// storefront catalog.
package magazine

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/fetch"
	"github.com/iagopasso/revendis-sub001/internal/jsonvalue"
	"github.com/iagopasso/revendis-sub001/internal/normalize"
)

// Limits.
const (
	DefaultLimit      = 10000
	MaxLimit          = 50000
	DefaultTimeout    = 180 * time.Second
	MinTimeout        = 10 * time.Second
	DefaultScriptPath = "scripts/extract_natura_magazine.py"
)

// EnvPythonBin names the preferred interpreter.
const EnvPythonBin = "PYTHON_BIN"

var (
	pdfSignature     = []byte("%PDF-")
	pythonCandidates = []string{"python3", "python"}
)

// Extraction error codes.
const (
	CodeMissingSource   = "missing_source"
	CodePDFNotFound     = "pdf_not_found"
	CodeNotPDF          = "not_pdf"
	CodeScriptNotFound  = "extractor_not_found"
	CodePythonNotFound  = "python_not_found"
	CodeEmptyOutput     = "empty_output"
	CodeInvalidOutput   = "invalid_output"
	CodeDownloadFailed  = "download_failed"
	CodeExtractorFailed = "extractor_failed"
)

// ExtractError is returned for every extraction failure other than
// cancellation.
type ExtractError struct {
	Code    string
	Message string
}

func (e *ExtractError) Error() string {
	if e.Message == "" {
		return "magazine: " + e.Code
	}
	return "magazine: " + e.Code + ": " + e.Message
}

func extractErr(code, msg string) error {
	return &ExtractError{Code: code, Message: msg}
}

// Candidate is one product code read from the magazine.
type Candidate struct {
	Code  string
	Name  string
	Price decimal.NullDecimal
	// Page is 1-based; zero when unknown.
	Page int
}

func (c Candidate) score() int {
	s := 0
	if c.Name != "" {
		s += 2
	}
	if c.Price.Valid {
		s += 2
	}
	if c.Page > 0 {
		s++
	}
	return s
}

// Runner executes the extractor and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), errors.Wrap(err, lastLine(msg))
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Doer downloads remote PDFs.
type Doer interface {
	Do(ctx context.Context, req fetch.Request, opts ...fetch.Option) (*fetch.Response, error)
}

var _ Doer = (*fetch.Client)(nil)

// Config configures an Extractor.
type Config struct {
	// PythonBin is tried before python3 and python.
	PythonBin  string
	ScriptPath string
	Timeout    time.Duration
}

func (c *Config) setDefaults() {
	if c.ScriptPath == "" {
		c.ScriptPath = DefaultScriptPath
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	c.Timeout = max(c.Timeout, MinTimeout)
}

// Source names the PDF to read. URL wins over Path.
type Source struct {
	Path   string
	URL    string
	Header http.Header
}

// Extraction is the outcome of reading one magazine.
type Extraction struct {
	Candidates []Candidate
	// Meta is the extractor's free-form metadata object.
	Meta       jsonvalue.Value
	SourceType string
	Source     string
}

// Extractor reads magazines.
type Extractor struct {
	cfg  Config
	http Doer
	run  Runner
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.run = r }
}

// New creates an Extractor.
func New(cfg Config, http Doer, opts ...Option) *Extractor {
	cfg.setDefaults()
	e := &Extractor{cfg: cfg, http: http, run: ExecRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClampLimit bounds a requested candidate limit.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

// Extract reads up to limit candidates from src.
func (e *Extractor) Extract(ctx context.Context, src Source, limit int) (Extraction, error) {
	limit = ClampLimit(limit)
	srcURL := strings.TrimSpace(src.URL)
	srcPath := strings.TrimSpace(src.Path)

	out := Extraction{SourceType: "path", Source: srcPath}
	var pdfPath string
	switch {
	case srcURL != "":
		out.SourceType, out.Source = "url", srcURL
		dir, err := os.MkdirTemp("", "catalog-magazine-")
		if err != nil {
			return Extraction{}, errors.Wrap(err, "create temp dir")
		}
		defer func() { _ = os.RemoveAll(dir) }()
		if pdfPath, err = e.download(ctx, srcURL, src.Header, dir); err != nil {
			return Extraction{}, err
		}
	case srcPath != "":
		abs, err := filepath.Abs(srcPath)
		if err != nil {
			return Extraction{}, errors.Wrap(err, "resolve pdf path")
		}
		if err := checkPDF(abs); err != nil {
			return Extraction{}, err
		}
		pdfPath = abs
	default:
		return Extraction{}, extractErr(CodeMissingSource, "pdf path or url required")
	}

	if _, err := os.Stat(e.cfg.ScriptPath); err != nil {
		return Extraction{}, extractErr(CodeScriptNotFound, e.cfg.ScriptPath)
	}

	stdout, err := e.runExtractor(ctx, pdfPath, limit)
	if err != nil {
		return Extraction{}, err
	}
	payload, err := ParseOutput(stdout)
	if err != nil {
		return Extraction{}, err
	}
	if code := payload.At("error").StrOr(""); code != "" {
		return Extraction{}, extractErr(code, payload.At("message").StrOr(""))
	}

	out.Candidates = Candidates(payload)
	if len(out.Candidates) > limit {
		out.Candidates = out.Candidates[:limit]
	}
	out.Meta = payload.At("meta")

	zctx.From(ctx).Info("Magazine extracted",
		zap.String("source_type", out.SourceType),
		zap.Int("candidates", len(out.Candidates)),
	)
	return out, nil
}

func (e *Extractor) download(ctx context.Context, u string, h http.Header, dir string) (string, error) {
	resp, err := e.http.Do(ctx, fetch.Request{URL: u, Header: h}, fetch.WithTimeout(e.cfg.Timeout))
	if err != nil {
		if cerr := fetch.Canceled(ctx); cerr != nil {
			return "", cerr
		}
		return "", extractErr(CodeDownloadFailed, fetch.Code(err))
	}
	if !resp.OK() {
		return "", extractErr(fetch.StatusCode(resp.Status), "download "+u)
	}
	if !bytes.HasPrefix(resp.Body, pdfSignature) {
		return "", extractErr(CodeNotPDF, u)
	}
	p := filepath.Join(dir, "catalogue.pdf")
	if err := os.WriteFile(p, resp.Body, 0o600); err != nil {
		return "", errors.Wrap(err, "write pdf")
	}
	return p, nil
}

func checkPDF(p string) error {
	f, err := os.Open(p) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return extractErr(CodePDFNotFound, p)
		}
		return errors.Wrap(err, "open pdf")
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, len(pdfSignature))
	n, _ := f.Read(head)
	if !bytes.Equal(head[:n], pdfSignature) {
		return extractErr(CodeNotPDF, p)
	}
	return nil
}

func (e *Extractor) pythonBins() []string {
	bins := make([]string, 0, len(pythonCandidates)+1)
	seen := map[string]bool{}
	for _, b := range append([]string{strings.TrimSpace(e.cfg.PythonBin)}, pythonCandidates...) {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		bins = append(bins, b)
	}
	return bins
}

func (e *Extractor) runExtractor(ctx context.Context, pdfPath string, limit int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{e.cfg.ScriptPath, "--pdf", pdfPath, "--limit", strconv.Itoa(limit)}
	for _, bin := range e.pythonBins() {
		stdout, err := e.run.Run(ctx, bin, args...)
		switch {
		case err == nil:
			return stdout, nil
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			zctx.From(ctx).Debug("Python interpreter not found", zap.String("bin", bin))
			continue
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, errors.Wrap(cerr, "run extractor")
		}
		// The extractor reports its own failures as JSON on stdout.
		if len(bytes.TrimSpace(stdout)) > 0 {
			return stdout, nil
		}
		return nil, extractErr(CodeExtractorFailed, err.Error())
	}
	return nil, extractErr(CodePythonNotFound, strings.Join(e.pythonBins(), ", "))
}

// ParseOutput parses extractor output, salvaging the outermost object when
// the JSON is surrounded by noise.
func ParseOutput(stdout []byte) (jsonvalue.Value, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return jsonvalue.Value{}, extractErr(CodeEmptyOutput, "")
	}
	if v, err := jsonvalue.Parse(trimmed); err == nil {
		return v, nil
	}
	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start >= 0 && end > start {
		if v, err := jsonvalue.Parse(trimmed[start : end+1]); err == nil {
			return v, nil
		}
	}
	return jsonvalue.Value{}, extractErr(CodeInvalidOutput, "")
}

func candidate(raw jsonvalue.Value) (Candidate, bool) {
	lit, _ := raw.At("code").Literal()
	code := digits(lit)
	if code == "" {
		return Candidate{}, false
	}
	c := Candidate{
		Code:  code,
		Name:  normalize.Text(raw.At("name").StrOr("")),
		Price: normalize.Price(raw.At("price")),
	}
	if page, ok := raw.At("page").Float(); ok {
		c.Page = max(1, int(page))
	}
	return c, true
}

// Candidates reads the payload's data array. Duplicate codes keep the most
// complete record; the result is sorted by code.
func Candidates(payload jsonvalue.Value) []Candidate {
	byCode := map[string]Candidate{}
	for _, raw := range payload.At("data").Items() {
		c, ok := candidate(raw)
		if !ok {
			continue
		}
		if cur, ok := byCode[c.Code]; !ok || c.score() > cur.score() {
			byCode[c.Code] = c
		}
	}
	out := make([]Candidate, 0, len(byCode))
	for _, c := range byCode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
