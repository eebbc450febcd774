package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitecheck/internal/browser"
	"github.com/nao1215/sitecheck/internal/catalog"
	"github.com/nao1215/sitecheck/internal/check"
	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
)

// fakePage describes what a fake session observes for one page.
type fakePage struct {
	gotoErr   error
	imagesErr error
	images    []browser.ImageObservation
	colors    []string
}

// fakeEngine serves canned pages and records how sessions were opened.
type fakeEngine struct {
	mu       sync.Mutex
	pages    map[string]fakePage
	opened   []browser.SessionOptions
	policies map[string]browser.ReadyPolicy
	closed   int
	onGoto   func(name string)
}

func newFakeEngine(pages map[string]fakePage) *fakeEngine {
	return &fakeEngine{pages: pages, policies: make(map[string]browser.ReadyPolicy)}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) NewSession(ctx context.Context, opts browser.SessionOptions) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened = append(e.opened, opts)
	return &fakeSession{engine: e}, nil
}

// fakeSession implements browser.Session on top of fakeEngine.
type fakeSession struct {
	engine *fakeEngine
	url    string
	page   fakePage
}

func (s *fakeSession) Goto(_ context.Context, rawURL string, policy browser.ReadyPolicy) error {
	name := path.Base(rawURL)
	s.engine.mu.Lock()
	s.engine.policies[name] = policy
	page := s.engine.pages[name]
	onGoto := s.engine.onGoto
	s.engine.mu.Unlock()

	if onGoto != nil {
		onGoto(name)
	}
	if page.gotoErr != nil {
		return page.gotoErr
	}
	s.url = rawURL
	s.page = page
	return nil
}

func (s *fakeSession) URL() string { return s.url }

func (s *fakeSession) QueryImages(context.Context) ([]browser.ImageObservation, error) {
	return s.page.images, s.page.imagesErr
}

func (s *fakeSession) ComputedBackgroundColors(context.Context, string) ([]string, error) {
	return s.page.colors, nil
}

func (s *fakeSession) Close() error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.engine.closed++
	return nil
}

// okFetcher answers 200 for every URL.
type okFetcher struct{}

func (okFetcher) Fetch(context.Context, string, map[string]string) (int, error) {
	return http.StatusOK, nil
}

// writePages creates empty page files in a temporary directory.
func writePages(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("<html></html>"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// newFakeRunner builds a runner with an always-reachable fetcher.
func newFakeRunner(t *testing.T, dir string, engine browser.Engine, opts ...RunnerOption) *Runner {
	t.Helper()
	printer := locale.New("it")
	opts = append([]RunnerOption{
		WithPrinter(printer),
		WithResourceChecker(check.NewResourceChecker(okFetcher{}, printer)),
	}, opts...)
	r, err := NewRunner(catalog.New(dir), engine, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

var whiteImage = []browser.ImageObservation{{Src: "img/a.png", Complete: true, NaturalWidth: 10}}

// TestRunnerRun tests a run over healthy and failing pages.
func TestRunnerRun(t *testing.T) {
	t.Parallel()

	dir := writePages(t, "module-1.html", "index.html", "module-2.html")
	engine := newFakeEngine(map[string]fakePage{
		"index.html":    {images: whiteImage},
		"module-1.html": {images: whiteImage, colors: []string{"rgb(255, 255, 255)"}},
		"module-2.html": {images: whiteImage, colors: []string{"rgba(255, 255, 255, 1)", "rgba(0, 0, 0, 0)"}},
	})
	r := newFakeRunner(t, dir, engine)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(report.Catalog, []string{"index.html", "module-1.html", "module-2.html"}) {
		t.Errorf("unexpected catalog %v", report.Catalog)
	}
	if len(report.Pages) != 3 {
		t.Fatalf("expected 3 page results, got %d", len(report.Pages))
	}
	if engine.closed != 3 || len(engine.opened) != 3 {
		t.Errorf("expected one session per page, opened %d closed %d", len(engine.opened), engine.closed)
	}

	violations := report.Violations()
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	if violations[0].Message != "module-2.html: img #2 senza sfondo bianco (rgba(0, 0, 0, 0))" {
		t.Errorf("unexpected message %q", violations[0].Message)
	}
	if report.Passed() {
		t.Error("expected failing verdict")
	}
	if report.Summary == nil || report.Summary.Count(model.KindStyle) != 1 {
		t.Errorf("unexpected summary %+v", report.Summary)
	}

	index := report.Page("index.html")
	if slices.Contains(index.PerformedSteps, StepStyles) {
		t.Errorf("style step must not run on non-module pages: %v", index.PerformedSteps)
	}
	if !slices.Equal(report.Page("module-1.html").PerformedSteps, []string{StepLoad, StepResources, StepStyles}) {
		t.Errorf("unexpected steps %v", report.Page("module-1.html").PerformedSteps)
	}
	if report.Page("module-1.html").Status != model.PageStatusPassed {
		t.Errorf("expected module-1.html to pass")
	}
}

// TestRunnerLoadFailure tests that a page that never becomes ready halts only itself.
func TestRunnerLoadFailure(t *testing.T) {
	t.Parallel()

	dir := writePages(t, "index.html", "module-1.html")
	engine := newFakeEngine(map[string]fakePage{
		"index.html":    {gotoErr: browser.ErrLoadTimeout},
		"module-1.html": {images: whiteImage, colors: []string{"rgb(255, 255, 255)"}},
	})
	r := newFakeRunner(t, dir, engine, WithReadyPolicy(browser.ReadyPolicy{Timeout: 2 * time.Second}))

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	index := report.Page("index.html")
	if index.Status != model.PageStatusNotLoaded {
		t.Errorf("expected not_loaded, got %s", index.Status)
	}
	if !slices.Equal(index.PerformedSteps, []string{StepLoad}) {
		t.Errorf("expected remaining steps to be skipped, got %v", index.PerformedSteps)
	}
	if len(index.Violations) != 1 || index.Violations[0].Kind != model.KindLoadTimeout {
		t.Fatalf("expected a load_timeout violation, got %+v", index.Violations)
	}
	if want := "index.html: pagina non pronta (networkidle) entro 2s: page load timed out"; index.Violations[0].Message != want {
		t.Errorf("message = %q, want %q", index.Violations[0].Message, want)
	}
	if report.Page("module-1.html").Status != model.PageStatusPassed {
		t.Error("expected the next page to be checked normally")
	}
	if report.Passed() {
		t.Error("expected failing verdict")
	}
}

// TestRunnerCatalogError tests that a missing output directory aborts before any load.
func TestRunnerCatalogError(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(nil)
	r := newFakeRunner(t, filepath.Join(t.TempDir(), "dist"), engine)

	report, err := r.Run(context.Background())
	var ce *model.CatalogError
	if !errors.As(err, &ce) || !errors.Is(err, model.ErrOutputDirMissing) {
		t.Fatalf("expected missing directory CatalogError, got %v", err)
	}
	if len(engine.opened) != 0 {
		t.Error("no session must be opened")
	}
	if report == nil || report.Passed() || report.Error == "" {
		t.Errorf("expected failed report carrying the error, got %+v", report)
	}
}

// TestRunnerNoModulePages tests that an empty module subset fails the run but checks resources.
func TestRunnerNoModulePages(t *testing.T) {
	t.Parallel()

	dir := writePages(t, "index.html", "about.html")
	engine := newFakeEngine(map[string]fakePage{
		"index.html": {images: whiteImage},
		"about.html": {images: whiteImage},
	})
	r := newFakeRunner(t, dir, engine)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.RunViolations) != 1 || report.RunViolations[0].Kind != model.KindCatalog {
		t.Fatalf("expected catalog run violation, got %+v", report.RunViolations)
	}
	if want := "nessuna pagina modulo trovata in " + dir; report.RunViolations[0].Message != want {
		t.Errorf("message = %q, want %q", report.RunViolations[0].Message, want)
	}
	if len(report.Pages) != 2 {
		t.Errorf("expected resource checks on both pages, got %d", len(report.Pages))
	}
	if report.Passed() {
		t.Error("expected failing verdict")
	}
}

// TestRunnerCancellation tests that cancellation stops between pages.
func TestRunnerCancellation(t *testing.T) {
	t.Parallel()

	dir := writePages(t, "a.html", "b.html", "module-1.html")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newFakeEngine(map[string]fakePage{
		"a.html": {images: whiteImage},
	})
	engine.onGoto = func(name string) {
		if name == "a.html" {
			cancel()
		}
	}
	r := newFakeRunner(t, dir, engine)

	report, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !report.Cancelled {
		t.Error("expected cancelled report")
	}
	if len(report.Pages) != 1 {
		t.Errorf("expected the run to stop after the first page, got %d pages", len(report.Pages))
	}
	if report.Passed() {
		t.Error("cancelled run must not pass")
	}
}

// TestRunnerStepError tests that a failing step is recorded and, by default,
// does not stop the remaining steps of the page.
func TestRunnerStepError(t *testing.T) {
	t.Parallel()

	queryErr := errors.New("execution context was destroyed")
	pages := map[string]fakePage{
		"module-1.html": {imagesErr: queryErr, colors: []string{"rgb(255, 255, 255)"}},
	}

	tests := []struct {
		name  string
		opts  []RunnerOption
		steps []string
	}{
		{
			name:  "continue",
			steps: []string{StepLoad, StepResources, StepStyles},
		},
		{
			name:  "stop on step error",
			opts:  []RunnerOption{WithStopOnStepError()},
			steps: []string{StepLoad, StepResources},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := writePages(t, "module-1.html")
			r := newFakeRunner(t, dir, newFakeEngine(pages), tt.opts...)

			report, err := r.Run(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			page := report.Page("module-1.html")
			if !slices.Equal(page.PerformedSteps, tt.steps) {
				t.Errorf("steps = %v, want %v", page.PerformedSteps, tt.steps)
			}
			if page.Error == "" {
				t.Error("expected the step error to be recorded on the page")
			}
			if report.Passed() {
				t.Error("a page with a failed step must not pass")
			}
		})
	}
}

// TestRunnerPageOverrides tests per-page headers and timeouts.
func TestRunnerPageOverrides(t *testing.T) {
	t.Parallel()

	dir := writePages(t, "index.html", "module-1.html")
	engine := newFakeEngine(map[string]fakePage{
		"index.html":    {images: whiteImage},
		"module-1.html": {images: whiteImage, colors: []string{"rgb(255, 255, 255)"}},
	})
	r := newFakeRunner(t, dir, engine,
		WithReadyPolicy(browser.ReadyPolicy{WaitUntil: browser.WaitLoad, Timeout: 30 * time.Second}),
		WithPageOverrides(map[string]PageOverride{
			"module-1.html": {Headers: map[string]string{"X-Preview": "1"}, Timeout: 90 * time.Second},
		}),
	)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := engine.policies["index.html"]; got.Timeout != 30*time.Second || got.WaitUntil != browser.WaitLoad {
		t.Errorf("unexpected default policy %+v", got)
	}
	if got := engine.policies["module-1.html"]; got.Timeout != 90*time.Second {
		t.Errorf("unexpected override policy %+v", got)
	}
	if engine.opened[1].Headers["X-Preview"] != "1" {
		t.Errorf("expected override headers, got %v", engine.opened[1].Headers)
	}
}

// TestRunnerIdempotent tests that two runs over an unchanged site agree.
func TestRunnerIdempotent(t *testing.T) {
	t.Parallel()

	dir := writePages(t, "index.html", "module-1.html")
	engine := newFakeEngine(map[string]fakePage{
		"index.html":    {images: []browser.ImageObservation{{Src: "x.png", Complete: false}}},
		"module-1.html": {images: whiteImage, colors: []string{"rgb(0, 0, 0)"}},
	})
	r := newFakeRunner(t, dir, engine)

	keys := func() []string {
		report, err := r.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, v := range report.Violations() {
			out = append(out, v.Key())
		}
		return out
	}

	first, second := keys(), keys()
	if len(first) == 0 || !slices.Equal(first, second) {
		t.Errorf("expected identical violations, got %v and %v", first, second)
	}
}

// TestRunnerStaticEngine runs the static engine end-to-end against a local site.
func TestRunnerStaticEngine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"index.html":    `<html><body><img src="img/logo.svg"></body></html>`,
		"module-1.html": `<html><head><style>.module-image img{background:#fff}</style></head><body><div class="module-image"><img src="img/logo.svg"></div></body></html>`,
		"module-2.html": `<html><body><div class="module-image"><img src="img/missing.png"></div></body></html>`,
		"img/logo.svg":  `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20"></svg>`,
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(server.Close)

	engine, err := browser.New(context.Background(), browser.EngineStatic, browser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := ParseBaseURL(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner(catalog.New(dir), engine,
		WithBaseURL(base),
		WithPrinter(locale.New("en")),
		WithReadyPolicy(browser.ReadyPolicy{Timeout: 5 * time.Second}),
	)
	if err != nil {
		t.Fatal(err)
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"module-2.html: img #1 failed to complete loading",
		"module-2.html: img #1 has zero natural width",
		"module-2.html: image resource unavailable (img/missing.png) -> status 404",
		"module-2.html: img #1 without white background (rgba(0, 0, 0, 0))",
	}
	var got []string
	for _, v := range report.Violations() {
		got = append(got, v.Message)
	}
	if !slices.Equal(got, want) {
		t.Errorf("violations =\n%q\nwant\n%q", got, want)
	}
	if report.Page("index.html").Status != model.PageStatusPassed || report.Page("module-1.html").Status != model.PageStatusPassed {
		t.Error("expected healthy pages to pass")
	}
}

// TestRunnerPageHeadersReachImages tests that a page's override headers are
// sent with the reachability fetches of its images too.
func TestRunnerPageHeadersReachImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"module-1.html": `<html><head><style>.module-image img{background:#fff}</style></head><body><div class="module-image"><img src="logo.svg"></div></body></html>`,
		"logo.svg":      `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20"></svg>`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	fileServer := http.FileServer(http.Dir(dir))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Preview") != "1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fileServer.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	engine, err := browser.New(context.Background(), browser.EngineStatic, browser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := ParseBaseURL(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner(catalog.New(dir), engine,
		WithBaseURL(base),
		WithPrinter(locale.New("en")),
		WithReadyPolicy(browser.ReadyPolicy{Timeout: 5 * time.Second}),
		WithPageOverrides(map[string]PageOverride{
			"module-1.html": {Headers: map[string]string{"X-Preview": "1"}},
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if violations := report.Violations(); len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
	if !report.Passed() {
		t.Error("expected passing verdict")
	}
}

// TestParseBaseURL tests base URL validation.
func TestParseBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://127.0.0.1:4173", "http://127.0.0.1:4173", false},
		{"https://preview.example.com/site/", "https://preview.example.com/site", false},
		{"http://localhost:8080/?q=1#top", "http://localhost:8080", false},
		{"ftp://example.com", "", true},
		{"127.0.0.1:4173", "", true},
		{"/dist", "", true},
	}

	for _, tt := range tests {
		u, err := ParseBaseURL(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidBaseURL) {
				t.Errorf("ParseBaseURL(%q) expected ErrInvalidBaseURL, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBaseURL(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if u.String() != tt.want {
			t.Errorf("ParseBaseURL(%q) = %q, want %q", tt.in, u.String(), tt.want)
		}
	}

	base, _ := ParseBaseURL("https://preview.example.com/site/")
	r := &Runner{baseURL: base}
	if got := r.PageURL("module-1.html"); got != "https://preview.example.com/site/module-1.html" {
		t.Errorf("PageURL() = %q", got)
	}
}
