package model

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"
)

// newPassingReport creates a report whose catalog and pages satisfy every invariant.
func newPassingReport() *Report {
	r := NewReport("http://127.0.0.1:4173", "dist")
	r.Catalog = []string{"index.html", "module-01.html"}
	r.ModulePages = []string{"module-01.html"}
	for _, name := range r.Catalog {
		p := NewPageResult(name, r.Site+"/"+name, name == "module-01.html")
		p.Finish()
		r.AddPage(p)
	}
	return r
}

// TestReport_Passed tests the run verdict.
func TestReport_Passed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(r *Report)
		want   bool
	}{
		{
			name:   "no violations passes",
			mutate: func(*Report) {},
			want:   true,
		},
		{
			name:   "empty catalog fails",
			mutate: func(r *Report) { r.Catalog = nil },
			want:   false,
		},
		{
			name:   "empty module subset fails",
			mutate: func(r *Report) { r.ModulePages = nil },
			want:   false,
		},
		{
			name: "page violation fails",
			mutate: func(r *Report) {
				r.Pages[0].AddViolation(Violation{Kind: KindImageLoad, Ordinal: 1, Message: "broken"})
			},
			want: false,
		},
		{
			name: "run violation fails",
			mutate: func(r *Report) {
				r.AddRunViolation(Violation{Kind: KindCatalog, Message: "no module pages"})
			},
			want: false,
		},
		{
			name:   "step error fails",
			mutate: func(r *Report) { r.Pages[1].Error = "evaluate failed" },
			want:   false,
		},
		{
			name:   "fatal error fails",
			mutate: func(r *Report) { r.Error = "catalog dist: output directory contains no pages" },
			want:   false,
		},
		{
			name:   "cancelled run fails",
			mutate: func(r *Report) { r.Cancelled = true },
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newPassingReport()
			tt.mutate(r)
			if got := r.Passed(); got != tt.want {
				t.Errorf("Passed() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestPageResult_Finish tests page status derivation.
func TestPageResult_Finish(t *testing.T) {
	t.Parallel()

	t.Run("passed without violations", func(t *testing.T) {
		t.Parallel()
		p := NewPageResult("index.html", "", false)
		p.Finish()
		if p.Status != PageStatusPassed {
			t.Errorf("expected %q, got %q", PageStatusPassed, p.Status)
		}
	})

	t.Run("failed with violations", func(t *testing.T) {
		t.Parallel()
		p := NewPageResult("index.html", "", false)
		p.AddViolation(Violation{Kind: KindResourceUnreachable, Resource: "a.png", Status: 404})
		p.Finish()
		if p.Status != PageStatusFailed {
			t.Errorf("expected %q, got %q", PageStatusFailed, p.Status)
		}
		if p.Violations[0].Page != "index.html" {
			t.Errorf("expected violation page to default to page name, got %q", p.Violations[0].Page)
		}
	})

	t.Run("not loaded on load timeout", func(t *testing.T) {
		t.Parallel()
		p := NewPageResult("module-02.html", "", true)
		p.AddViolation(Violation{Kind: KindLoadTimeout})
		p.Finish()
		if p.Status != PageStatusNotLoaded {
			t.Errorf("expected %q, got %q", PageStatusNotLoaded, p.Status)
		}
	})
}

// TestNewSummary tests per-kind counting and ordering.
func TestNewSummary(t *testing.T) {
	t.Parallel()

	r := newPassingReport()
	r.AddRunViolation(Violation{Kind: KindCatalog, Message: "run"})
	r.Pages[0].AddViolation(Violation{Kind: KindImageLoad, Ordinal: 1})
	r.Pages[0].AddViolation(Violation{Kind: KindImageLoad, Ordinal: 2})
	r.Pages[1].AddViolation(Violation{Kind: KindStyle, Ordinal: 1})
	for _, p := range r.Pages {
		p.Finish()
	}
	r.Finish()

	s := r.Summary
	if s.Verdict != VerdictFailed {
		t.Errorf("expected failed verdict, got %q", s.Verdict)
	}
	if s.TotalViolations != 4 {
		t.Errorf("expected 4 violations, got %d", s.TotalViolations)
	}
	if s.Count(KindImageLoad) != 2 {
		t.Errorf("expected 2 image load violations, got %d", s.Count(KindImageLoad))
	}
	if s.Count(KindResourceUnreachable) != 0 {
		t.Errorf("expected 0 unreachable violations, got %d", s.Count(KindResourceUnreachable))
	}
	if s.FailedPages != 2 || s.PassedPages != 0 {
		t.Errorf("expected 2 failed and 0 passed pages, got %d and %d", s.FailedPages, s.PassedPages)
	}
	if s.Violations[0].Kind != KindCatalog {
		t.Errorf("expected run-level violation first, got %q", s.Violations[0].Kind)
	}
	if got := len(s.ViolationsByKind(KindStyle)); got != 1 {
		t.Errorf("expected 1 style violation, got %d", got)
	}
}

// TestViolation_Key tests that keys identify violations across runs.
func TestViolation_Key(t *testing.T) {
	t.Parallel()

	a := Violation{Kind: KindResourceUnreachable, Page: "index.html", Resource: "missing.png", Status: 404, Message: "it"}
	b := Violation{Kind: KindResourceUnreachable, Page: "index.html", Resource: "missing.png", Status: 404, Message: "en"}
	c := Violation{Kind: KindResourceUnreachable, Page: "index.html", Resource: "missing.png", Status: 500}

	if a.Key() != b.Key() {
		t.Error("expected keys to ignore the localized message")
	}
	if a.Key() == c.Key() {
		t.Error("expected different status to change the key")
	}
}

// TestErrors tests the typed errors and their unwrapping.
func TestErrors(t *testing.T) {
	t.Parallel()

	t.Run("catalog error unwraps to sentinel", func(t *testing.T) {
		t.Parallel()
		err := error(&CatalogError{Dir: "dist", Err: ErrNoPages})
		if !errors.Is(err, ErrNoPages) {
			t.Error("expected errors.Is to match ErrNoPages")
		}
		var ce *CatalogError
		if !errors.As(err, &ce) || ce.Dir != "dist" {
			t.Error("expected errors.As to extract CatalogError")
		}
	})

	t.Run("load timeout unwraps to engine error", func(t *testing.T) {
		t.Parallel()
		err := error(&LoadTimeoutError{Page: "index.html", Timeout: time.Second, Err: os.ErrDeadlineExceeded})
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			t.Error("expected errors.Is to match the engine error")
		}
	})
}

// TestReport_JSONRoundTrip tests that a report survives history storage.
func TestReport_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	r := newPassingReport()
	r.Pages[0].AddViolation(Violation{Kind: KindResourceUnreachable, Resource: "missing.png", Status: 404})
	r.Finish()

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Summary.Count(KindResourceUnreachable) != 1 {
		t.Errorf("expected summary count to survive, got %d", decoded.Summary.Count(KindResourceUnreachable))
	}
	if len(decoded.Pages) != 2 || decoded.Pages[0].Violations[0].Status != 404 {
		t.Error("expected page violations to survive")
	}
}

// TestKind tests kind metadata.
func TestKind(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("expected %q to be valid", k)
		}
		if k.Info().Title == "" {
			t.Errorf("expected %q to have a title", k)
		}
	}
	if Kind("bogus").Valid() {
		t.Error("expected unknown kind to be invalid")
	}
	if Kind("bogus").Info().Title != "bogus" {
		t.Error("expected unknown kind to fall back to its identifier")
	}
}
