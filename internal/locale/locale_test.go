package locale

import (
	"testing"

	"golang.org/x/text/language"
)

// TestMatch tests locale negotiation.
func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locale string
		want   language.Tag
	}{
		{"", language.Italian},
		{"it", language.Italian},
		{"it-IT", language.Italian},
		{"it-CH", language.Italian},
		{"en", language.English},
		{"en-GB", language.English},
		{"ja", language.English},
		{"!!", language.English},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			t.Parallel()
			if got := Match(tt.locale); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.locale, got, tt.want)
			}
		})
	}
}

// TestPrinter_Sprintf tests message rendering in both languages.
func TestPrinter_Sprintf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		locale string
		key    string
		args   []any
		want   string
	}{
		{
			name:   "italian incomplete image",
			locale: "it",
			key:    MsgImageIncomplete,
			args:   []any{"index.html", 1},
			want:   "index.html: img #1 non completa il caricamento",
		},
		{
			name:   "italian zero width",
			locale: "it",
			key:    MsgImageZeroWidth,
			args:   []any{"index.html", 2},
			want:   "index.html: img #2 ha larghezza naturale nulla",
		},
		{
			name:   "italian unreachable resource",
			locale: "it",
			key:    MsgResourceStatus,
			args:   []any{"index.html", "missing.png", 404},
			want:   "index.html: risorsa immagine non disponibile (missing.png) -> status 404",
		},
		{
			name:   "italian background",
			locale: "it",
			key:    MsgNonWhiteBackground,
			args:   []any{"module-3.html", 1, "rgb(200, 200, 200)"},
			want:   "module-3.html: img #1 senza sfondo bianco (rgb(200, 200, 200))",
		},
		{
			name:   "english falls back to key",
			locale: "en",
			key:    MsgImageIncomplete,
			args:   []any{"index.html", 1},
			want:   "index.html: img #1 failed to complete loading",
		},
		{
			name:   "english unreachable resource",
			locale: "en",
			key:    MsgResourceStatus,
			args:   []any{"about.html", "/img/a.png", 500},
			want:   "about.html: image resource unavailable (/img/a.png) -> status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := New(tt.locale)
			if got := p.Sprintf(tt.key, tt.args...); got != tt.want {
				t.Errorf("Sprintf() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestItalianCatalogIsComplete tests that every key has a translation.
func TestItalianCatalogIsComplete(t *testing.T) {
	t.Parallel()

	keys := []string{
		MsgImageIncomplete,
		MsgImageZeroWidth,
		MsgResourceStatus,
		MsgResourceError,
		MsgNonWhiteBackground,
		MsgPageNotReady,
		MsgNoModulePages,
		MsgRunPassed,
		MsgRunFailed,
	}
	for _, key := range keys {
		if _, ok := italian[key]; !ok {
			t.Errorf("missing italian translation for %q", key)
		}
	}
}
