package style

import (
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// moduleImages parses doc and returns the images matched by the module
// image selector in document order.
func moduleImages(t *testing.T, doc string) []*html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return cascadia.MustCompile(".module-image img").MatchAll(root)
}

// newTestCascade builds a cascade from the given stylesheets.
func newTestCascade(t *testing.T, sheets ...string) *Cascade {
	t.Helper()
	c := NewCascade(0)
	for _, s := range sheets {
		if err := c.AddStylesheet(strings.NewReader(s)); err != nil {
			t.Fatalf("failed to add stylesheet: %v", err)
		}
	}
	return c
}

// TestCascadeBackgroundColor tests background resolution for module images.
func TestCascadeBackgroundColor(t *testing.T) {
	t.Parallel()

	const twoImages = `<html><body>
<figure class="module-image"><img src="a.png"></figure>
<figure class="module-image"><img src="b.png" class="dark"></figure>
</body></html>`

	tests := []struct {
		name   string
		sheets []string
		doc    string
		want   []string
	}{
		{
			name:   "no rule yields transparent",
			sheets: nil,
			doc:    twoImages,
			want:   []string{Transparent, Transparent},
		},
		{
			name:   "hex white",
			sheets: []string{`.module-image img { background-color: #fff; }`},
			doc:    twoImages,
			want:   []string{WhiteRGB, WhiteRGB},
		},
		{
			name: "more specific selector wins",
			sheets: []string{`.module-image img.dark { background: #222 } .module-image img { background: white url(x.png) no-repeat }`},
			doc:  twoImages,
			want: []string{WhiteRGB, "rgb(34, 34, 34)"},
		},
		{
			name: "later rule wins at equal specificity",
			sheets: []string{
				`.module-image img { background-color: white }`,
				`.module-image img { background-color: rgb(240, 240, 240) }`,
			},
			doc:  twoImages,
			want: []string{"rgb(240, 240, 240)", "rgb(240, 240, 240)"},
		},
		{
			name: "important beats specificity",
			sheets: []string{`.module-image img { background-color: white !important } .module-image img.dark { background-color: black }`},
			doc:  twoImages,
			want: []string{WhiteRGB, WhiteRGB},
		},
		{
			name:   "inline style beats rules",
			sheets: []string{`.module-image img { background-color: white }`},
			doc:    `<div class="module-image"><img style="background-color: rgba(255,255,255,0.4)"></div>`,
			want:   []string{"rgba(255, 255, 255, 0.4)"},
		},
		{
			name:   "inherit resolves from parent",
			sheets: []string{`.module-image { background: #ffffff } .module-image img { background-color: inherit }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{WhiteRGB},
		},
		{
			name:   "shorthand without color resets",
			sheets: []string{`.module-image img { background-color: white } .module-image img { background: url(x.png) }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{Transparent},
		},
		{
			name:   "print media rules are ignored",
			sheets: []string{`.module-image img { background: white } @media print { .module-image img { background: black } }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{WhiteRGB},
		},
		{
			name:   "narrow media rules are ignored",
			sheets: []string{`.module-image img { background: white } @media (max-width: 680px) { .module-image img { background: black } }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{WhiteRGB},
		},
		{
			name:   "wide media rules apply",
			sheets: []string{`.module-image img { background: white } @media screen and (min-width: 1024px) { .module-image img { background: #eee } }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{"rgb(238, 238, 238)"},
		},
		{
			name:   "pseudo-element rules do not style the image",
			sheets: []string{`.module-image img { background: white } .module-image img:before { background: black } .module-image img::after { background: black }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{WhiteRGB},
		},
		{
			name:   "selector lists match any member",
			sheets: []string{`p, .module-image img { background-color: hsl(0, 0%, 100%) }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{WhiteRGB},
		},
		{
			name:   "unresolvable values pass through",
			sheets: []string{`.module-image img { background-color: var(--paper) }`},
			doc:    `<div class="module-image"><img></div>`,
			want:   []string{"var(--paper)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestCascade(t, tt.sheets...)
			imgs := moduleImages(t, tt.doc)
			if len(imgs) != len(tt.want) {
				t.Fatalf("expected %d images, got %d", len(tt.want), len(imgs))
			}
			for i, img := range imgs {
				if got := c.BackgroundColor(img); got != tt.want[i] {
					t.Errorf("image %d: BackgroundColor() = %q, want %q", i+1, got, tt.want[i])
				}
			}
		})
	}
}

// TestParseInline tests style attribute parsing.
func TestParseInline(t *testing.T) {
	t.Parallel()

	decls := ParseInline("color: red; background-color: #fff !important; margin: 0")
	if len(decls) != 1 {
		t.Fatalf("expected 1 background declaration, got %d", len(decls))
	}
	d := decls[0]
	if d.Property != "background-color" || !d.Important || d.Color != "#fff" {
		t.Errorf("unexpected declaration %+v", d)
	}
}

// TestCascadeIgnoresOtherAtRules tests that keyframes and font-face blocks do not leak rules.
func TestCascadeIgnoresOtherAtRules(t *testing.T) {
	t.Parallel()

	c := newTestCascade(t, `@font-face { font-family: x; src: url(x.woff) }
@keyframes fade { from { background: black } to { background: white } }
img { background: white }`)
	if got := c.RuleCount(); got != 1 {
		t.Errorf("expected 1 rule, got %d", got)
	}
}
