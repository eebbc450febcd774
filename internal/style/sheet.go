package style

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/net/html"
)

// DefaultViewportWidth is the width media queries are evaluated against.
// It matches the default window of a headless Chromium.
const DefaultViewportWidth = 1280

// Declaration is one property declaration of a rule or style attribute.
type Declaration struct {
	// Property is the lowercased property name.
	Property string

	// Value is the raw value text without the !important flag.
	Value string

	// Color is the color component found in the value, if any.
	Color string

	// Important is true for !important declarations.
	Important bool
}

// rule is a single selector of a ruleset together with its background
// declarations.
type rule struct {
	selector cascadia.Sel
	decls    []Declaration
	order    int
}

// Cascade resolves background colors for nodes of one document.
// Stylesheets must be added in document order.
type Cascade struct {
	rules    []rule
	order    int
	viewport int
}

// NewCascade creates an empty cascade evaluating media queries against
// viewportWidth (DefaultViewportWidth when zero).
func NewCascade(viewportWidth int) *Cascade {
	if viewportWidth <= 0 {
		viewportWidth = DefaultViewportWidth
	}
	return &Cascade{viewport: viewportWidth}
}

// RuleCount returns the number of selector rules with background declarations.
func (c *Cascade) RuleCount() int {
	return len(c.rules)
}

// AddStylesheet parses a stylesheet and appends its background rules.
// Rules read before a syntax error are kept and the error is returned.
func (c *Cascade) AddStylesheet(r io.Reader) error {
	p := css.NewParser(parse.NewInput(r), false)

	var (
		selectors []string
		current   []Declaration
		inRuleset bool
		skipStack []bool
	)
	skipping := func() bool {
		for _, s := range skipStack {
			if s {
				return true
			}
		}
		return false
	}

	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil

		case css.BeginAtRuleGrammar:
			skipStack = append(skipStack, !c.atRuleApplies(string(data), tokensText(p.Values())))

		case css.EndAtRuleGrammar:
			if len(skipStack) > 0 {
				skipStack = skipStack[:len(skipStack)-1]
			}

		case css.QualifiedRuleGrammar:
			selectors = append(selectors, tokensText(p.Values()))

		case css.BeginRulesetGrammar:
			selectors = append(selectors, tokensText(p.Values()))
			inRuleset = true
			current = nil

		case css.DeclarationGrammar:
			if !inRuleset {
				continue
			}
			if d, ok := newDeclaration(string(data), p.Values()); ok {
				current = append(current, d)
			}

		case css.EndRulesetGrammar:
			if len(current) > 0 && !skipping() {
				c.addRule(selectors, current)
			}
			selectors = nil
			current = nil
			inRuleset = false
		}
	}
}

// addRule registers each selector of a ruleset separately so the most
// specific matching selector of a list wins.
func (c *Cascade) addRule(selectors []string, decls []Declaration) {
	order := c.order
	c.order++
	for _, text := range selectors {
		text = strings.TrimSpace(text)
		if text == "" || strings.Contains(text, "::") {
			continue
		}
		sel, err := cascadia.Parse(text)
		if err != nil || sel.PseudoElement() != "" {
			continue
		}
		c.rules = append(c.rules, rule{selector: sel, decls: decls, order: order})
	}
}

// mediaWidth matches min-width and max-width features of a media query.
var mediaWidth = regexp.MustCompile(`\(\s*(min|max)-width\s*:\s*([0-9.]+)\s*(px|em|rem)?\s*\)`)

// atRuleApplies reports whether rules nested in an at-rule take part in
// the cascade of a screen of the configured width.
func (c *Cascade) atRuleApplies(name, prelude string) bool {
	switch strings.ToLower(name) {
	case "@media":
	case "@supports", "@layer", "@container", "@document":
		return true
	default:
		return false
	}

	prelude = strings.ToLower(prelude)
	if strings.Contains(prelude, "print") && !strings.Contains(prelude, "screen") {
		return false
	}
	for _, m := range mediaWidth.FindAllStringSubmatch(prelude, -1) {
		size, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		if m[3] == "em" || m[3] == "rem" {
			size *= 16
		}
		width := float64(c.viewport)
		if m[1] == "min" && width < size {
			return false
		}
		if m[1] == "max" && width > size {
			return false
		}
	}
	return true
}

// ParseInline parses the declarations of a style attribute.
func ParseInline(style string) []Declaration {
	p := css.NewParser(parse.NewInput(strings.NewReader(style)), true)
	var decls []Declaration
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			return decls
		case css.DeclarationGrammar:
			if d, ok := newDeclaration(string(data), p.Values()); ok {
				decls = append(decls, d)
			}
		}
	}
}

// newDeclaration keeps background and background-color declarations.
func newDeclaration(property string, values []css.Token) (Declaration, bool) {
	property = strings.ToLower(strings.TrimSpace(property))
	if property != "background" && property != "background-color" {
		return Declaration{}, false
	}

	values, important := stripImportant(values)
	return Declaration{
		Property:  property,
		Value:     strings.TrimSpace(tokensText(values)),
		Color:     colorComponent(values),
		Important: important,
	}, true
}

// stripImportant removes a trailing "!important" from a value.
func stripImportant(values []css.Token) ([]css.Token, bool) {
	end := len(values)
	for end > 0 && values[end-1].TokenType == css.WhitespaceToken {
		end--
	}
	if end < 1 || values[end-1].TokenType != css.IdentToken || !strings.EqualFold(string(values[end-1].Data), "important") {
		return values, false
	}
	bang := end - 2
	for bang >= 0 && values[bang].TokenType == css.WhitespaceToken {
		bang--
	}
	if bang < 0 || values[bang].TokenType != css.DelimToken || string(values[bang].Data) != "!" {
		return values, false
	}
	return values[:bang], true
}

// colorComponent returns the first token sequence of a value that parses as
// a color: a hash, a named color or a color function.
func colorComponent(values []css.Token) string {
	for i := 0; i < len(values); i++ {
		tok := values[i]
		switch tok.TokenType {
		case css.HashToken:
			if _, ok := ParseColor(string(tok.Data)); ok {
				return string(tok.Data)
			}
		case css.IdentToken:
			if _, ok := ParseColor(string(tok.Data)); ok {
				return string(tok.Data)
			}
		case css.FunctionToken:
			name := strings.ToLower(string(tok.Data))
			var b bytes.Buffer
			b.Write(tok.Data)
			j := i + 1
			for ; j < len(values) && values[j].TokenType != css.RightParenthesisToken; j++ {
				b.Write(values[j].Data)
				if values[j].TokenType != css.WhitespaceToken {
					b.WriteByte(' ')
				}
			}
			b.WriteByte(')')
			i = j
			switch name {
			case "rgb(", "rgba(", "hsl(", "hsla(":
				if _, ok := ParseColor(b.String()); ok {
					return b.String()
				}
			}
		}
	}
	return ""
}

// tokensText concatenates the raw token data.
func tokensText(values []css.Token) string {
	var b strings.Builder
	for _, v := range values {
		b.Write(v.Data)
	}
	return b.String()
}

// rank orders competing declarations.
type rank struct {
	important   bool
	inline      bool
	specificity cascadia.Specificity
	order       int
}

// less reports whether r loses against o.
func (r rank) less(o rank) bool {
	if r.important != o.important {
		return !r.important
	}
	if r.inline != o.inline {
		return !r.inline
	}
	if r.specificity != o.specificity {
		return r.specificity.Less(o.specificity)
	}
	return r.order < o.order
}

// BackgroundColor returns the computed background color of an element in
// the serialized form used by getComputedStyle. Values the cascade cannot
// resolve, such as var() references, are returned with normalized spacing.
func (c *Cascade) BackgroundColor(n *html.Node) string {
	decl, ok := c.winning(n)
	if !ok {
		return Transparent
	}

	switch strings.ToLower(decl.Value) {
	case "inherit":
		if parent := parentElement(n); parent != nil {
			return c.BackgroundColor(parent)
		}
		return Transparent
	case "initial", "unset", "revert", "revert-layer":
		return Transparent
	}

	if decl.Color != "" {
		return Normalize(decl.Color)
	}
	if decl.Property == "background" && !strings.Contains(strings.ToLower(decl.Value), "var(") {
		// The shorthand resets an omitted color to its initial value.
		return Transparent
	}
	return NormalizeSpacing(decl.Value)
}

// winning returns the declaration that wins the cascade for n.
func (c *Cascade) winning(n *html.Node) (Declaration, bool) {
	var (
		best     Declaration
		bestRank rank
		found    bool
	)
	consider := func(d Declaration, r rank) {
		if !found || bestRank.less(r) {
			best, bestRank, found = d, r, true
		}
	}

	for _, rl := range c.rules {
		if !rl.selector.Match(n) {
			continue
		}
		for i, d := range rl.decls {
			consider(d, rank{
				important:   d.Important,
				specificity: rl.selector.Specificity(),
				order:       rl.order*1000 + i,
			})
		}
	}

	for i, d := range ParseInline(attr(n, "style")) {
		consider(d, rank{important: d.Important, inline: true, order: i})
	}

	return best, found
}

// parentElement returns the nearest ancestor element of n.
func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// attr returns the value of an attribute of n.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
