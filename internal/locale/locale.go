// Package locale renders violation messages in the configured language.
//
// Message keys are English format strings. Italian translations are
// registered in a private catalog; any other language falls back to the
// English key. Italian is the default.
package locale

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// DefaultLocale is the language used when none is configured.
const DefaultLocale = "it"

// Message keys.
const (
	MsgImageIncomplete    = "%s: img #%d failed to complete loading"
	MsgImageZeroWidth     = "%s: img #%d has zero natural width"
	MsgResourceStatus     = "%s: image resource unavailable (%s) -> status %d"
	MsgResourceError      = "%s: image resource unavailable (%s) -> %s"
	MsgNonWhiteBackground = "%s: img #%d without white background (%s)"
	MsgPageNotReady       = "%s: page not ready (%s) within %s: %s"
	MsgNoModulePages      = "no module pages found in %s"
	MsgRunPassed          = "all %d pages passed"
	MsgRunFailed          = "%d violations on %d pages"
)

// supported lists the languages with a translation, English first so it is
// the matcher's fallback.
var supported = []language.Tag{
	language.English,
	language.Italian,
}

var matcher = language.NewMatcher(supported)

// italian holds the Italian translations of the message keys.
var italian = map[string]string{
	MsgImageIncomplete:    "%s: img #%d non completa il caricamento",
	MsgImageZeroWidth:     "%s: img #%d ha larghezza naturale nulla",
	MsgResourceStatus:     "%s: risorsa immagine non disponibile (%s) -> status %d",
	MsgResourceError:      "%s: risorsa immagine non disponibile (%s) -> %s",
	MsgNonWhiteBackground: "%s: img #%d senza sfondo bianco (%s)",
	MsgPageNotReady:       "%s: pagina non pronta (%s) entro %s: %s",
	MsgNoModulePages:      "nessuna pagina modulo trovata in %s",
	MsgRunPassed:          "tutte le %d pagine sono valide",
	MsgRunFailed:          "%d violazioni su %d pagine",
}

// newCatalog builds the translation catalog.
func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range italian {
		// SetString only fails on malformed tags; the tag is a constant.
		_ = b.SetString(language.Italian, key, msg) //nolint:errcheck
	}
	return b
}

// Printer formats messages in one language.
type Printer struct {
	tag     language.Tag
	printer *message.Printer
	title   cases.Caser
}

// New creates a Printer for a BCP 47 locale such as "it", "it-IT" or "en".
// Unknown or malformed locales fall back to English.
func New(locale string) *Printer {
	tag := Match(locale)
	return &Printer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(newCatalog())),
		title:   cases.Title(tag),
	}
}

// Match returns the supported language closest to locale.
func Match(locale string) language.Tag {
	if locale == "" {
		locale = DefaultLocale
	}
	requested, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, index, confidence := matcher.Match(requested)
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// Tag returns the language of the printer.
func (p *Printer) Tag() language.Tag {
	return p.tag
}

// Sprintf formats a message key with args in the printer's language.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.printer.Sprintf(key, args...)
}

// Title title-cases a label, e.g. a violation kind heading.
func (p *Printer) Title(s string) string {
	return p.title.String(s)
}
