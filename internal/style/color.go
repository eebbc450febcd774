// Package style normalizes CSS colors and resolves background colors from
// stylesheets for engines that do not render pages.
package style

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Canonical string forms of opaque white as reported by getComputedStyle.
const (
	WhiteRGB  = "rgb(255, 255, 255)"
	WhiteRGBA = "rgba(255, 255, 255, 1)"
)

// Transparent is the computed form of the initial background color.
const Transparent = "rgba(0, 0, 0, 0)"

// Color is an sRGB color with a straight alpha in [0, 1].
type Color struct {
	R, G, B uint8
	A       float64
}

// String formats the color the way browsers serialize computed colors:
// rgb(r, g, b) when opaque, rgba(r, g, b, a) otherwise.
func (c Color) String() string {
	if c.A >= 1 {
		return "rgb(" + strconv.Itoa(int(c.R)) + ", " + strconv.Itoa(int(c.G)) + ", " + strconv.Itoa(int(c.B)) + ")"
	}
	// Three decimals, never rounded up to an opaque 1.
	a := math.Round(c.A*1000) / 1000
	if a >= 1 {
		a = math.Floor(c.A*1000) / 1000
	}
	alpha := strconv.FormatFloat(a, 'f', -1, 64)
	return "rgba(" + strconv.Itoa(int(c.R)) + ", " + strconv.Itoa(int(c.G)) + ", " + strconv.Itoa(int(c.B)) + ", " + alpha + ")"
}

// IsOpaqueWhite reports whether a computed background color is one of the
// two canonical forms of opaque white. The value is compared after
// whitespace normalization only.
func IsOpaqueWhite(value string) bool {
	v := NormalizeSpacing(value)
	return v == WhiteRGB || v == WhiteRGBA
}

// Normalize returns the canonical computed form of a CSS color value.
// Values that cannot be parsed are returned lowercased with normalized
// spacing.
func Normalize(value string) string {
	if c, ok := ParseColor(value); ok {
		return c.String()
	}
	return NormalizeSpacing(value)
}

// NormalizeSpacing lowercases value, collapses whitespace and puts exactly
// one space after each comma inside functional notation.
func NormalizeSpacing(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.Join(strings.Fields(v), " ")
	v = strings.ReplaceAll(v, " ,", ",")
	v = strings.ReplaceAll(v, ", ", ",")
	v = strings.ReplaceAll(v, ",", ", ")
	v = strings.ReplaceAll(v, "( ", "(")
	v = strings.ReplaceAll(v, " )", ")")
	return v
}

// ParseColor parses hex, rgb(), rgba(), hsl(), hsla(), named colors and
// the transparent keyword.
func ParseColor(value string) (Color, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "":
		return Color{}, false
	case v == "transparent":
		return Color{}, true
	case strings.HasPrefix(v, "#"):
		return parseHex(v[1:])
	case strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba("):
		return parseRGB(v)
	case strings.HasPrefix(v, "hsl(") || strings.HasPrefix(v, "hsla("):
		return parseHSL(v)
	}
	if named, ok := colornames.Map[v]; ok {
		return Color{R: named.R, G: named.G, B: named.B, A: 1}, true
	}
	return Color{}, false
}

// parseHex parses #rgb, #rgba, #rrggbb and #rrggbbaa without the hash.
func parseHex(h string) (Color, bool) {
	switch len(h) {
	case 3, 4:
		expanded := make([]byte, 0, len(h)*2)
		for i := 0; i < len(h); i++ {
			expanded = append(expanded, h[i], h[i])
		}
		h = string(expanded)
	case 6, 8:
	default:
		return Color{}, false
	}

	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, false
	}
	if len(h) == 6 {
		return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 1}, true
	}
	return Color{
		R: uint8(n >> 24),
		G: uint8(n >> 16),
		B: uint8(n >> 8),
		A: float64(uint8(n)) / 255,
	}, true
}

// functionArgs splits the arguments of a functional color notation.
// Both the legacy comma syntax and the space syntax with "/ alpha" are accepted.
func functionArgs(v string) ([]string, bool) {
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return nil, false
	}
	body := v[open+1 : len(v)-1]
	body = strings.ReplaceAll(body, "/", " / ")
	body = strings.ReplaceAll(body, ",", " ")
	fields := strings.Fields(body)

	args := make([]string, 0, 4)
	for i, f := range fields {
		if f == "/" {
			if i != 3 {
				return nil, false
			}
			continue
		}
		args = append(args, f)
	}
	if len(args) != 3 && len(args) != 4 {
		return nil, false
	}
	return args, true
}

// parseRGB parses rgb() and rgba().
func parseRGB(v string) (Color, bool) {
	args, ok := functionArgs(v)
	if !ok {
		return Color{}, false
	}
	var channels [3]uint8
	for i := 0; i < 3; i++ {
		c, ok := parseChannel(args[i])
		if !ok {
			return Color{}, false
		}
		channels[i] = c
	}
	alpha := 1.0
	if len(args) == 4 {
		if alpha, ok = parseAlpha(args[3]); !ok {
			return Color{}, false
		}
	}
	return Color{R: channels[0], G: channels[1], B: channels[2], A: alpha}, true
}

// parseHSL parses hsl() and hsla().
func parseHSL(v string) (Color, bool) {
	args, ok := functionArgs(v)
	if !ok {
		return Color{}, false
	}
	h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
	if err != nil {
		return Color{}, false
	}
	s, ok := parsePercent(args[1])
	if !ok {
		return Color{}, false
	}
	l, ok := parsePercent(args[2])
	if !ok {
		return Color{}, false
	}
	alpha := 1.0
	if len(args) == 4 {
		if alpha, ok = parseAlpha(args[3]); !ok {
			return Color{}, false
		}
	}

	r, g, b := hslToRGB(math.Mod(math.Mod(h, 360)+360, 360)/360, s, l)
	return Color{R: r, G: g, B: b, A: alpha}, true
}

// parseChannel parses a 0-255 number or a percentage.
func parseChannel(s string) (uint8, bool) {
	if strings.HasSuffix(s, "%") {
		p, ok := parsePercent(s)
		if !ok {
			return 0, false
		}
		return clampByte(p * 255), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return clampByte(f), true
}

// parseAlpha parses a 0-1 number or a percentage.
func parseAlpha(s string) (float64, bool) {
	if strings.HasSuffix(s, "%") {
		return parsePercent(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return math.Max(0, math.Min(1, f)), true
}

// parsePercent parses "50%" into 0.5, clamped to [0, 1].
func parsePercent(s string) (float64, bool) {
	if !strings.HasSuffix(s, "%") {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, false
	}
	return math.Max(0, math.Min(1, f/100)), true
}

func clampByte(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, f))))
}

// hslToRGB converts hue, saturation and lightness in [0, 1] to sRGB bytes.
func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	if s == 0 {
		v := clampByte(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return clampByte(hueToRGB(p, q, h+1.0/3) * 255),
		clampByte(hueToRGB(p, q, h) * 255),
		clampByte(hueToRGB(p, q, h-1.0/3) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}
