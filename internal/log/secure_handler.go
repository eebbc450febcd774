package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute and header names whose values are always
// masked. Preview deployments are commonly protected by one of these.
var sensitiveKeys = map[string]bool{
	"authorization":              true,
	"proxy-authorization":        true,
	"cookie":                     true,
	"set-cookie":                 true,
	"x-api-key":                  true,
	"x-auth-token":               true,
	"x-preview-token":            true,
	"x-vercel-protection-bypass": true,
	"cf-access-client-id":        true,
	"cf-access-client-secret":    true,
	"password":                   true,
	"passwd":                     true,
	"secret":                     true,
	"token":                      true,
	"api_key":                    true,
	"apikey":                     true,
	"api-key":                    true,
	"access_token":               true,
	"session":                    true,
	"session_id":                 true,
	"sessionid":                  true,
	"credential":                 true,
	"credentials":                true,
	"auth":                       true,
}

// sensitivePatterns match values that are masked whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
}

// sensitiveQueryParams are URL query parameters whose values are redacted,
// as preview deployments often carry access tokens in the URL.
var sensitiveQueryParams = []string{
	"token", "access_token", "auth", "key", "api_key", "apikey",
	"signature", "sig", "x-amz-signature", "x-vercel-protection-bypass",
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler to sanitize sensitive information.
// It intercepts log records and sanitizes attribute values that match
// sensitive key names or value patterns before passing them to the
// underlying handler. Header maps are sanitized per header and URLs lose
// their password and token query parameters.
type SecureHandler struct {
	// handler is the underlying slog handler that receives sanitized records.
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// All log attributes will be sanitized before being passed to the underlying handler.
// If handler is nil, the returned SecureHandler will use slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	// Create a new record with sanitized attributes
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	// Sanitize each attribute
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are sanitized before being added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	// Handle groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	// Check if the key indicates sensitive data
	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if isSensitiveValue(strVal) {
			return slog.String(a.Key, MaskValue)
		}
		if redacted, ok := redactURL(strVal); ok {
			return slog.String(a.Key, redacted)
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]string:
			return slog.Any(a.Key, SanitizeHeaders(v))
		case http.Header:
			return slog.Any(a.Key, sanitizeHTTPHeader(v))
		case *url.URL:
			if v != nil {
				if redacted, ok := redactURL(v.String()); ok {
					return slog.String(a.Key, redacted)
				}
			}
		}
	}

	return a
}

// SanitizeHeaders returns a copy of headers with the values of sensitive
// headers masked.
func SanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = sanitizeHeaderValue(k, v)
	}
	return out
}

// sanitizeHTTPHeader masks sensitive values of an http.Header.
func sanitizeHTTPHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, values := range h {
		masked := make([]string, len(values))
		for i, v := range values {
			masked[i] = sanitizeHeaderValue(k, v)
		}
		out[k] = masked
	}
	return out
}

func sanitizeHeaderValue(name, value string) string {
	key := strings.ToLower(name)
	if sensitiveKeys[key] || containsSensitiveKeyword(key) || isSensitiveValue(value) {
		return MaskValue
	}
	return value
}

// redactURL masks the password and token query parameters of an absolute
// URL. It reports false when s is not such a URL or holds nothing to mask.
func redactURL(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}

	changed := false
	maskPassword := false
	if _, hasPassword := u.User.Password(); hasPassword {
		// UserPassword would percent-encode the mask.
		u.User = url.User(u.User.Username())
		maskPassword = true
		changed = true
	}

	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i, pair := range pairs {
			name, _, _ := strings.Cut(pair, "=")
			if decoded, err := url.QueryUnescape(name); err == nil {
				name = decoded
			}
			for _, param := range sensitiveQueryParams {
				if strings.EqualFold(name, param) {
					pairs[i] = name + "=" + MaskValue
					changed = true
				}
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}
	if !changed {
		return "", false
	}
	out := u.String()
	if maskPassword {
		user := u.Scheme + "://" + u.User.String()
		out = strings.Replace(out, user+"@", user+":"+MaskValue+"@", 1)
	}
	return out, true
}

// containsSensitiveKeyword reports whether key contains a sensitive word.
// A bare "key" is not one of them.
func containsSensitiveKeyword(key string) bool {
	sensitiveKeywords := []string{
		"password", "passwd", "secret", "token", "auth",
		"credential", "cookie", "bypass",
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewSecureLogger returns a text logger on w that masks sensitive values.
// It logs at Warn, or at Debug when verbose is set.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with one JSON object per line,
// for CI log collectors.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
