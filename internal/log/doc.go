// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The SecureHandler sanitizes:
//   - Attributes whose key names a credential (Authorization, Cookie, token, ...)
//   - Values that look like secrets (bearer and basic credentials, JWTs, keys)
//   - Header maps, per header
//   - URLs carrying a password or an access token in the query string
//
// Sitecheck logs the headers and base URLs of preview deployments, which
// frequently embed such credentials. Even in verbose mode they are masked.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//	logger.Info("loading page",
//	    "url", "https://preview.example.com/?token=abc", // token is masked
//	    "headers", map[string]string{"Authorization": "Bearer x"},
//	)
//	slog.SetDefault(logger)
package log
