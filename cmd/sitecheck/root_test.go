package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "sitecheck" {
			t.Errorf("expected use 'sitecheck', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has global flags", func(t *testing.T) {
		t.Parallel()
		verbose := cmd.PersistentFlags().Lookup("verbose")
		if verbose == nil || verbose.Shorthand != "v" || verbose.DefValue != "false" {
			t.Errorf("unexpected verbose flag %+v", verbose)
		}
		if cmd.PersistentFlags().Lookup("log-json") == nil {
			t.Error("expected log-json flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"check": false, "compare": false, "init": false, "version": false}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected SilenceUsage and SilenceErrors to be true")
		}
	})
}

// TestGetVerboseFlag tests the verbose flag lookup from subcommands.
func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("false when unset", func(t *testing.T) {
		t.Parallel()
		if getVerboseFlag(NewCheckCmd()) {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("inherited from root", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		_ = root.PersistentFlags().Set("verbose", "true")
		check, _, err := root.Find([]string{"check"})
		if err != nil {
			t.Fatalf("failed to find check command: %v", err)
		}
		if !getVerboseFlag(check) {
			t.Error("expected true from root verbose flag")
		}
	})
}

// TestNewLogger tests logger selection and redaction.
func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := newLogger(NewRootCmd(), &buf, false)
		logger.Warn("loading page", "authorization", "Basic c2VjcmV0")
		out := buf.String()
		if !strings.Contains(out, "loading page") || strings.Contains(out, "c2VjcmV0") {
			t.Errorf("expected redacted text log, got %q", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		_ = root.PersistentFlags().Set("log-json", "true")

		var buf bytes.Buffer
		logger := newLogger(root, &buf, false)
		logger.Warn("loading page")
		if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
			t.Errorf("expected JSON log, got %q", buf.String())
		}
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		newLogger(NewRootCmd(), &buf, true).Debug("debug line")
		if !strings.Contains(buf.String(), "debug line") {
			t.Errorf("expected debug output, got %q", buf.String())
		}
	})
}
