package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sitecheck/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	if cmd.Use != "init" {
		t.Errorf("expected use 'init', got %q", cmd.Use)
	}

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"output", "o", ".sitecheck"},
		{"force", "f", "false"},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.name)
		if flag == nil {
			t.Errorf("expected %s flag", tt.name)
			continue
		}
		if flag.Shorthand != tt.shorthand || flag.DefValue != tt.defValue {
			t.Errorf("flag %s: got shorthand %q default %q", tt.name, flag.Shorthand, flag.DefValue)
		}
	}
}

// runInit executes the init command with args.
func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".sitecheck")
		out, err := runInit(t, "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Created configuration file") {
			t.Errorf("unexpected output %q", out)
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("expected config file: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "ci", "nested", "sitecheck.yaml")
		if _, err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(outputPath); err != nil {
			t.Errorf("expected config file in nested directory: %v", err)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".sitecheck")
		if err := os.WriteFile(outputPath, []byte("locale: en\n"), 0600); err != nil {
			t.Fatal(err)
		}

		_, err := runInit(t, "-o", outputPath)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected already exists error, got %v", err)
		}

		content, _ := os.ReadFile(outputPath) //nolint:gosec // test path
		if string(content) != "locale: en\n" {
			t.Error("expected existing file to be untouched")
		}
	})

	t.Run("force overwrites", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".sitecheck")
		if err := os.WriteFile(outputPath, []byte("locale: en\n"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := runInit(t, "-f", "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, _ := os.ReadFile(outputPath) //nolint:gosec // test path
		if !bytes.Equal(content, configTemplate) {
			t.Error("expected file to be replaced by the template")
		}
	})

	t.Run("rejects arguments", func(t *testing.T) {
		t.Parallel()

		if _, err := runInit(t, "extra"); err == nil {
			t.Error("expected error for positional argument")
		}
	})
}

// TestConfigTemplate tests that the embedded template loads as a valid config.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".sitecheck")
	if err := os.WriteFile(path, configTemplate, 0600); err != nil {
		t.Fatal(err)
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}

	cfg := config.NewConfig()
	file.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		t.Errorf("template does not validate: %v", err)
	}

	defaults := config.NewConfig()
	if cfg.OutputDir != defaults.OutputDir || cfg.BaseURL != defaults.BaseURL ||
		cfg.Engine != defaults.Engine || cfg.Timeout != defaults.Timeout ||
		cfg.Locale != defaults.Locale || cfg.ModuleClass != defaults.ModuleClass {
		t.Errorf("template values differ from defaults: %+v", cfg)
	}
}
