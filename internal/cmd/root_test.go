package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "2025-12-01T10:00:00Z")

	expected := "1.2.3 (built 2025-12-01T10:00:00Z)"
	if rootCmd.Version != expected {
		t.Errorf("Expected version %s, got %s", expected, rootCmd.Version)
	}
}

func TestInitConfig(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "sitesearch.yml")

	configContent := `
language: english
frequency_threshold: 0.6
request_timeout: 3s
sites:
  - url: https://example.com
    name: Example
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	cfgFile = configFile
	defer func() {
		cfgFile = ""
		viper.Reset()
	}()

	initConfig()

	if viper.ConfigFileUsed() != configFile {
		t.Errorf("Expected config file %s, got %s", configFile, viper.ConfigFileUsed())
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Language != "english" {
		t.Errorf("Expected language 'english', got %s", cfg.Language)
	}
	if cfg.FrequencyThreshold != 0.6 {
		t.Errorf("Expected threshold 0.6, got %v", cfg.FrequencyThreshold)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("Expected request timeout 3s, got %v", cfg.RequestTimeout)
	}
	if len(cfg.Sites) != 1 || cfg.Sites[0].Name != "Example" {
		t.Errorf("Expected the configured site, got %v", cfg.Sites)
	}

	// Defaults survive a partial config file.
	if cfg.ShortQueryLemmas != 4 {
		t.Errorf("Expected default short query cutoff 4, got %d", cfg.ShortQueryLemmas)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	// No sites configured.
	if _, err := loadConfig(); err == nil {
		t.Error("Expected validation error without sites")
	}
}

func TestRootCmd(t *testing.T) {
	if rootCmd.Use != "sitesearch" {
		t.Errorf("Expected use 'sitesearch', got %s", rootCmd.Use)
	}

	subcommands := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		subcommands[c.Name()] = true
	}
	for _, want := range []string{"index", "search", "delete-site", "stats"} {
		if !subcommands[want] {
			t.Errorf("Expected subcommand %s to be registered", want)
		}
	}
}
