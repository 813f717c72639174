package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# MozaicHub Configuration File",
		"logging:",
		"metadata:",
		"content:",
		"quota:",
		"deletion:",
		"notifications:",
		"auth:",
		"adapters:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfigToPath_ForceOverwrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("existing"), 0600); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	if err := InitConfigToPath(configPath, true); err != nil {
		t.Fatalf("Force InitConfigToPath failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if !strings.Contains(string(content), "# MozaicHub Configuration File") {
		t.Error("Config file was not properly overwritten")
	}
}

func TestGenerateYAMLWithComments_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	out, err := GenerateYAMLWithComments(cfg)
	if err != nil {
		t.Fatalf("GenerateYAMLWithComments failed: %v", err)
	}
	text := string(out)

	if !strings.Contains(text, "# Sizes in bytes.") {
		t.Error("Generated YAML should carry section comments")
	}
	for _, want := range []string{"INFO", "72h0m0s", "8080", "mozaichub.notifications"} {
		if !strings.Contains(text, want) {
			t.Errorf("Generated YAML missing default value %q", want)
		}
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("Failed to generate config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}

	defaults := GetDefaultConfig()
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected INFO log level, got %q", cfg.Logging.Level)
	}
	if cfg.Deletion.Grace != defaults.Deletion.Grace {
		t.Errorf("Expected grace %v, got %v", defaults.Deletion.Grace, cfg.Deletion.Grace)
	}
	if cfg.Adapters.HTTP.Port != defaults.Adapters.HTTP.Port {
		t.Errorf("Expected port %d, got %d", defaults.Adapters.HTTP.Port, cfg.Adapters.HTTP.Port)
	}
	if len(cfg.Auth.JWTSecret) != 64 {
		t.Errorf("Expected generated 64 character secret, got %d characters", len(cfg.Auth.JWTSecret))
	}
	if cfg.Metadata.Badger["db_path"] != defaults.Metadata.Badger["db_path"] {
		t.Errorf("Expected badger path %v, got %v", defaults.Metadata.Badger["db_path"], cfg.Metadata.Badger["db_path"])
	}
}
