package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeDoc(t, "config.json", `{
		"bot_identity": {"name": "Cyan"},
		"server_settings": {
			"42": {"allowed_channels": [100, "200"], "keywords": ["Cyan"], "log_channel": 300},
			"default": {"allowed_channels": [], "keywords": ["シアン"]}
		}
	}`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := doc.Servers["42"]
	if len(s.AllowedChannels) != 2 || s.AllowedChannels[0] != "100" || s.AllowedChannels[1] != "200" {
		t.Fatalf("mixed-type channel ids not normalized: %v", s.AllowedChannels)
	}
	if s.LogChannel != "300" {
		t.Fatalf("numeric log_channel not normalized: %q", s.LogChannel)
	}
	if doc.BotName != "Cyan" || doc.Model != "deepseek/deepseek-chat" {
		t.Fatalf("defaults not applied: name=%q model=%q", doc.BotName, doc.Model)
	}
}

func TestLoad_JSONSnowflakeIDs(t *testing.T) {
	// Real Discord ids are 18-19 digit integers, beyond float64 precision.
	path := writeDoc(t, "config.json", `{
		"server_settings": {
			"987654321098765432": {
				"allowed_channels": [1234567890123456789],
				"keywords": ["Cyan"],
				"log_channel": 9007199254740993
			}
		}
	}`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := doc.Servers["987654321098765432"]
	if len(s.AllowedChannels) != 1 || s.AllowedChannels[0] != "1234567890123456789" {
		t.Fatalf("snowflake channel id lost digits: %v", s.AllowedChannels)
	}
	if s.LogChannel != "9007199254740993" {
		t.Fatalf("snowflake log_channel lost digits: %q", s.LogChannel)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeDoc(t, "config.yaml", `
bot_name: Cyan
bot_identity:
  name: Cyan
server_settings:
  "42":
    allowed_channels: [100, "200"]
    keywords: [Cyan]
    log_channel: 300
  default:
    keywords: [シアン]
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s := doc.Servers["42"]
	if len(s.AllowedChannels) != 2 || s.AllowedChannels[0] != "100" || s.AllowedChannels[1] != "200" {
		t.Fatalf("yaml channel ids not normalized: %v", s.AllowedChannels)
	}
	if s.LogChannel != "300" {
		t.Fatalf("yaml log_channel not normalized: %q", s.LogChannel)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeDoc(t, "config.json", `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CYAN_TEST_VAR", "hello")

	got := ExpandEnvVars("a ${CYAN_TEST_VAR} b")
	if got != "a hello b" {
		t.Fatalf("expansion failed: %q", got)
	}

	got = ExpandEnvVars("${CYAN_TEST_UNSET:-fallback}")
	if got != "fallback" {
		t.Fatalf("default not used: %q", got)
	}

	got = ExpandEnvVars("${CYAN_TEST_UNSET}")
	if got != "${CYAN_TEST_UNSET}" {
		t.Fatalf("unset var without default should stay verbatim: %q", got)
	}

	got = ExpandEnvVars("x${CYAN_TEST_UNSET:-}y")
	if got != "xy" {
		t.Fatalf("explicit empty default should expand to empty: %q", got)
	}
}

func TestResolve_KnownTenant(t *testing.T) {
	path := writeDoc(t, "config.json", `{
		"server_settings": {
			"42": {"allowed_channels": [100], "keywords": ["Cyan"]},
			"default": {"keywords": ["シアン"]}
		}
	}`)

	p, err := NewResolver(path).Resolve("42")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(p.AllowedChannels) != 1 || p.AllowedChannels[0] != "100" {
		t.Fatalf("wrong allowed channels: %v", p.AllowedChannels)
	}
	if len(p.Keywords) != 1 || p.Keywords[0] != "Cyan" {
		t.Fatalf("wrong keywords: %v", p.Keywords)
	}
}

func TestResolve_AbsentTenantFallsBackToDefault(t *testing.T) {
	path := writeDoc(t, "config.json", `{
		"server_settings": {
			"default": {"allowed_channels": [9], "keywords": ["シアン"]}
		}
	}`)

	p, err := NewResolver(path).Resolve("unknown")
	if err != nil {
		t.Fatalf("resolve should not fail for absent tenant: %v", err)
	}
	if len(p.AllowedChannels) != 1 || p.AllowedChannels[0] != "9" {
		t.Fatalf("default profile not used: %v", p.AllowedChannels)
	}
}

func TestResolve_NoDefaultProfile(t *testing.T) {
	path := writeDoc(t, "config.json", `{"server_settings": {}}`)

	p, err := NewResolver(path).Resolve("unknown")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(p.AllowedChannels) != 0 {
		t.Fatalf("expected unrestricted profile, got %v", p.AllowedChannels)
	}
	if len(p.Keywords) != 1 || p.Keywords[0] != DefaultKeyword {
		t.Fatalf("expected built-in keyword, got %v", p.Keywords)
	}
}

func TestResolve_Unavailable(t *testing.T) {
	path := writeDoc(t, "config.json", `{broken`)
	_, err := NewResolver(path).Resolve("42")
	if !errors.Is(err, ErrConfigUnavailable) {
		t.Fatalf("expected ErrConfigUnavailable, got %v", err)
	}
}

func TestResolve_FreshOnEveryCall(t *testing.T) {
	path := writeDoc(t, "config.json", `{
		"server_settings": {"default": {"keywords": ["before"]}}
	}`)
	r := NewResolver(path)

	p, err := r.Resolve("42")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Keywords[0] != "before" {
		t.Fatalf("unexpected keyword: %v", p.Keywords)
	}

	// Edit the document on disk; the next resolve must see it.
	if err := os.WriteFile(path, []byte(`{
		"server_settings": {"default": {"keywords": ["after"]}}
	}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	p, err = r.Resolve("42")
	if err != nil {
		t.Fatalf("resolve after edit: %v", err)
	}
	if p.Keywords[0] != "after" {
		t.Fatalf("config edit not picked up: %v", p.Keywords)
	}
}

func TestStats(t *testing.T) {
	doc := &Document{Servers: map[string]ServerSettings{
		"default": {AllowedChannels: FlexStringList{"1"}},
		"42":      {AllowedChannels: FlexStringList{"2", "3"}},
		"43":      {},
	}}

	servers, channels := doc.Stats()
	if servers != 2 {
		t.Fatalf("default must not count as a server: got %d", servers)
	}
	if channels != 3 {
		t.Fatalf("expected 3 allowed channels, got %d", channels)
	}
}

func TestDefaults_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load saved defaults: %v", err)
	}
	if _, ok := doc.Servers["default"]; !ok {
		t.Fatal("starter document must contain a default profile")
	}
}
