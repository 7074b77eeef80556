package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "filehost"
	fileCfg.Server.Port = 9000
	fileCfg.Server.DBPath = "/file/db"

	envCfg := &Config{}
	envCfg.Server.Address = "envhost"
	envCfg.Server.Port = 7000
	envCfg.Server.DBPath = "/env/db"

	// explicit --config requires the file to exist
	_, err := LoadEffectiveConfig(Flags{Config: "missing.yaml", Set: map[string]bool{"config": true}}, fileCfg, false, envCfg, EnvResult{})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}

	// flags win when set
	res, err := LoadEffectiveConfig(Flags{Addr: ":1234", DB: "/flag/db", Set: map[string]bool{"addr": true, "db": true}}, fileCfg, true, envCfg, EnvResult{})
	if err != nil {
		t.Fatalf("flags path: %v", err)
	}
	if res.Source != "flags" || res.Addr != ":1234" || res.DBPath != "/flag/db" {
		t.Fatalf("unexpected flags result: %+v", res)
	}

	// config file when present and no flags
	res, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, EnvResult{})
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if res.Source != "config" || res.Addr != "filehost:9000" || res.DBPath != "/file/db" {
		t.Fatalf("unexpected config result: %+v", res)
	}

	// env fallback
	res, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
	if err != nil {
		t.Fatalf("env path: %v", err)
	}
	if res.Source != "env" || res.DBPath != "/env/db" {
		t.Fatalf("unexpected env result: %+v", res)
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("INBOXD_ADDR", "0.0.0.0:9090")
	t.Setenv("INBOXD_DB_PATH", "/tmp/inboxd")
	t.Setenv("INBOXD_API_BACKEND_KEYS", "k1, k2")
	t.Setenv("INBOXD_DISPATCH_IMMEDIATE_LIMIT", "5")
	t.Setenv("INBOXD_AUTOREPLY_ENABLED", "true")
	t.Setenv("INBOXD_AUTOREPLY_CRON", "*/10 * * * *")

	cfg, res := ParseConfigEnvs()
	if !res.EnvUsed {
		t.Fatal("expected EnvUsed")
	}
	if cfg.Server.Port != 9090 || cfg.Server.DBPath != "/tmp/inboxd" {
		t.Fatalf("server env not applied: %+v", cfg.Server)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 {
		t.Fatalf("backend keys: %v", cfg.Security.APIKeys.Backend)
	}
	if _, ok := res.SigningKeys["k1"]; !ok {
		t.Fatal("backend key should be a signing key")
	}
	if cfg.Dispatch.ImmediateRecipientLimit != 5 {
		t.Fatalf("dispatch limit: %d", cfg.Dispatch.ImmediateRecipientLimit)
	}
	if !cfg.AutoReply.Enabled || cfg.AutoReply.Cron != "*/10 * * * *" {
		t.Fatalf("autoreply env not applied: %+v", cfg.AutoReply)
	}
}

func TestDispatchDefaults(t *testing.T) {
	var d DispatchConfig
	if d.ImmediateLimit() != 50 {
		t.Fatalf("default immediate limit: %d", d.ImmediateLimit())
	}
	if d.ParticipantCap() != 100 {
		t.Fatalf("default participant cap: %d", d.ParticipantCap())
	}
	d.ImmediateRecipientLimit = 3
	d.MaxParticipants = 7
	if d.ImmediateLimit() != 3 || d.ParticipantCap() != 7 {
		t.Fatalf("configured limits not honored: %d %d", d.ImmediateLimit(), d.ParticipantCap())
	}
}

func TestSizeBytesAndDurationYAML(t *testing.T) {
	var doc struct {
		Size SizeBytes `yaml:"size"`
		Slow Duration  `yaml:"slow"`
	}
	if err := yaml.Unmarshal([]byte("size: 64MB\nslow: 250ms\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Size.Int64() != 64*1000*1000 {
		t.Fatalf("size: %d", doc.Size.Int64())
	}
	if doc.Slow.Duration() != 250*time.Millisecond {
		t.Fatalf("slow: %v", doc.Slow.Duration())
	}

	if err := yaml.Unmarshal([]byte("size: 4096\nslow: 2\n"), &doc); err != nil {
		t.Fatalf("unmarshal numeric: %v", err)
	}
	if doc.Size.Int64() != 4096 {
		t.Fatalf("numeric size: %d", doc.Size.Int64())
	}
	if doc.Slow.Duration() != 2*time.Second {
		t.Fatalf("numeric slow: %v", doc.Slow.Duration())
	}
}
