package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("sona", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath: %v", err)
	}
	return cfg
}

func TestConfig_AddUseGet(t *testing.T) {
	cfg := testConfig(t)

	err := cfg.AddContext("prod", &Context{
		Endpoint:      "wss://prod.example.test/session",
		ConciergeName: "atlas",
		UserID:        "u-1",
		Mode:          "voice",
	})
	if err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := cfg.UseContext("prod"); err != nil {
		t.Fatalf("UseContext: %v", err)
	}

	ctx, err := cfg.GetCurrentContext()
	if err != nil {
		t.Fatalf("GetCurrentContext: %v", err)
	}
	if ctx.Name != "prod" || ctx.Endpoint != "wss://prod.example.test/session" {
		t.Fatalf("context = %+v", ctx)
	}

	// ResolveContext with empty name falls back to current.
	ctx2, err := cfg.ResolveContext("")
	if err != nil || ctx2.Name != "prod" {
		t.Fatalf("ResolveContext(\"\") = %+v, %v", ctx2, err)
	}
}

func TestConfig_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("sona", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath: %v", err)
	}
	if err := cfg.AddContext("dev", &Context{Endpoint: "ws://localhost:8080"}); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := cfg.UseContext("dev"); err != nil {
		t.Fatalf("UseContext: %v", err)
	}

	reloaded, err := LoadConfigWithPath("sona", path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CurrentContext != "dev" {
		t.Fatalf("CurrentContext = %q", reloaded.CurrentContext)
	}
	ctx, err := reloaded.GetContext("dev")
	if err != nil || ctx.Endpoint != "ws://localhost:8080" {
		t.Fatalf("GetContext(dev) = %+v, %v", ctx, err)
	}
}

func TestConfig_DeleteContext(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.AddContext("tmp", &Context{Endpoint: "ws://x"}); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if err := cfg.UseContext("tmp"); err != nil {
		t.Fatalf("UseContext: %v", err)
	}
	if err := cfg.DeleteContext("tmp"); err != nil {
		t.Fatalf("DeleteContext: %v", err)
	}
	if cfg.CurrentContext != "" {
		t.Fatalf("CurrentContext = %q after delete", cfg.CurrentContext)
	}
	if err := cfg.DeleteContext("missing"); err == nil {
		t.Fatal("deleting unknown context should fail")
	}
}

func TestConfig_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("sona", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}
