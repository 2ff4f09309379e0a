package app

import (
	"context"
	"testing"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/system"
	"github.com/firefly-engineering/hutch/internal/vault"
)

func testApp(t *testing.T, opts ...Option) (*App, *system.MockFS) {
	t.Helper()
	fs := system.NewMockFS()
	base := []Option{
		WithPaths(&config.Paths{ConfigDir: "/cfg", HostConfigFile: "/cfg/config.toml", StateDir: "/state"}),
		WithEnv(config.Env{}),
		WithFileSystem(fs),
		WithRuntime(runtime.NewMockRuntime()),
		WithIdentityStore(vault.NewMemoryStore()),
	}
	return New(append(base, opts...)...), fs
}

func TestNew_Defaults(t *testing.T) {
	app, _ := testApp(t)

	if app.HostConfig == nil {
		t.Fatal("HostConfig should be loaded, got nil")
	}
	if app.Terminal == nil {
		t.Error("Terminal should default to the process terminal")
	}
}

func TestNew_LoadsHostConfig(t *testing.T) {
	fs := system.NewMockFS()
	fs.AddFile("/cfg/config.toml", []byte("image = \"alpine:3\"\ncaches = [\"~/.cache\"]\n"), 0o644)

	app := New(
		WithPaths(&config.Paths{HostConfigFile: "/cfg/config.toml"}),
		WithFileSystem(fs),
		WithRuntime(runtime.NewMockRuntime()),
	)

	if app.HostConfig.Image != "alpine:3" {
		t.Errorf("Image = %q, want %q", app.HostConfig.Image, "alpine:3")
	}
	if len(app.HostConfig.Caches) != 1 {
		t.Errorf("Caches = %v, want one entry", app.HostConfig.Caches)
	}
	if _, ok := app.Identities.(*vault.VolumeStore); !ok {
		t.Errorf("Identities = %T, want *vault.VolumeStore", app.Identities)
	}
}

func TestNew_InvalidHostConfigIsIgnored(t *testing.T) {
	fs := system.NewMockFS()
	fs.AddFile("/cfg/config.toml", []byte("runtime = \"lxc\"\n"), 0o644)

	app := New(
		WithPaths(&config.Paths{HostConfigFile: "/cfg/config.toml"}),
		WithFileSystem(fs),
		WithRuntime(runtime.NewMockRuntime()),
	)

	if app.HostConfig == nil || app.HostConfig.Runtime != "" {
		t.Errorf("HostConfig = %+v, want empty config", app.HostConfig)
	}
}

func TestWithOptions(t *testing.T) {
	rt := runtime.NewMockRuntime()
	hc := &config.HostConfig{Image: "custom"}
	store := vault.NewMemoryStore()

	app, _ := testApp(t, WithRuntime(rt), WithHostConfig(hc), WithIdentityStore(store))

	if app.Runtime != rt {
		t.Error("WithRuntime did not set runtime")
	}
	if app.HostConfig != hc {
		t.Error("WithHostConfig did not set host config")
	}
	if app.Identities != store {
		t.Error("WithIdentityStore did not set the store")
	}
}

func TestResolve_Defaults(t *testing.T) {
	app, _ := testApp(t)

	ws, err := app.Resolve(context.Background(), config.Request{Name: "dev"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.Image != config.DefaultImage {
		t.Errorf("Image = %q, want %q", ws.Image, config.DefaultImage)
	}
}

func TestResolve_DecryptsSecrets(t *testing.T) {
	app, fs := testApp(t)
	ctx := context.Background()

	v, err := app.Vault(ctx)
	if err != nil {
		t.Fatalf("Vault: %v", err)
	}
	ct, err := v.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	doc := "image: alpine\nsecrets:\n  token: \"" + ct + "\"\nenv:\n  TOKEN: \"{{ token }}\"\n"
	fs.AddFile("/src/.hutch.yaml", []byte(doc), 0o644)

	ws, err := app.Resolve(ctx, config.Request{Name: "dev", Config: "/src/.hutch.yaml"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, _ := ws.Env.Get("TOKEN"); got != "hunter2" {
		t.Errorf("TOKEN = %q, want %q", got, "hunter2")
	}
}

func TestIdentity_EnvOverride(t *testing.T) {
	m, err := vault.Generate("test")
	if err != nil {
		t.Fatal(err)
	}
	store := vault.NewMemoryStore()
	app, fs := testApp(t, WithEnv(config.Env{Identity: "/keys/age.key"}), WithIdentityStore(store))
	fs.AddFile("/keys/age.key", m.AgeIdentity, 0o600)

	v, err := app.Vault(context.Background())
	if err != nil {
		t.Fatalf("Vault: %v", err)
	}
	want, _ := vault.Parse(m.AgeIdentity)
	if v.Recipient() != want.Recipient() {
		t.Error("vault should use the identity file")
	}
	if store.Saves != 0 {
		t.Error("identity file must not trigger initialization")
	}
}

func TestEditor(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano")
	app, _ := testApp(t)
	if got := app.Editor(); got != "nano" {
		t.Errorf("Editor() = %q, want nano", got)
	}

	t.Setenv("EDITOR", "")
	if got := app.Editor(); got != "vi" {
		t.Errorf("Editor() = %q, want vi", got)
	}
}
