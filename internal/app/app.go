package app

import (
	"context"
	"os"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/system"
	"github.com/firefly-engineering/hutch/internal/template"
	"github.com/firefly-engineering/hutch/internal/vault"
	"github.com/firefly-engineering/hutch/internal/workspace"
)

// App holds the application dependencies
type App struct {
	// Paths holds the configured paths
	Paths *config.Paths

	// Env is the environment-variable configuration layer
	Env config.Env

	// HostConfig is the loaded host configuration
	HostConfig *config.HostConfig

	// FS reads local spec documents and identity files
	FS system.FileSystem

	// Terminal runs local programs such as $EDITOR
	Terminal system.Terminal

	// Runtime is the container runtime
	Runtime runtime.Runtime

	// Identities stores the age identity and SSH keypair
	Identities vault.Store
}

// Option is a function that configures the App
type Option func(*App)

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithEnv sets the environment layer
func WithEnv(env config.Env) Option {
	return func(a *App) {
		a.Env = env
	}
}

// WithRuntime sets a custom runtime
func WithRuntime(r runtime.Runtime) Option {
	return func(a *App) {
		a.Runtime = r
	}
}

// WithHostConfig sets a custom host config
func WithHostConfig(cfg *config.HostConfig) Option {
	return func(a *App) {
		a.HostConfig = cfg
	}
}

// WithFileSystem sets the filesystem
func WithFileSystem(fs system.FileSystem) Option {
	return func(a *App) {
		a.FS = fs
	}
}

// WithTerminal sets how local programs are run
func WithTerminal(t system.Terminal) Option {
	return func(a *App) {
		a.Terminal = t
	}
}

// WithIdentityStore sets where identities are kept
func WithIdentityStore(s vault.Store) Option {
	return func(a *App) {
		a.Identities = s
	}
}

// New creates a new App with the given options.
// Anything not provided is built from the environment: the host config is
// loaded from disk and the runtime is auto-detected.
func New(opts ...Option) *App {
	app := &App{
		Paths:    config.DefaultPaths(),
		Env:      config.OSEnv(),
		FS:       system.DefaultFS(),
		Terminal: system.DefaultTerminal(),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.HostConfig == nil {
		cfg, err := config.LoadHostConfig(app.FS, app.Paths.HostConfigFile)
		if err != nil {
			logging.Warn("ignoring host config", "path", app.Paths.HostConfigFile, "error", err)
			cfg = &config.HostConfig{}
		}
		app.HostConfig = cfg
	}

	if app.Runtime == nil {
		cfg := runtime.DefaultConfig()
		if app.HostConfig.Runtime != "" {
			cfg.Type = runtime.RuntimeType(app.HostConfig.Runtime)
		}
		rt, err := runtime.New(cfg)
		if err != nil {
			logging.Debug("failed to initialize runtime", "error", err)
		} else {
			app.Runtime = rt
		}
	}

	if app.Identities == nil && app.Runtime != nil {
		app.Identities = vault.NewVolumeStore(app.Runtime, config.HelperImage, config.DefaultUID+":"+config.DefaultUID)
	}

	return app
}

// Orchestrator returns a workspace orchestrator bound to the runtime.
func (a *App) Orchestrator() *workspace.Orchestrator {
	return workspace.New(a.Runtime)
}

// Resolver returns a config resolver with every layer wired in.
func (a *App) Resolver() *config.Resolver {
	opts := []config.Option{
		config.WithFileSystem(a.FS),
		config.WithEnv(a.Env),
		config.WithHostConfig(a.HostConfig),
	}
	if a.Runtime != nil {
		opts = append(opts, config.WithFetcher(workspace.NewFetcher(a.Runtime, config.HelperImage)))
	}
	return config.NewResolver(opts...)
}

// Identity returns the identity provider. HUTCH_IDENTITY, when set,
// replaces the stored age identity.
func (a *App) Identity() *vault.Provider {
	opts := []vault.ProviderOption{vault.WithFileSystem(a.FS)}
	if a.Env.Identity != "" {
		opts = append(opts, vault.WithIdentityFile(a.Env.Identity))
	}
	return vault.NewProvider(a.Identities, opts...)
}

// Vault returns the vault of the current identity, creating the identity
// on first use.
func (a *App) Vault(ctx context.Context) (*vault.Vault, error) {
	return a.Identity().Vault(ctx)
}

// Resolve merges every configuration layer and expands templates.
func (a *App) Resolve(ctx context.Context, req config.Request) (*spec.Workspace, error) {
	ws, err := a.Resolver().Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	var d template.Decrypter
	if len(ws.Secrets) > 0 {
		v, err := a.Vault(ctx)
		if err != nil {
			return nil, err
		}
		d = v
	}
	return template.New(d).Resolve(ws)
}

// Editor returns the editor command from VISUAL or EDITOR.
func (a *App) Editor() string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if e := os.Getenv(key); e != "" {
			return e
		}
	}
	return "vi"
}

// Default is the default application instance. It is built on first use
// by the root command.
var Default *App

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}
