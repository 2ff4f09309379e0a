// Package app wires hutch's dependencies together.
//
// The App struct holds the runtime, the configuration layers and the
// identity store. Everything else is derived on demand:
//
//	a := app.New(
//	    app.WithRuntime(runtime.NewMockRuntime()),
//	    app.WithHostConfig(&config.HostConfig{}),
//	    app.WithIdentityStore(vault.NewMemoryStore()),
//	)
//	ws, err := a.Resolve(ctx, config.Request{Name: "dev"})
//	_, err = a.Orchestrator().Create(ctx, ws)
//
// Commands use app.Default, which tests replace with SetDefault.
package app
