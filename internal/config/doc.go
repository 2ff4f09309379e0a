// Package config resolves workspace specs and loads host settings.
//
// # Precedence
//
// Every field is taken from the first layer that sets it:
//
//  1. command-line override (Overrides)
//  2. spec document (.hutch.yaml or .hutch.toml)
//  3. environment (HUTCH_IMAGE, HUTCH_SHELL, HUTCH_USER)
//  4. built-in default
//
// Caches are the exception: the document, host config, HUTCH_CACHES and
// --cache lists are unioned. Ports come only from the document.
//
// # Spec Documents
//
// A document may be absent, a local file, or a file inside a git
// repository written as URL//path/in/repo:
//
//	hutch new api --config git@github.com:org/dotfiles.git//hutch/api.yaml
//
// With --git and no --config, the repository root is searched for
// .hutch.yaml and then .hutch.toml.
//
// # Host Configuration
//
// HostConfig is read from ~/.config/hutch/config.toml:
//
//	remote = "ssh://dev@build-box"
//	runtime = "podman"
//	caches = ["~/.cache/go-build"]
package config
