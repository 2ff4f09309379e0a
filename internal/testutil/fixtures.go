package testutil

import (
	"embed"
	"path"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/system"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadHostConfigFixture loads a host config fixture through the same path
// as the real config file.
func LoadHostConfigFixture(name string) (*config.HostConfig, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	fs := system.NewMockFS()
	fs.AddFile("/"+name, data, 0o644)
	return config.LoadHostConfig(fs, "/"+name)
}

// LoadSpecFixture decodes a spec document fixture. The format follows the
// file extension.
func LoadSpecFixture(name string) (*spec.Document, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	format, err := spec.FormatFromPath(path.Base(name))
	if err != nil {
		return nil, err
	}
	return spec.Decode(data, format)
}

// ValidHostConfig returns the valid host config fixture.
func ValidHostConfig() (*config.HostConfig, error) {
	return LoadHostConfigFixture("host_config.toml")
}
