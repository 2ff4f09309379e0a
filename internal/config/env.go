package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by FromEnv.
const (
	EnvImage    = "HUTCH_IMAGE"
	EnvShell    = "HUTCH_SHELL"
	EnvUser     = "HUTCH_USER"
	EnvCaches   = "HUTCH_CACHES"
	EnvRemote   = "HUTCH_REMOTE"
	EnvDebug    = "HUTCH_DEBUG"
	EnvIdentity = "HUTCH_IDENTITY"
)

// Env is the environment-variable layer.
type Env struct {
	Image    string
	Shell    string
	User     string
	Caches   []string
	Remote   string
	Debug    bool
	Identity string
}

// FromEnv reads the layer through lookup, usually os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) Env {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	env := Env{
		Image:    get(EnvImage),
		Shell:    get(EnvShell),
		User:     get(EnvUser),
		Remote:   get(EnvRemote),
		Identity: get(EnvIdentity),
	}

	for _, c := range strings.Split(get(EnvCaches), ",") {
		if c = strings.TrimSpace(c); c != "" {
			env.Caches = append(env.Caches, c)
		}
	}

	if d := get(EnvDebug); d != "" {
		b, err := strconv.ParseBool(d)
		env.Debug = err != nil || b
	}

	return env
}

// OSEnv reads the layer from the process environment.
func OSEnv() Env {
	return FromEnv(os.LookupEnv)
}
