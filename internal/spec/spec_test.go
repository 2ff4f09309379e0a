package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDoc = `image: alpine:3
shell: bash -l
user: dev
work_dir: /src
mount_work: true
caches:
  - ~/.nuget
ports:
  - 8080:80
  - 3000
env:
  CONN: "user={{u}};pwd={{p}}"
vars:
  u: admin
  b: "{{u}}2"
secrets:
  p: hunter2
sidecars:
  db:
    image: postgres:16
    command: [postgres, -c, fsync=off]
    env:
      POSTGRES_PASSWORD: "{{p}}"
    mounts:
      - /var/lib/postgresql/data
      - mount: /etc/conf
        files:
          app.conf: "x=1"
    ports: ["5432:5432"]
  cache:
    image: redis
`

const tomlDoc = `image = "alpine:3"
shell = "bash -l"
user = "dev"
work_dir = "/src"
mount_work = true
caches = ["~/.nuget"]
ports = ["8080:80", 3000]

[env]
CONN = "user={{u}};pwd={{p}}"

[vars]
u = "admin"
b = "{{u}}2"

[secrets]
p = "hunter2"

[sidecars.db]
image = "postgres:16"
command = ["postgres", "-c", "fsync=off"]
mounts = ["/var/lib/postgresql/data", { mount = "/etc/conf", files = { "app.conf" = "x=1" } }]
ports = ["5432:5432"]

[sidecars.db.env]
POSTGRES_PASSWORD = "{{p}}"

[sidecars.cache]
image = "redis"
`

func expectedDocument() *Document {
	mountWork := true
	return &Document{
		Image:     "alpine:3",
		Shell:     []string{"bash", "-l"},
		User:      "dev",
		WorkDir:   "/src",
		MountWork: &mountWork,
		Caches:    []string{"~/.nuget"},
		Ports:     []string{"8080:80", "3000"},
		Env:       Map{{Key: "CONN", Value: "user={{u}};pwd={{p}}"}},
		Vars:      Map{{Key: "u", Value: "admin"}, {Key: "b", Value: "{{u}}2"}},
		Secrets:   Map{{Key: "p", Value: "hunter2"}},
		Sidecars: []SidecarDocument{
			{
				Name:    "db",
				Image:   "postgres:16",
				Command: []string{"postgres", "-c", "fsync=off"},
				Env:     Map{{Key: "POSTGRES_PASSWORD", Value: "{{p}}"}},
				Mounts: []SidecarMount{
					{Kind: MountVolume, Path: "/var/lib/postgresql/data"},
					{Kind: MountFiles, Path: "/etc/conf", Files: Map{{Key: "app.conf", Value: "x=1"}}},
				},
				Ports: []string{"5432:5432"},
			},
			{Name: "cache", Image: "redis"},
		},
	}
}

func TestDecode_BothFormatsAgree(t *testing.T) {
	fromYAML, err := Decode([]byte(yamlDoc), FormatYAML)
	require.NoError(t, err)
	fromTOML, err := Decode([]byte(tomlDoc), FormatTOML)
	require.NoError(t, err)

	want := expectedDocument()
	assert.Equal(t, want, fromYAML)
	assert.Equal(t, want, fromTOML)
}

func TestDecode_VarsKeepDeclarationOrder(t *testing.T) {
	y, err := Decode([]byte("vars:\n  z: 1\n  a: 2\n  m: 3\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, y.Vars.Keys())

	tm, err := Decode([]byte("[vars]\nz = \"1\"\na = \"2\"\nm = \"3\"\n"), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, tm.Vars.Keys())
}

func TestDecode_Empty(t *testing.T) {
	for _, f := range []Format{FormatYAML, FormatTOML} {
		doc, err := Decode(nil, f)
		require.NoError(t, err, f)
		assert.Equal(t, &Document{}, doc, f)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"yaml unknown top-level field", FormatYAML, "imgae: alpine\n"},
		{"yaml unknown sidecar field", FormatYAML, "sidecars:\n  db:\n    image: x\n    volumes: []\n"},
		{"yaml mount without files", FormatYAML, "sidecars:\n  db:\n    image: x\n    mounts:\n      - mount: /data\n"},
		{"yaml mount with unknown field", FormatYAML, "sidecars:\n  db:\n    image: x\n    mounts:\n      - {mount: /d, files: {}, mode: ro}\n"},
		{"yaml mount as sequence", FormatYAML, "sidecars:\n  db:\n    image: x\n    mounts:\n      - [a, b]\n"},
		{"yaml nested env value", FormatYAML, "env:\n  A:\n    B: c\n"},
		{"toml unknown field", FormatTOML, "imgae = \"alpine\"\n"},
		{"toml unknown sidecar field", FormatTOML, "[sidecars.db]\nimage = \"x\"\nvolumes = []\n"},
		{"toml mount without files", FormatTOML, "[sidecars.db]\nimage = \"x\"\nmounts = [{ mount = \"/data\" }]\n"},
		{"toml mount as integer", FormatTOML, "[sidecars.db]\nimage = \"x\"\nmounts = [1]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestDecode_ShellAsList(t *testing.T) {
	doc, err := Decode([]byte("shell: [zsh, -i]\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"zsh", "-i"}, doc.Shell)

	doc, err = Decode([]byte("shell = [\"zsh\", \"-i\"]\n"), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, []string{"zsh", "-i"}, doc.Shell)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a/.hutch.yaml", FormatYAML, false},
		{"spec.YML", FormatYAML, false},
		{"spec.toml", FormatTOML, false},
		{"spec.json", "", true},
		{"Makefile", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    Port
		wantErr bool
	}{
		{"8080:80", Port{Host: 8080, Container: 80}, false},
		{"3000", Port{Host: 3000, Container: 3000}, false},
		{" 22:2222 ", Port{Host: 22, Container: 2222}, false},
		{"0:80", Port{}, true},
		{"70000", Port{}, true},
		{"a:b", Port{}, true},
		{"1:2:3", Port{}, true},
		{"", Port{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePort(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMap(t *testing.T) {
	var m Map
	m.Set("a", "1")
	m.Set("b", "2")
	m.Set("a", "3")

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	_, ok = m.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a=3", "b=2"}, m.Pairs())
}

func TestGitSource_RepoName(t *testing.T) {
	tests := map[string]string{
		"git@github.com:org/repo.git":   "repo",
		"https://github.com/org/repo":   "repo",
		"https://github.com/org/repo/":  "repo",
		"ssh://git@host:22/team/x.git":  "x",
		"git@host:solo.git":             "solo",
	}
	for url, want := range tests {
		assert.Equal(t, want, GitSource{URL: url}.RepoName(), url)
	}
}

func TestWorkspace_Paths(t *testing.T) {
	ws := &Workspace{User: "dev", WorkDir: "/work"}
	assert.Equal(t, "/home/dev", ws.HomeDir())
	assert.Equal(t, "/work", ws.ContainerWorkDir())

	ws.Git = &GitSource{URL: "git@github.com:org/repo.git"}
	assert.Equal(t, "/work/repo", ws.ContainerWorkDir())

	ws.User = "root"
	assert.Equal(t, "/root", ws.HomeDir())
}

func TestWorkspace_CloneIsDeep(t *testing.T) {
	ws := &Workspace{
		Env:      Map{{Key: "A", Value: "1"}},
		Sidecars: []Sidecar{{Name: "db", Env: Map{{Key: "B", Value: "2"}}}},
	}
	c := ws.Clone()
	c.Env[0].Value = "changed"
	c.Sidecars[0].Env[0].Value = "changed"

	assert.Equal(t, "1", ws.Env[0].Value)
	assert.Equal(t, "2", ws.Sidecars[0].Env[0].Value)
}
