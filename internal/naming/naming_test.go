package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/hutch/internal/spec"
)

func TestValidateWorkspaceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "myproject", false},
		{"digits", "42", false},
		{"hyphen and underscore", "my-project_2", false},
		{"max length", strings.Repeat("a", 63), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 64), true},
		{"uppercase", "MyProject", true},
		{"leading hyphen", "-project", true},
		{"leading underscore", "_project", true},
		{"dot", "my.project", true},
		{"slash", "my/project", true},
		{"space", "my project", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorkspaceName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSafeID(t *testing.T) {
	assert.Equal(t, "my-app.v2_x", SafeID("My App.v2_x"))
	assert.Equal(t, "-home-user-.cache", SafeID("/home/user/.cache"))
	assert.Equal(t, "a-b-c", SafeID("a:b@c"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"~/.nuget", "~/.nuget"},
		{"~/.nuget/", "~/.nuget"},
		{"~//.nuget/./pkg/..", "~/.nuget"},
		{"~", "~"},
		{"~/", "~"},
		{"/var/cache/", "/var/cache"},
		{" /a/b ", "/a/b"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), "input %q", tt.in)
	}
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/home/dev/.nuget", ExpandHome("~/.nuget", "/home/dev"))
	assert.Equal(t, "/root", ExpandHome("~", "/root"))
	assert.Equal(t, "/var/cache", ExpandHome("/var/cache", "/home/dev"))
}

func TestName(t *testing.T) {
	tests := []struct {
		kind         Kind
		discriminant string
		want         string
	}{
		{KindHome, "", "hutch_web_home"},
		{KindWork, "", "hutch_web_work"},
		{KindNetwork, "", "hutch_web"},
		{KindContainer, "", "web"},
		{KindSidecar, "db", "web-db"},
		{KindSSHKey, "", "hutch-ssh-key-vol"},
		{KindAgeKey, "", "hutch-age-key-vol"},
		{KindSidecarData, "db:/var/lib/postgresql/data", "hutch_web_db_var-lib-postgresql-data_dc8f97c3_data"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Name("web", tt.kind, tt.discriminant))
		})
	}
}

func TestName_Deterministic(t *testing.T) {
	for _, kind := range []Kind{KindHome, KindWork, KindCache, KindSidecarData, KindNetwork, KindSidecar} {
		first := Name("web", kind, "db:/data")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Name("web", kind, "db:/data"))
		}
	}
}

func TestName_CacheSharedAcrossWorkspaces(t *testing.T) {
	a := Name("alpha", KindCache, "~/.nuget")
	b := Name("beta", KindCache, "~/.nuget/")
	other := Name("alpha", KindCache, "~/.cache")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.True(t, strings.HasPrefix(a, "hutch_cache_.nuget_"), a)
	assert.Len(t, strings.TrimPrefix(a, "hutch_cache_.nuget_"), 8)
}

func TestName_CacheNoCollisionOnSanitizedPath(t *testing.T) {
	assert.NotEqual(t, Name("w", KindCache, "/a-b"), Name("w", KindCache, "/a/b"))
}

func TestName_SidecarDataDistinctPaths(t *testing.T) {
	a := Name("ws", KindSidecarData, "db:/data/x")
	b := Name("ws", KindSidecarData, "db:/data-x")

	assert.NotEqual(t, a, b)
	assert.Equal(t, "hutch_ws_db_data-x_e220a107_data", a)
	assert.Equal(t, "hutch_ws_db_data-x_9f4d6e85_data", b)
	assert.Equal(t, a, Name("ws", KindSidecarData, "db:/data/x/"))
}

func TestResources(t *testing.T) {
	ws := &spec.Workspace{
		Name:   "web",
		Caches: []string{"~/.nuget", "~/.nuget/", "/var/cache/apt"},
		Sidecars: []spec.Sidecar{
			{
				Name:  "db",
				Image: "postgres:16",
				Mounts: []spec.SidecarMount{
					{Kind: spec.MountVolume, Path: "/var/lib/postgresql/data"},
				},
			},
			{Name: "redis", Image: "redis:7"},
		},
	}

	rs := Resources(ws)

	assert.Equal(t, "hutch_web", rs.Network)
	assert.Equal(t, "hutch_web_home", rs.Home)
	assert.Equal(t, "hutch_web_work", rs.Work)
	assert.Equal(t, SSHKeyVolume, rs.SSHKey)
	assert.Equal(t, AgeKeyVolume, rs.AgeKey)
	assert.Equal(t, "web", rs.WorkContainer)

	require.Len(t, rs.Caches, 2)
	assert.Equal(t, "~/.nuget", rs.Caches[0].Path)
	assert.Equal(t, "/var/cache/apt", rs.Caches[1].Path)

	require.Len(t, rs.SidecarMounts, 1)
	assert.Equal(t, "hutch_web_db_var-lib-postgresql-data_dc8f97c3_data", rs.SidecarMounts[0].Volume)

	assert.Equal(t, []string{"web-db", "web-redis", "web"}, rs.Containers())
	assert.Equal(t, []string{"hutch_web_home", "hutch_web_work", "hutch_web_db_var-lib-postgresql-data_dc8f97c3_data"}, rs.WorkspaceVolumes())

	assert.Equal(t, rs, Resources(ws))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, map[string]string{LabelManaged: "true"}, Managed())
	assert.Equal(t, map[string]string{LabelManaged: "true", LabelWorkspace: "web"}, ForWorkspace("web"))

	l := ForRole("", KindCache)
	assert.Equal(t, "cache", l[LabelRole])
	_, ok := l[LabelWorkspace]
	assert.False(t, ok)

	l = ForRole("web", KindHome)
	assert.Equal(t, "web", l[LabelWorkspace])
	assert.Equal(t, "home", l[LabelRole])
}
