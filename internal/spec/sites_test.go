package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewriteAll(t *testing.T, data string, format Format, fn func(Site) string) string {
	t.Helper()
	sites, err := SecretSites([]byte(data), format)
	require.NoError(t, err)

	values := make([]string, len(sites))
	for i, s := range sites {
		values[i] = fn(s)
	}
	return string(Rewrite([]byte(data), sites, values))
}

func TestRewrite_YAML(t *testing.T) {
	in := `# workspace
image: alpine
secrets:
  plain: hunter2   # keep me
  quoted: "a \"b\""
  single: 'it''s'
  block: |
    line one
    line two
vars:
  x: y
`
	want := `# workspace
image: alpine
secrets:
  plain: "<hunter2>"   # keep me
  quoted: "<a \"b\">"
  single: "<it's>"
  block: "<line one\nline two\n>"
vars:
  x: y
`
	out := rewriteAll(t, in, FormatYAML, func(s Site) string { return "<" + s.Value + ">" })
	assert.Equal(t, want, out)

	doc, err := Decode([]byte(out), FormatYAML)
	require.NoError(t, err)
	v, _ := doc.Secrets.Get("block")
	assert.Equal(t, "<line one\nline two\n>", v)
}

func TestSecretSites_YAMLRejectsNestedSecret(t *testing.T) {
	_, err := SecretSites([]byte("secrets:\n  nested: {a: b}\n"), FormatYAML)
	assert.Error(t, err)
}

func TestRewrite_YAMLFlowMapping(t *testing.T) {
	in := "secrets: {a: one, b: two}\nimage: x\n"
	out := rewriteAll(t, in, FormatYAML, func(s Site) string { return s.Value + "!" })
	assert.Equal(t, "secrets: {a: \"one!\", b: \"two!\"}\nimage: x\n", out)
}

func TestRewrite_TOML(t *testing.T) {
	in := `image = "alpine"

[secrets]
plain = "hunter2" # keep me
"quoted key" = 'literal'

[vars]
x = "y"
`
	out := rewriteAll(t, in, FormatTOML, func(s Site) string { return "<" + s.Value + ">" })
	want := `image = "alpine"

[secrets]
plain = "<hunter2>" # keep me
"quoted key" = "<literal>"

[vars]
x = "y"
`
	assert.Equal(t, want, out)
}

func TestSecretSites_TOMLRejectsUnlocatable(t *testing.T) {
	_, err := SecretSites([]byte("secrets = { a = \"b\" }\n"), FormatTOML)
	assert.Error(t, err)

	_, err = SecretSites([]byte("[secrets]\na = \"\"\"\nmulti\n\"\"\"\n"), FormatTOML)
	assert.Error(t, err)
}

func TestSecretSites_NoSecrets(t *testing.T) {
	sites, err := SecretSites([]byte("image: x\n"), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, sites)

	sites, err = SecretSites([]byte("image = \"x\"\n"), FormatTOML)
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, Quote("plain"))
	assert.Equal(t, `"a\"b\\c\nd\te"`, Quote("a\"b\\c\nd\te"))
	assert.Equal(t, `"\u0001"`, Quote("\x01"))
}
