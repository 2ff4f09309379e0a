package spec

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Site locates the source text of one value under the secrets block.
// Positions are 0-based rune offsets; End is exclusive.
type Site struct {
	Key     string
	Value   string
	Line    int
	Col     int
	EndLine int
	EndCol  int
}

// SecretSites finds every value of the top-level secrets block in data.
func SecretSites(data []byte, format Format) ([]Site, error) {
	lines := splitRuneLines(data)
	switch format {
	case FormatYAML:
		return yamlSecretSites(data, lines)
	case FormatTOML:
		return tomlSecretSites(data, lines)
	default:
		return nil, fmt.Errorf("unsupported spec format %q", format)
	}
}

// Rewrite replaces each site's source text with a quoted string holding the
// corresponding value. Everything outside the sites is left byte-identical.
func Rewrite(data []byte, sites []Site, values []string) []byte {
	lines := splitRuneLines(data)

	idx := make([]int, len(sites))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		sa, sb := sites[idx[a]], sites[idx[b]]
		if sa.Line != sb.Line {
			return sa.Line > sb.Line
		}
		return sa.Col > sb.Col
	})

	for _, i := range idx {
		s := sites[i]
		head := lines[s.Line][:s.Col]
		tail := lines[s.EndLine][s.EndCol:]
		joined := make([]rune, 0, len(head)+len(tail)+len(values[i])+2)
		joined = append(joined, head...)
		joined = append(joined, []rune(Quote(values[i]))...)
		joined = append(joined, tail...)

		merged := append([][]rune{}, lines[:s.Line]...)
		merged = append(merged, joined)
		lines = append(merged, lines[s.EndLine+1:]...)
	}

	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(l))
	}
	return []byte(b.String())
}

// Quote renders s as a double-quoted string valid in both YAML and TOML.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if unicode.IsControl(r) {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func splitRuneLines(data []byte) [][]rune {
	parts := strings.Split(string(data), "\n")
	lines := make([][]rune, len(parts))
	for i, p := range parts {
		lines[i] = []rune(p)
	}
	return lines
}

func indentOf(line []rune) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return n
}

func isBlank(line []rune) bool {
	return indentOf(line) == len(line)
}

func yamlSecretSites(data []byte, lines [][]rune) ([]Site, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("spec document must be a mapping")
	}

	var secrets *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value == "secrets" {
			secrets = top.Content[i+1]
		}
	}
	if secrets == nil || isNull(secrets) {
		return nil, nil
	}
	if secrets.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: secrets must be a mapping", secrets.Line)
	}

	var sites []Site
	for i := 0; i+1 < len(secrets.Content); i += 2 {
		key, value := secrets.Content[i], secrets.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: secret %q must be a scalar", value.Line, key.Value)
		}

		line, col := value.Line-1, value.Column-1
		var endLine, endCol int
		var err error
		switch {
		case value.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
			endLine, endCol = blockScalarEnd(lines, line, key.Column-1)
		case value.Style&yaml.DoubleQuotedStyle != 0:
			endLine, endCol, err = quotedEnd(lines, line, col, '"')
		case value.Style&yaml.SingleQuotedStyle != 0:
			endLine, endCol, err = quotedEnd(lines, line, col, '\'')
		default:
			endLine, endCol = line, plainEnd(lines[line], col, secrets.Style&yaml.FlowStyle != 0)
		}
		if err != nil {
			return nil, fmt.Errorf("secret %q: %w", key.Value, err)
		}

		sites = append(sites, Site{
			Key: key.Value, Value: value.Value,
			Line: line, Col: col, EndLine: endLine, EndCol: endCol,
		})
	}
	return sites, nil
}

// blockScalarEnd finds the last content line of a block scalar whose
// indicator sits on line and whose key is indented by keyIndent.
func blockScalarEnd(lines [][]rune, line, keyIndent int) (int, int) {
	end := line
	for i := line + 1; i < len(lines); i++ {
		if isBlank(lines[i]) {
			continue
		}
		if indentOf(lines[i]) <= keyIndent {
			break
		}
		end = i
	}
	return end, contentLen(lines[end])
}

// contentLen is the line length without a trailing carriage return.
func contentLen(line []rune) int {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return n - 1
	}
	return len(line)
}

func quotedEnd(lines [][]rune, line, col int, quote rune) (int, int, error) {
	i, j := line, col+1
	for i < len(lines) {
		for j < len(lines[i]) {
			r := lines[i][j]
			switch {
			case quote == '"' && r == '\\':
				j += 2
				continue
			case r == quote && quote == '\'' && j+1 < len(lines[i]) && lines[i][j+1] == '\'':
				j += 2
				continue
			case r == quote:
				return i, j + 1, nil
			}
			j++
		}
		i, j = i+1, 0
	}
	return 0, 0, fmt.Errorf("unterminated quoted string")
}

func plainEnd(line []rune, col int, flow bool) int {
	end := contentLen(line)
	for j := col; j < end; j++ {
		if line[j] == '#' && j > col && (line[j-1] == ' ' || line[j-1] == '\t') {
			end = j
			break
		}
		if flow && (line[j] == ',' || line[j] == '}') {
			end = j
			break
		}
	}
	for end > col && (line[end-1] == ' ' || line[end-1] == '\t') {
		end--
	}
	return end
}

var (
	tomlHeader = regexp.MustCompile(`^\s*\[\s*([^\[\]]+?)\s*\]`)
	tomlAssign = regexp.MustCompile(`^\s*("(?:[^"\\]|\\.)*"|'[^']*'|[A-Za-z0-9_-]+)\s*=\s*`)
)

func tomlSecretSites(data []byte, lines [][]rune) ([]Site, error) {
	doc, err := decodeTOML(data)
	if err != nil {
		return nil, err
	}

	var sites []Site
	inSecrets := false
	for i, l := range lines {
		line := string(l)
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			m := tomlHeader.FindStringSubmatch(line)
			inSecrets = m != nil && m[1] == "secrets"
			continue
		}
		if !inSecrets {
			continue
		}

		m := tomlAssign.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		key := line[m[2]:m[3]]
		switch key[0] {
		case '"':
			if key, err = strconv.Unquote(key); err != nil {
				return nil, fmt.Errorf("line %d: invalid key: %w", i+1, err)
			}
		case '\'':
			key = key[1 : len(key)-1]
		}

		col := len([]rune(line[:m[1]]))
		if col >= len(l) || (l[col] != '"' && l[col] != '\'') ||
			strings.HasPrefix(line[m[1]:], `"""`) || strings.HasPrefix(line[m[1]:], `'''`) {
			return nil, fmt.Errorf("line %d: secret %q must be a single-line string", i+1, key)
		}
		endLine, endCol, err := tomlStringEnd(l, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		value, _ := doc.Secrets.Get(key)
		sites = append(sites, Site{Key: key, Value: value, Line: i, Col: col, EndLine: endLine + i, EndCol: endCol})
	}

	if len(sites) != len(doc.Secrets) {
		found := make(map[string]bool, len(sites))
		for _, s := range sites {
			found[s.Key] = true
		}
		for _, k := range doc.Secrets.Keys() {
			if !found[k] {
				return nil, fmt.Errorf("secret %q must be declared as a single-line string inside a [secrets] table", k)
			}
		}
	}
	return sites, nil
}

// tomlStringEnd finds the end of a single-line basic or literal string.
func tomlStringEnd(line []rune, col int) (int, int, error) {
	quote := line[col]
	for j := col + 1; j < len(line); j++ {
		if quote == '"' && line[j] == '\\' {
			j++
			continue
		}
		if line[j] == quote {
			return 0, j + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("unterminated string")
}
