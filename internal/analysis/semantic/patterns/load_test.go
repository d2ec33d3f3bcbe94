package patterns

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

const customRules = `version: 1
rules:
  - id: custom.source.read-config
    languages: [python]
    role: source
    source_kind: config
    callee: load_untrusted
  - id: custom.sink.run
    languages: [python, javascript]
    role: sink
    category: command_injection
    callee: "*.run_shell"
    args: [0]
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

// -- Builtin Rules --

func TestBuiltin_LoadsEveryLanguage(t *testing.T) {
	reg := builtin(t)
	assert.Greater(t, reg.Len(), 100)

	counts := map[schemas.Language]map[Role]int{}
	for _, s := range reg.Specs() {
		for _, l := range s.Languages {
			if counts[l] == nil {
				counts[l] = map[Role]int{}
			}
			counts[l][s.Role]++
		}
	}
	for _, l := range []schemas.Language{schemas.LanguagePython, schemas.LanguageJavaScript, schemas.LanguageGo} {
		for _, role := range []Role{RoleSource, RoleSink, RoleSanitizer, RolePassthrough} {
			assert.Positive(t, counts[l][role], "%s has no %s rules", l, role)
		}
	}
}

func TestBuiltinSpecs_ReturnsCopy(t *testing.T) {
	a, err := BuiltinSpecs()
	require.NoError(t, err)
	a[0].ID = "mutated"

	b, err := BuiltinSpecs()
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", b[0].ID)
}

// -- Parsing and Validation --

func TestParse_Valid(t *testing.T) {
	specs, err := Parse("custom.yaml", []byte(customRules))
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "custom.sink.run", specs[1].ID)
	assert.Equal(t, []int{0}, specs[1].Args)
	assert.Equal(t, []schemas.Language{schemas.LanguagePython, schemas.LanguageJavaScript}, specs[1].Languages)
}

func TestParse_FailsFast(t *testing.T) {
	cases := map[string]string{
		"malformed yaml":     "version: 1\nrules: [\n",
		"empty document":     "",
		"wrong version":      "version: 2\nrules: []\n",
		"unknown field":      "version: 1\nrules:\n  - id: a\n    languages: [python]\n    role: source\n    callee: input\n    colour: red\n",
		"missing role":       "version: 1\nrules:\n  - id: a\n    languages: [python]\n    callee: input\n",
		"unknown language":   "version: 1\nrules:\n  - id: a\n    languages: [cobol]\n    role: source\n    callee: input\n",
		"sink w/o category":  "version: 1\nrules:\n  - id: a\n    languages: [python]\n    role: sink\n    callee: eval\n",
		"two predicates":     "version: 1\nrules:\n  - id: a\n    languages: [python]\n    role: source\n    callee: input\n    attribute: sys.argv\n",
		"bad name":           "version: 1\nrules:\n  - id: a\n    languages: [python]\n    role: source\n    callee: \"os..system\"\n",
		"non-string keyword": "version: 1\nrules:\n  - id: a\n    languages: [python]\n    role: sink\n    category: xss\n    callee: f\n    keywords:\n      shell: true\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(doc))
			require.Error(t, err)
			var pre *schemas.PatternRegistryError
			require.ErrorAs(t, err, &pre)
			assert.Equal(t, "bad.yaml", pre.Source)
		})
	}
}

func TestLoad(t *testing.T) {
	reg, err := Load("custom.yaml", strings.NewReader(customRules))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	_, err = Load("dup.yaml", strings.NewReader(customRules+`  - id: custom.sink.run
    languages: [go]
    role: sink
    category: xss
    callee: render
`))
	var pre *schemas.PatternRegistryError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "custom.sink.run", pre.RuleID)
}

func TestCompose(t *testing.T) {
	custom := writeRules(t, customRules)

	t.Run("builtin plus file", func(t *testing.T) {
		base := builtin(t)
		reg, err := Compose(true, custom)
		require.NoError(t, err)
		assert.Equal(t, base.Len()+2, reg.Len())
		_, ok := reg.Lookup("custom.sink.run")
		assert.True(t, ok)
	})

	t.Run("file only", func(t *testing.T) {
		reg, err := Compose(false, custom)
		require.NoError(t, err)
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("nothing to load", func(t *testing.T) {
		_, err := Compose(false)
		assert.ErrorContains(t, err, "no rules loaded")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Compose(true, filepath.Join(t.TempDir(), "absent.yaml"))
		var pre *schemas.PatternRegistryError
		assert.ErrorAs(t, err, &pre)
	})

	t.Run("file collides with builtin id", func(t *testing.T) {
		specs, err := BuiltinSpecs()
		require.NoError(t, err)
		clash := writeRules(t, "version: 1\nrules:\n  - id: "+specs[0].ID+"\n    languages: [python]\n    role: source\n    callee: input\n")
		_, err = Compose(true, clash)
		assert.ErrorContains(t, err, "duplicate rule id")
	})
}
