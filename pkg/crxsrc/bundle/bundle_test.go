package bundle_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBundle = `export default {
"1": [function(e, t, r) {
  var a = e("foo.js");
  a.run();
}, {"foo.js": "2", "./lib/util": 3}],
"2": [function(e, t, r) {
  t.exports = { run: function() {} };
}, {}],
3: [function(e, t, r) {
  t.exports = 42;
}, {}]
};
`

func TestParse(t *testing.T) {
	b, err := bundle.Parse([]byte(sampleBundle))
	require.NoError(t, err)
	require.Len(t, b.Records, 3)
	assert.Zero(t, b.Skipped)

	first := b.Records[0]
	assert.Equal(t, "1", first.ID)
	assert.True(t, strings.HasPrefix(first.Implementation, "function(e, t, r) {"))
	assert.True(t, strings.HasSuffix(first.Implementation, "}"))
	assert.Equal(t, []bundle.Dependency{
		{Name: "foo.js", ID: "2"},
		{Name: "./lib/util", ID: "3"},
	}, first.Dependencies)

	assert.Equal(t, "3", b.Records[2].ID, "numeric keys become strings")
}

func TestParse_Forms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bare object", `{"a": [function(){}, {}]}`},
		{"parenthesized", `({"a": [function(){}, {}]});`},
		{"module.exports", `module.exports = {"a": [function(){}, {}]};`},
		{"identifier key and arrow function", `{a: [() => {}, {}]}`},
		{"leading byte order mark", "\xef\xbb\xbf{\"a\": [function(){}, {}]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := bundle.Parse([]byte(tt.src))
			require.NoError(t, err)
			require.Len(t, b.Records, 1)
			assert.Equal(t, "a", b.Records[0].ID)
		})
	}
}

func TestParse_SkipsMalformedRecords(t *testing.T) {
	src := `{
  "ok": [function(e){ return 1 }, {"x": 9, "y": false}],
  "noArray": function(){},
  "shortArray": [function(){}],
  "notFunction": ["text", {}],
  "noTable": [function(){}, "deps"],
  [computed]: [function(){}, {}]
}`
	b, err := bundle.Parse([]byte(src))
	require.NoError(t, err)
	require.Len(t, b.Records, 1)
	assert.Equal(t, 5, b.Skipped)
	assert.Equal(t, []bundle.Dependency{{Name: "x", ID: "9"}}, b.Records[0].Dependencies,
		"non-literal ids are ignored")
}

func TestParse_Errors(t *testing.T) {
	_, err := bundle.Parse([]byte(`{"a": [function(){`))
	assert.Error(t, err)

	_, err = bundle.Parse([]byte(`[1, 2, 3]`))
	assert.ErrorIs(t, err, bundle.ErrNotBundle)
}

func TestParse_NeverExecutes(t *testing.T) {
	src := `{"a": [function(e, t, r) {
  throw new Error("must not run");
}, {}]}`
	b, err := bundle.Parse([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, b.Records[0].Implementation, "must not run")
}

func TestBuildIndex(t *testing.T) {
	b, err := bundle.Parse([]byte(sampleBundle))
	require.NoError(t, err)

	ix := bundle.BuildIndex(b)

	assert.Equal(t, map[string]string{"2": "foo.js", "3": "./lib/util"}, ix.Filenames)
	assert.Equal(t, []string{"2", "3"}, ix.IDs())
	assert.Equal(t, "  t.exports = { run: function() {} };", ix.Implementations["2"])
	assert.Equal(t, "  t.exports = 42;", ix.Implementations["3"])
	assert.Empty(t, ix.Conflicts)
}

func TestBuildIndex_LastWriteWins(t *testing.T) {
	b := &bundle.Bundle{Records: []bundle.Record{
		{ID: "1", Dependencies: []bundle.Dependency{{Name: "a.js", ID: "9"}}},
		{ID: "2", Dependencies: []bundle.Dependency{{Name: "a.js", ID: "9"}}},
		{ID: "3", Dependencies: []bundle.Dependency{{Name: "b.js", ID: "9"}}},
	}}

	ix := bundle.BuildIndex(b)

	assert.Equal(t, "b.js", ix.Filenames["9"])
	require.Len(t, ix.Conflicts, 1, "same name again is not a conflict")
	assert.Equal(t, bundle.Conflict{ID: "9", Previous: "a.js", Current: "b.js", Module: "3"}, ix.Conflicts[0])
}

func TestCleanImplementation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "wrapper stripped",
			in:   "function(e, t, r) {\n  body();\n}",
			want: "  body();",
		},
		{
			name: "trailing blank lines skipped",
			in:   "function(e) {\n  a();\n  b();\n}\n\n  \n",
			want: "  a();\n  b();",
		},
		{
			name: "named function keeps first line",
			in:   "function named(e) {\n  a();\n}",
			want: "function named(e) {\n  a();",
		},
		{
			name: "closing brace with code is kept",
			in:   "function(e) {\n  a();\n})",
			want: "  a();\n})",
		},
		{
			name: "single line function",
			in:   "function(){ return 1 }",
			want: "",
		},
		{
			name: "lone brace",
			in:   "}",
			want: "",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bundle.CleanImplementation(tt.in))
		})
	}
}

func TestReconstruct(t *testing.T) {
	src := `{"1": [function(e, t, r) {
  e("foo.js");
}, {"foo.js": "2"}], "2": [function(e, t, r) {
  fn2();
}, {}]}`
	b, err := bundle.Parse([]byte(src))
	require.NoError(t, err)

	files := bundle.Reconstruct(b, "")
	assert.Equal(t, map[string]string{"foo.js": "// ID: 2\n  fn2();\n\n"}, files)

	t.Run("filter is a substring match", func(t *testing.T) {
		full, err := bundle.Parse([]byte(sampleBundle))
		require.NoError(t, err)

		assert.Len(t, bundle.Reconstruct(full, "lib"), 1)
		assert.Contains(t, bundle.Reconstruct(full, "lib"), "./lib/util")
		assert.Empty(t, bundle.Reconstruct(full, "nothing-matches"))
	})

	t.Run("unknown implementation yields empty body", func(t *testing.T) {
		b := &bundle.Bundle{Records: []bundle.Record{
			{ID: "1", Dependencies: []bundle.Dependency{{Name: "ghost", ID: "404"}}},
		}}
		assert.Equal(t, map[string]string{"ghost": "// ID: 404\n\n\n"}, bundle.Reconstruct(b, ""))
	})

	t.Run("empty bundle", func(t *testing.T) {
		assert.Empty(t, bundle.Reconstruct(&bundle.Bundle{}, ""))
	})
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"foo.js":        "foo.js",
		"./lib/util":    "lib/util.js",
		"react":         "react.js",
		"styles/a.css":  "styles/a.css",
		"../outside":    "../outside.js",
		"dir/.hidden":   "dir/.hidden.js",
		".":             "",
		"a/./b/../c.ts": "a/c.ts",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, bundle.OutputName(in))
		})
	}
}

func TestWrite(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	files := map[string]string{
		"foo.js":      "// ID: 2\nx\n\n",
		"./lib/util":  "// ID: 3\ny\n\n",
		"../escape":   "// ID: 4\nz\n\n",
		"deep/a/b/c":  "// ID: 5\nw\n\n",
		"empty-entry": "",
	}

	res, err := bundle.Write(context.Background(), files, out, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"../escape"}, res.Skipped)
	assert.Len(t, res.Files, 3)
	assert.Equal(t, int64(len(files["foo.js"])+len(files["./lib/util"])+len(files["deep/a/b/c"])), res.Bytes)

	data, err := os.ReadFile(filepath.Join(out, "lib", "util.js"))
	require.NoError(t, err)
	assert.Equal(t, "// ID: 3\ny\n\n", string(data))
	assert.FileExists(t, filepath.Join(out, "deep", "a", "b", "c.js"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(out), "escape.js"))
	assert.NoFileExists(t, filepath.Join(out, "empty-entry.js"))

	t.Run("rewrite is idempotent", func(t *testing.T) {
		_, err := bundle.Write(context.Background(), files, out, 1)
		require.NoError(t, err)
		again, err := os.ReadFile(filepath.Join(out, "lib", "util.js"))
		require.NoError(t, err)
		assert.Equal(t, data, again)
	})

	t.Run("write failure is returned", func(t *testing.T) {
		blocked := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(blocked, "deep"), nil, 0o644))
		_, err := bundle.Write(context.Background(), map[string]string{"deep/x": "content"}, blocked, 2)
		assert.Error(t, err)
	})
}

func TestWrite_SharedOutputFile(t *testing.T) {
	files := map[string]string{
		"./util":    "// ID: 1\n" + strings.Repeat("a", 256<<10) + "\n\n",
		"util":      "// ID: 2\n" + strings.Repeat("b", 256<<10) + "\n\n",
		"util.js":   "// ID: 3\n" + strings.Repeat("c", 256<<10) + "\n\n",
		"other.js":  "// ID: 4\no\n\n",
		"../escape": "// ID: 5\nz\n\n",
	}
	out := t.TempDir()

	for i := 0; i < 10; i++ {
		res, err := bundle.Write(context.Background(), files, out, 4)
		require.NoError(t, err)

		assert.Equal(t, []string{"../escape", "./util", "util"}, res.Skipped)
		assert.Equal(t, map[string]string{"./util": "util.js", "util": "util.js"}, res.Shadowed)
		assert.Equal(t, []string{filepath.Join(out, "other.js"), filepath.Join(out, "util.js")}, res.Files)
		assert.Equal(t, int64(len(files["util.js"])+len(files["other.js"])), res.Bytes)

		data, err := os.ReadFile(filepath.Join(out, "util.js"))
		require.NoError(t, err)
		require.Equal(t, files["util.js"], string(data), "run %d", i)
	}

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files are left behind")
}

func TestPrepare(t *testing.T) {
	chunk := strings.Join([]string{
		`(window.webpackJsonp = window.webpackJsonp || []).push([[0], {`,
		`"1": [function(e, t, r) {`,
		`  t.exports = 1;`,
		`}, {}],`,
		`"2": [function(e, t, r) {`,
		`}, {}]`,
		`}]);`,
		`//# sourceMappingURL=chunk.js.map`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, bundle.Prepare(strings.NewReader(chunk), &out))

	want := "export default {\n" +
		"\"1\": [function(e, t, r) {\n" +
		"  t.exports = 1;\n" +
		"}, {}],\n" +
		"\"2\": [function(e, t, r) {\n" +
		"}, {}]\n" +
		"}\n"
	assert.Equal(t, want, out.String())

	t.Run("prepared text parses", func(t *testing.T) {
		b, err := bundle.Parse(out.Bytes())
		require.NoError(t, err)
		assert.Len(t, b.Records, 2)
	})

	t.Run("no marker yields an empty object", func(t *testing.T) {
		var empty bytes.Buffer
		require.NoError(t, bundle.Prepare(strings.NewReader("var a = 1;\nvar b = 2;\n"), &empty))
		assert.Equal(t, "export default {\n}\n", empty.String())
	})

	assert.Equal(t, "dist/chunk.js.json.js", bundle.PreparedPath("dist/chunk.js"))
}
