package sandbox

import "testing"

func TestRewriteDynamicImports(t *testing.T) {
	imp := ph(CapImport)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no import substring",
			in:   `const a = 1; load(a);`,
			want: `const a = 1; load(a);`,
		},
		{
			name: "call position",
			in:   `import('mod')`,
			want: imp + `('mod')`,
		},
		{
			name: "property access untouched",
			in:   `loader.import('mod')`,
			want: `loader.import('mod')`,
		},
		{
			name: "private member untouched",
			in:   `this.#import('mod')`,
			want: `this.#import('mod')`,
		},
		{
			name: "import meta untouched",
			in:   `import.meta.url`,
			want: `import.meta.url`,
		},
		{
			name: "inside single-quoted string",
			in:   `log('import(x)')`,
			want: `log('import(x)')`,
		},
		{
			name: "inside double-quoted string",
			in:   `log("import(x)")`,
			want: `log("import(x)")`,
		},
		{
			name: "inside template text",
			in:   "log(`no import('x') here`)",
			want: "log(`no import('x') here`)",
		},
		{
			name: "inside template substitution",
			in:   "run(`${import('m')}`)",
			want: "run(`${" + imp + "('m')}`)",
		},
		{
			name: "nested template substitution",
			in:   "load(`${`${import('deep')}`}`)",
			want: "load(`${`${" + imp + "('deep')}`}`)",
		},
		{
			name: "escaped substitution stays text",
			in:   "run(`\\${import('x')}`)",
			want: "run(`\\${import('x')}`)",
		},
		{
			name: "inside line comment",
			in:   "// import('x')\nnext()",
			want: "// import('x')\nnext()",
		},
		{
			name: "inside block comment",
			in:   `/* import('x') */ next()`,
			want: `/* import('x') */ next()`,
		},
		{
			name: "inside regex literal",
			in:   `const re = /import\(/; import('y');`,
			want: `const re = /import\(/; ` + imp + `('y');`,
		},
		{
			name: "regex after return keyword",
			in:   `return /import(/.test(s);`,
			want: `return /import(/.test(s);`,
		},
		{
			name: "division does not open a regex",
			in:   `const r = a / b; import('x');`,
			want: `const r = a / b; ` + imp + `('x');`,
		},
		{
			name: "division after number literal",
			in:   `const r = 5 / 2; import('x');`,
			want: `const r = 5 / 2; ` + imp + `('x');`,
		},
		{
			name: "longer identifier untouched",
			in:   `myimport('x'); importer('y');`,
			want: `myimport('x'); importer('y');`,
		},
		{
			name: "comment between keyword and parenthesis",
			in:   `import /* lazy */ ('z')`,
			want: imp + ` /* lazy */ ('z')`,
		},
		{
			name: "newline before parenthesis",
			in:   "import\n('z')",
			want: imp + "\n('z')",
		},
		{
			name: "keyword without call untouched",
			in:   `import x from 'mod';`,
			want: `import x from 'mod';`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rewriteDynamicImports(tt.in, testToken)
			if got != tt.want {
				t.Errorf("rewrite mismatch\n got: %q\nwant: %q", got, tt.want)
			}
		})
	}
}
