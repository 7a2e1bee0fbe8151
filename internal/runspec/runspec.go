// Package runspec maps a language tag and source text to the file name and
// command line that run it.
package runspec

import (
	"errors"
	"fmt"
	"regexp"
)

var ErrUnsupported = errors.New("unsupported language")

// Spec describes how to run one submission: the name the source file must be
// written under and the shell command that builds and runs it. Commands are
// executed as `/bin/bash -c "cd <dir> && env TERM=dumb <command>"` so
// compile-and-run pairs can be joined with &&.
type Spec struct {
	Language string
	FileName string
	Command  string
	// SQL marks a session that runs against a per-session database and
	// needs the database seeded before the command runs.
	SQL bool
}

// Runtime is one built-in or user-defined language entry.
type Runtime struct {
	Extension string `yaml:"extension"`
	Command   string `yaml:"command"`
}

var builtins = map[string]Runtime{
	"python": {Extension: "py", Command: "python3 -u user_code.py"},
	"c":      {Extension: "c", Command: "gcc -fdiagnostics-color=never user_code.c -o main && ./main"},
	"cpp":    {Extension: "cpp", Command: "g++ -fdiagnostics-color=never user_code.cpp -o main && ./main"},
	"java":   {Extension: "java"}, // command built per-submission, see Resolve
	"js":     {Extension: "js", Command: "node user_code.js"},
	"php":    {Extension: "php", Command: "php user_code.php"},
	"sql":    {Extension: "sql", Command: "sqlite3 -header -column ephemeral.db < user_code.sql"},
}

// publicClassRe finds the first `public class <Identifier>` in Java source.
// Intentionally heuristic: first match wins and nothing checks that the
// class actually declares main. Source with no public class falls back to a
// fixed file name and a command that fails at compile time, which surfaces
// as ordinary process output.
var publicClassRe = regexp.MustCompile(`public\s+class\s+([A-Za-z_]\w*)`)

// Resolver resolves run specs from the built-in table plus any custom
// runtimes merged over it.
type Resolver struct {
	runtimes map[string]Runtime
}

func NewResolver() *Resolver {
	r := &Resolver{runtimes: make(map[string]Runtime, len(builtins))}
	for name, rt := range builtins {
		r.runtimes[name] = rt
	}
	return r
}

// Supported reports whether language is known to the resolver.
func (r *Resolver) Supported(language string) bool {
	_, ok := r.runtimes[language]
	return ok
}

// Resolve returns the spec for running source in the given language.
func (r *Resolver) Resolve(language, source string) (Spec, error) {
	rt, ok := r.runtimes[language]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnsupported, language)
	}

	spec := Spec{
		Language: language,
		FileName: "user_code." + rt.Extension,
		Command:  rt.Command,
	}

	switch language {
	case "java":
		if name := FindPublicClass(source); name != "" {
			spec.FileName = name + ".java"
			spec.Command = fmt.Sprintf("javac %s.java && java %s", name, name)
		} else {
			spec.Command = "javac user_code.java && java user_code"
		}
	case "sql":
		spec.SQL = true
	}

	return spec, nil
}

// FindPublicClass returns the first public class name declared in Java
// source, or "" if none is found.
func FindPublicClass(source string) string {
	m := publicClassRe.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	return m[1]
}
