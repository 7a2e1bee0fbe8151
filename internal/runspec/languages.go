package runspec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// languagesFile is the YAML shape of a custom runtime definition file:
//
//	languages:
//	  ruby:
//	    extension: rb
//	    command: ruby user_code.rb
type languagesFile struct {
	Languages map[string]Runtime `yaml:"languages"`
}

// LoadLanguages merges runtime definitions from a YAML file over the
// built-in table. The java and sql entries cannot be overridden; their
// behavior is built into Resolve.
func (r *Resolver) LoadLanguages(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading languages file %s: %w", path, err)
	}

	var f languagesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing languages file %s: %w", path, err)
	}

	for name, rt := range f.Languages {
		if name == "java" || name == "sql" {
			continue
		}
		if rt.Extension == "" || rt.Command == "" {
			return fmt.Errorf("languages file %s: %q needs extension and command", path, name)
		}
		r.runtimes[name] = rt
	}
	return nil
}
