package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Exclusion names a symbol that must be kept even if unreachable. File,
// when set, is compared against the base name of the defining file and
// disambiguates file-local symbols that share a name.
type Exclusion struct {
	File string
	Name string
}

// ParseExclusion parses `name` or `file:name`.
func ParseExclusion(spec string) (Exclusion, error) {
	spec = strings.TrimSpace(spec)
	idx := strings.LastIndex(spec, ":")
	if idx < 0 {
		if spec == "" {
			return Exclusion{}, fmt.Errorf("empty exclusion")
		}
		return Exclusion{Name: spec}, nil
	}
	file, name := spec[:idx], spec[idx+1:]
	if file == "" || name == "" {
		return Exclusion{}, fmt.Errorf("invalid exclusion %q: expected name or file:name", spec)
	}
	return Exclusion{File: filepath.Base(file), Name: name}, nil
}

// ParseExclusions parses every specifier.
func ParseExclusions(specs []string) ([]Exclusion, error) {
	out := make([]Exclusion, 0, len(specs))
	for _, spec := range specs {
		ex, err := ParseExclusion(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

// Matches reports whether a definition of name in path satisfies the exclusion.
func (e Exclusion) Matches(path, name string) bool {
	if e.Name != name {
		return false
	}
	return e.File == "" || filepath.Base(path) == e.File
}

func (e Exclusion) String() string {
	if e.File == "" {
		return e.Name
	}
	return e.File + ":" + e.Name
}
