package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one hook command in a hooks file.
type Entry struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	Dir     string `yaml:"dir"`
	Timeout string `yaml:"timeout"` // Go duration, e.g. "10s"
}

// File is the on-disk hooks configuration.
//
//	pre:
//	  - name: block-rm
//	    command: ./hooks/check.sh
//	    timeout: 10s
//	post:
//	  - command: ./hooks/notify.sh
type File struct {
	Pre  []Entry `yaml:"pre"`
	Post []Entry `yaml:"post"`
}

// Hooks holds the validators built from a File.
type Hooks struct {
	Pre  Chain
	Post Chain
}

// Empty reports whether no hooks are configured.
func (h Hooks) Empty() bool {
	return len(h.Pre) == 0 && len(h.Post) == 0
}

// LoadFile reads and validates a hooks file. Relative hook directories are
// resolved against the file's directory.
func LoadFile(path string) (Hooks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Hooks{}, fmt.Errorf("failed to read hooks file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes hooks YAML. baseDir anchors relative "dir" entries.
func Parse(data []byte, baseDir string) (Hooks, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Hooks{}, fmt.Errorf("failed to parse hooks file: %w", err)
	}

	pre, err := buildChain("pre", f.Pre, baseDir)
	if err != nil {
		return Hooks{}, err
	}
	post, err := buildChain("post", f.Post, baseDir)
	if err != nil {
		return Hooks{}, err
	}
	return Hooks{Pre: pre, Post: post}, nil
}

func buildChain(phase string, entries []Entry, baseDir string) (Chain, error) {
	var chain Chain
	for i, e := range entries {
		if e.Command == "" {
			return nil, fmt.Errorf("%s hook #%d: command is required", phase, i+1)
		}
		v := &CommandValidator{Name: e.Name, Command: e.Command, Dir: e.Dir}
		if v.Dir == "" {
			v.Dir = baseDir
		} else if !filepath.IsAbs(v.Dir) {
			v.Dir = filepath.Join(baseDir, v.Dir)
		}
		if e.Timeout != "" {
			d, err := time.ParseDuration(e.Timeout)
			if err != nil {
				return nil, fmt.Errorf("%s hook #%d: invalid timeout %q: %w", phase, i+1, e.Timeout, err)
			}
			v.Timeout = d
		}
		chain = append(chain, v)
	}
	return chain, nil
}
