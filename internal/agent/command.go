package agent

import (
	"github.com/matt/agentexec/internal/tools"
)

// Command is a fully built invocation: an argument vector, never a shell string.
type Command struct {
	// Path is the executable as configured (resolved later by the launcher).
	Path string
	// Args excludes the program name.
	Args []string
	Dir  string
	Env  []string

	// Tools reports how each permitted tool was translated; nil for "all".
	Tools []tools.Mapping

	backend Backend
}

// Argv returns the program name followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// BestEffortTools returns the canonical names that were not in the
// translation table and had to be derived.
func (c Command) BestEffortTools() []string {
	var out []string
	for _, m := range c.Tools {
		if m.BestEffort {
			out = append(out, m.Canonical)
		}
	}
	return out
}

// BuildCommand turns a config into a Command. It performs no I/O and fails
// with *ConfigurationError before anything is spawned.
func BuildCommand(cfg InvocationConfig) (Command, error) {
	if err := cfg.Validate(); err != nil {
		return Command{}, err
	}
	backend, err := BackendFor(cfg.Variant)
	if err != nil {
		return Command{}, err
	}

	// names stays nil only for the All sentinel; an empty explicit set must
	// still produce the tools flag.
	names, report := tools.TranslateAll(backend.Dialect(), cfg.Tools)

	path := cfg.Executable
	if path == "" {
		path = backend.DefaultExecutable()
	}

	args := backend.Args(cfg, names)
	args = append(args, cfg.ExtraArgs...)

	return Command{
		Path:    path,
		Args:    args,
		Dir:     cfg.WorkingDir,
		Env:     append([]string(nil), cfg.Env...),
		Tools:   report,
		backend: backend,
	}, nil
}
