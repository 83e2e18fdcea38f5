// Package hook defines the contract for validators consulted before and after
// an agent invocation, plus a validator backed by an external command.
package hook

import (
	"context"
	"fmt"
	"strings"
)

// Phase says when a validator is consulted.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Action is a validator verdict.
type Action string

const (
	Allow Action = "allow"
	Ask   Action = "ask"
	Deny  Action = "deny"
)

// ParseAction parses a verdict string. Unknown values are an error.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case Allow, "approve", "":
		return Allow, nil
	case Ask:
		return Ask, nil
	case Deny, "block":
		return Deny, nil
	}
	return "", fmt.Errorf("unknown hook decision %q (valid: allow, ask, deny)", s)
}

// Input is what a validator sees.
type Input struct {
	Phase   Phase             `json:"phase"`
	Command []string          `json:"command"`
	Context map[string]string `json:"context,omitempty"`
	// Result is set for the post phase only.
	Result *Outcome `json:"result,omitempty"`
}

// Outcome summarizes a finished invocation for post-phase validators.
type Outcome struct {
	ExitCode int     `json:"exit_code"`
	Success  bool    `json:"success"`
	Duration float64 `json:"duration_seconds"`
	Output   string  `json:"output"`
	Error    string  `json:"error,omitempty"`
}

// Decision is a validator verdict plus the reason shown to the operator.
type Decision struct {
	Action Action `json:"decision"`
	Reason string `json:"reason,omitempty"`
}

// Validator decides whether an invocation may proceed.
type Validator interface {
	Validate(ctx context.Context, in Input) (Decision, error)
}

// Func adapts a function to the Validator interface.
type Func func(ctx context.Context, in Input) (Decision, error)

// Validate calls f.
func (f Func) Validate(ctx context.Context, in Input) (Decision, error) {
	return f(ctx, in)
}

// Chain consults validators in order. The first non-allow decision wins;
// an empty chain allows.
type Chain []Validator

// Validate implements Validator.
func (c Chain) Validate(ctx context.Context, in Input) (Decision, error) {
	for _, v := range c {
		d, err := v.Validate(ctx, in)
		if err != nil {
			return Decision{}, err
		}
		if d.Action != Allow {
			return d, nil
		}
	}
	return Decision{Action: Allow}, nil
}
