// Package logic executes a rule's textual evaluation logic when no native
// predicate is registered for it.
package logic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Standard errors returned by interpreters.
var (
	ErrCompile   = errors.New("logic: expression does not compile")
	ErrEval      = errors.New("logic: evaluation failed")
	ErrNotString = errors.New("logic: result is not a string")
)

// Interpreter evaluates an expression over named variables and returns the
// raw verdict string it yields.
type Interpreter interface {
	Eval(ctx context.Context, expr string, vars map[string]any) (string, error)
}

// CELInterpreter runs expressions as sandboxed CEL programs. Each distinct
// variable set gets its own environment; programs are cached per expression.
//
// Example expression:
//
//	!is_high_risk ? "not_applicable" : (human_can_override ? "pass" : "fail")
type CELInterpreter struct {
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewCELInterpreter returns an interpreter with an empty program cache.
func NewCELInterpreter() *CELInterpreter {
	return &CELInterpreter{prgCache: make(map[string]cel.Program)}
}

// Eval compiles (or reuses) the program for expr and runs it. The program
// may reference only the names in vars.
func (i *CELInterpreter) Eval(ctx context.Context, expr string, vars map[string]any) (string, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	prg, err := i.program(expr, names)
	if err != nil {
		return "", err
	}

	out, _, err := prg.ContextEval(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEval, err)
	}
	s, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("%w: got %T", ErrNotString, out.Value())
	}
	return s, nil
}

func (i *CELInterpreter) program(expr string, names []string) (cel.Program, error) {
	key := strings.Join(names, ",") + "\x00" + expr

	i.mu.RLock()
	prg, hit := i.prgCache[key]
	i.mu.RUnlock()
	if hit {
		return prg, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if prg, hit = i.prgCache[key]; hit {
		return prg, nil
	}

	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrCompile, err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, issues.Err())
	}
	prg, err = env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: program: %w", ErrCompile, err)
	}
	i.prgCache[key] = prg
	return prg, nil
}
