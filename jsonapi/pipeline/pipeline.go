// Package pipeline provides an ordered, named middleware chain around a terminal handler.
//
// Stages are data, not inheritance: a Pipeline is an immutable value and every mutator
// returns a modified copy, so stages can be injected, replaced or removed per dispatcher
// without touching the commands or queries that flow through it.
package pipeline

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

var ErrStageNotFound = errors.New("pipeline stage not found")
var ErrEmptyStageName = errors.New("pipeline stage name must not be empty")

// Next continues the chain with the (possibly modified) subject.
type Next[C any] func(ctx context.Context, subject C) (jsonapi.Result, error)

// Handler terminates the chain.
type Handler[C any] func(ctx context.Context, subject C) (jsonapi.Result, error)

// StageFunc is one interceptor. It short-circuits by returning without calling next.
type StageFunc[C any] func(ctx context.Context, subject C, next Next[C]) (jsonapi.Result, error)

// Stage is a named interceptor.
type Stage[C any] struct {
	Name string
	Fn   StageFunc[C]
}

// NewStage builds a Stage and panics on an empty name, stages are wired at startup.
func NewStage[C any](name string, fn StageFunc[C]) Stage[C] {
	if name == "" {
		panic(ErrEmptyStageName)
	}

	return Stage[C]{Name: name, Fn: fn}
}

// Pipeline is an ordered list of stages in front of a terminal handler. The first stage runs first.
type Pipeline[C any] struct {
	stages   []Stage[C]
	terminal Handler[C]
}

func New[C any](terminal Handler[C], stages ...Stage[C]) Pipeline[C] {
	return Pipeline[C]{stages: cloneStages(stages), terminal: terminal}
}

// Through returns a copy that runs exactly the given stages.
func (p Pipeline[C]) Through(stages ...Stage[C]) Pipeline[C] {
	p.stages = cloneStages(stages)
	return p
}

// Prepend returns a copy with stages placed in front of the existing ones.
func (p Pipeline[C]) Prepend(stages ...Stage[C]) Pipeline[C] {
	merged := make([]Stage[C], 0, len(p.stages)+len(stages))
	merged = append(merged, stages...)
	merged = append(merged, p.stages...)
	p.stages = merged

	return p
}

// Append returns a copy with stages placed after the existing ones, right before the terminal handler.
func (p Pipeline[C]) Append(stages ...Stage[C]) Pipeline[C] {
	merged := make([]Stage[C], 0, len(p.stages)+len(stages))
	merged = append(merged, p.stages...)
	merged = append(merged, stages...)
	p.stages = merged

	return p
}

// Without returns a copy without the named stages. Unknown names are ignored.
func (p Pipeline[C]) Without(names ...string) Pipeline[C] {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}

	kept := make([]Stage[C], 0, len(p.stages))
	for _, stage := range p.stages {
		if _, ok := drop[stage.Name]; !ok {
			kept = append(kept, stage)
		}
	}

	p.stages = kept

	return p
}

// InsertBefore returns a copy with stage placed in front of the stage called name.
func (p Pipeline[C]) InsertBefore(name string, stage Stage[C]) (Pipeline[C], error) {
	idx := p.indexOf(name)
	if idx < 0 {
		return p, errors.Join(ErrStageNotFound, errors.New(name))
	}

	merged := make([]Stage[C], 0, len(p.stages)+1)
	merged = append(merged, p.stages[:idx]...)
	merged = append(merged, stage)
	merged = append(merged, p.stages[idx:]...)
	p.stages = merged

	return p, nil
}

// InsertAfter returns a copy with stage placed behind the stage called name.
func (p Pipeline[C]) InsertAfter(name string, stage Stage[C]) (Pipeline[C], error) {
	idx := p.indexOf(name)
	if idx < 0 {
		return p, errors.Join(ErrStageNotFound, errors.New(name))
	}

	merged := make([]Stage[C], 0, len(p.stages)+1)
	merged = append(merged, p.stages[:idx+1]...)
	merged = append(merged, stage)
	merged = append(merged, p.stages[idx+1:]...)
	p.stages = merged

	return p, nil
}

// Replace returns a copy with the stage called name swapped for stage.
func (p Pipeline[C]) Replace(name string, stage Stage[C]) (Pipeline[C], error) {
	idx := p.indexOf(name)
	if idx < 0 {
		return p, errors.Join(ErrStageNotFound, errors.New(name))
	}

	p.stages = cloneStages(p.stages)
	p.stages[idx] = stage

	return p, nil
}

// WithTerminal returns a copy with the terminal handler swapped.
func (p Pipeline[C]) WithTerminal(terminal Handler[C]) Pipeline[C] {
	p.terminal = terminal
	return p
}

// Names lists the stage names in execution order.
func (p Pipeline[C]) Names() []string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name
	}

	return names
}

// Run sends subject through all stages and the terminal handler.
func (p Pipeline[C]) Run(ctx context.Context, subject C) (jsonapi.Result, error) {
	next := Next[C](p.terminal)

	for i := len(p.stages) - 1; i >= 0; i-- {
		stage := p.stages[i]
		inner := next
		next = func(ctx context.Context, subject C) (jsonapi.Result, error) {
			return stage.Fn(ctx, subject, inner)
		}
	}

	return next(ctx, subject)
}

func (p Pipeline[C]) indexOf(name string) int {
	for i, stage := range p.stages {
		if stage.Name == name {
			return i
		}
	}

	return -1
}

func cloneStages[C any](stages []Stage[C]) []Stage[C] {
	cloned := make([]Stage[C], len(stages))
	copy(cloned, stages)

	return cloned
}
