// Package generic holds small type-parameterized utilities shared across
// the engine.
package generic

import "sync"

// Pool is a typed wrapper around sync.Pool.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) T
}

// NewPool creates a pool whose empty slots are filled by generate.
func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// WithReset installs a function applied to every value handed back by Get,
// typically to clear state left by a previous user.
func (p *Pool[T]) WithReset(reset func(T) T) *Pool[T] {
	p.reset = reset
	return p
}

// Get takes a value from the pool.
func (p *Pool[T]) Get() T {
	v := p.pool.Get().(T)
	if p.reset != nil {
		v = p.reset(v)
	}
	return v
}

// Put returns a value to the pool.
func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}
