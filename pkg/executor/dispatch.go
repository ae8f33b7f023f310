/*
Copyright 2025 ForgeCI Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package executor implements the Step, Stage, and Pipeline executors
// (C7-C9): the components that actually walk a Pipeline value and
// produce a PipelineResult, dispatching work across workload-class
// worker pools and publishing lifecycle events as they go.
package executor

import (
	"context"

	"github.com/org/forgeci/pkg/config"
	"github.com/org/forgeci/pkg/pipeline"
)

// job is one unit of dispatcher work: run fn and report its result on
// done. Mirrors the teacher's LogBufferManager idiom of a small request
// struct pushed through a channel rather than a library worker pool.
type job struct {
	fn   func()
	done chan struct{}
}

// pool is a fixed-size worker pool for one workload class: n goroutines
// pulling jobs off a shared channel. Built on plain channels and
// sync.WaitGroup, the same concurrency idiom the teacher uses throughout
// (no worker-pool or semaphore library appears anywhere in its own
// go.mod).
type pool struct {
	jobs chan job
	quit chan struct{}
}

func newPool(size int) *pool {
	if size < 1 {
		size = 1
	}
	p := &pool{
		jobs: make(chan job, size*4),
		quit: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	for {
		select {
		case j := <-p.jobs:
			j.fn()
			close(j.done)
		case <-p.quit:
			return
		}
	}
}

// run submits fn to the pool and blocks until it has finished, or until
// ctx is done — in which case run returns immediately but fn still runs
// to completion in the background (the caller's step-level cancellation
// handling is responsible for translating that into a Cancelled result).
func (p *pool) run(ctx context.Context, fn func()) {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return
	}
	select {
	case <-j.done:
	case <-ctx.Done():
	}
}

func (p *pool) close() {
	close(p.quit)
}

// Dispatchers owns the five named worker pools §5 describes, sized from
// config.DispatcherSizes. Steps are routed to one of them by
// pipeline.StepWorkloadClass.
type Dispatchers struct {
	cpu      *pool
	io       *pool
	network  *pool
	blocking *pool
	system   *pool
	def      *pool
}

// NewDispatchers builds the worker-pool set sized per sizes. The system
// class always gets a single-goroutine pool (§5: composite/control-flow
// steps run one at a time per branch), and default borrows the IO pool's
// size since it has no dedicated sizing knob.
func NewDispatchers(sizes config.DispatcherSizes) *Dispatchers {
	return &Dispatchers{
		cpu:      newPool(sizes.CPU),
		io:       newPool(sizes.IO),
		network:  newPool(sizes.Network),
		blocking: newPool(sizes.Blocking),
		system:   newPool(1),
		def:      newPool(sizes.IO),
	}
}

// Close stops every pool's workers. Safe to call once, at process
// shutdown.
func (d *Dispatchers) Close() {
	d.cpu.close()
	d.io.close()
	d.network.close()
	d.blocking.close()
	d.system.close()
	d.def.close()
}

func (d *Dispatchers) forClass(class pipeline.WorkloadClass) *pool {
	switch class {
	case pipeline.WorkloadCPU:
		return d.cpu
	case pipeline.WorkloadIO:
		return d.io
	case pipeline.WorkloadNetwork:
		return d.network
	case pipeline.WorkloadBlocking:
		return d.blocking
	case pipeline.WorkloadSystem:
		return d.system
	default:
		return d.def
	}
}

// Name reports the dispatcher label a step of this class ran on, for C7's
// result-enrichment step.
func dispatcherName(class pipeline.WorkloadClass) string {
	switch class {
	case pipeline.WorkloadCPU, pipeline.WorkloadIO, pipeline.WorkloadNetwork,
		pipeline.WorkloadBlocking, pipeline.WorkloadSystem:
		return string(class)
	default:
		return "default"
	}
}

// Run dispatches fn on the pool matching step's workload class and blocks
// until it completes or ctx is done.
func (d *Dispatchers) Run(ctx context.Context, step pipeline.Step, fn func()) {
	class := pipeline.StepWorkloadClass(step)
	d.forClass(class).run(ctx, fn)
}
