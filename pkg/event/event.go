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

// Package event implements the in-process lifecycle event bus (C12):
// async publish, per-subscriber buffered delivery, and drop-oldest
// overflow handling. Adapted from the teacher's
// controller.LogBufferManager/CircularBuffer subscriber-channel pattern,
// generalized from "fan out raw log bytes" to "fan out typed lifecycle
// events."
package event

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind tags an Event's payload shape.
type Kind string

const (
	KindPipelineStarted       Kind = "PipelineStarted"
	KindPipelineCompleted     Kind = "PipelineCompleted"
	KindStageStarted          Kind = "StageStarted"
	KindStageCompleted        Kind = "StageCompleted"
	KindStepStarted           Kind = "StepStarted"
	KindStepCompleted         Kind = "StepCompleted"
	KindBranchStarted         Kind = "BranchStarted"
	KindBranchCompleted       Kind = "BranchCompleted"
	KindErrorOccurred         Kind = "ErrorOccurred"
	KindCancellationRequested Kind = "CancellationRequested"
)

// Event is the envelope every published value carries: a kind tag, the
// owning execution id, a publish timestamp, and a scope-specific
// payload (a StageResult, StepResult, error, or similar).
type Event struct {
	Kind        Kind
	ExecutionID string
	Timestamp   time.Time
	Payload     any
}

// Publisher is the narrow interface executors depend on, so pkg/executor
// only needs Publish and never the subscription half of Bus — mirrors
// execctx.StepRunner's cycle-avoidance shape, though here there's no
// cycle risk (pkg/executor is free to import pkg/event directly); it
// simply keeps Stage/Pipeline executor constructors decoupled from Bus's
// concrete type.
type Publisher interface {
	Publish(evt Event)
}

// subscriber is one listener's buffered inbox plus a dropped-event
// counter for overflow bookkeeping.
type subscriber struct {
	ch      chan Event
	dropped uint64
}

// Bus is the reference Publisher: each Publish fans out to every current
// subscriber without blocking the caller. A slow subscriber's inbox fills
// and starts dropping its own oldest buffered event rather than stalling
// publication for everyone else (spec.md §9's "overflow drops the oldest
// event and records a counter").
type Bus struct {
	bufferSize int

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}

	totalPublished uint64
}

// NewBus returns a Bus whose per-subscriber channel holds bufferSize
// events before it starts dropping the oldest. bufferSize <= 0 uses a
// reasonable default of 64.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		bufferSize:  bufferSize,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Publish delivers evt to every current subscriber. Delivery is
// non-blocking per subscriber: a full inbox drops its own oldest
// buffered event to make room, rather than blocking the publisher.
func (b *Bus) Publish(evt Event) {
	atomic.AddUint64(&b.totalPublished, 1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub.ch <- evt:
		default:
			select {
			case <-sub.ch:
				atomic.AddUint64(&sub.dropped, 1)
			default:
			}
			select {
			case sub.ch <- evt:
			default:
			}
		}
	}
}

// Subscription is the handle Subscribe returns: Events delivers the
// listener's inbox; Dropped reports how many events that listener has
// lost to overflow so far.
type Subscription struct {
	Events <-chan Event
	sub    *subscriber
}

func (s Subscription) Dropped() uint64 {
	return atomic.LoadUint64(&s.sub.dropped)
}

// Subscribe registers a new listener and returns its Subscription.
// Callers must Unsubscribe when done to release the inbox.
func (b *Bus) Subscribe() Subscription {
	sub := &subscriber{ch: make(chan Event, b.bufferSize)}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return Subscription{Events: sub.ch, sub: sub}
}

// Unsubscribe removes a listener and closes its inbox.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s.sub]; ok {
		delete(b.subscribers, s.sub)
		close(s.sub.ch)
	}
}

// PublishedCount reports how many events Publish has been called with,
// regardless of how many subscribers actually received them.
func (b *Bus) PublishedCount() uint64 {
	return atomic.LoadUint64(&b.totalPublished)
}

// SubscriberCount reports how many listeners are currently registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
