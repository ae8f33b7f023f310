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

package handler

import "testing"

func TestOutputBufferWriteAndString(t *testing.T) {
	b := newOutputBuffer(0)
	b.Write([]byte("hello "))
	b.Write([]byte("world"))
	if b.String() != "hello world" {
		t.Fatalf("unexpected buffer contents: %q", b.String())
	}
}

func TestOutputBufferTruncatesOverLimit(t *testing.T) {
	b := newOutputBuffer(5)
	b.Write([]byte("abcdefghij"))
	if !b.truncated {
		t.Fatal("expected truncated to be set once over limit")
	}
	if b.String()[:3] != "..." {
		t.Fatalf("expected truncation marker, got %q", b.String())
	}
}

func TestOutputBufferSubscribeReceivesWrites(t *testing.T) {
	b := newOutputBuffer(0)
	ch := b.Subscribe()
	b.Write([]byte("chunk"))

	select {
	case got := <-ch:
		if string(got) != "chunk" {
			t.Fatalf("unexpected chunk: %q", got)
		}
	default:
		t.Fatal("expected a chunk to be available on the subscriber channel")
	}

	b.Unsubscribe(ch)
}
