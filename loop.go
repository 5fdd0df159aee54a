// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nandprog

import (
	"sync"

	"github.com/ZaparooProject/go-nandprog/internal/syncutil"
)

// eventLoop runs posted tasks one at a time on its own goroutine, in the
// order they were posted. The queue is unbounded so a task may post further
// tasks (or a user callback may start the next operation) without blocking.
type eventLoop struct {
	wake    chan struct{}
	tasks   []func()
	wg      sync.WaitGroup
	mu      syncutil.Mutex
	stopped bool
}

func newEventLoop() *eventLoop {
	l := &eventLoop{
		wake: make(chan struct{}, 1), // Buffered so post never blocks
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// post queues f. It returns false if the loop has been stopped.
func (l *eventLoop) post(f func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// stop refuses new tasks. Tasks already queued still run, then the goroutine
// exits. stop does not wait, so it is safe to call from a task.
func (l *eventLoop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// wait blocks until the loop goroutine has exited. Never call it from a task.
func (l *eventLoop) wait() {
	l.wg.Wait()
}

func (l *eventLoop) run() {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, task := range batch {
			task()
		}

		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-l.wake
	}
}
