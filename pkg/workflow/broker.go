// Copyright 2025 Tom Barlow
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

package workflow

import (
	"fmt"
	"sync"
)

// subscriberBufferSize is the per-subscriber buffered channel capacity.
const subscriberBufferSize = 16

// Signal is a best-effort "something changed" notification. It carries
// no payload: subscribers always re-query the Store for current state,
// so a dropped signal only delays a refresh, never corrupts one.
type Signal struct{}

// RunTopic returns the canonical topic name for a run's change signal.
func RunTopic(runID string) string {
	return fmt.Sprintf("runUpdated:%s", runID)
}

// Broker is an in-process, topic-keyed pub/sub used to notify live
// subscribers of run changes. It is scoped to a single process; it does
// not fan out across instances.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Signal
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[string][]chan Signal)}
}

// Publish delivers signal to every current subscriber of topic.
// Non-blocking: a subscriber whose buffer is full has its oldest queued
// signal dropped to make room, so the newest signal is never the one
// lost. This diverges deliberately from a simple "drop if full" policy,
// since observers only ever care about the latest state.
func (b *Broker) Publish(topic string, signal Signal) {
	b.mu.RLock()
	subs := make([]chan Signal, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mu.RUnlock()

	for _, ch := range subs {
		for {
			select {
			case ch <- signal:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribe registers a new subscriber for topic and returns a channel
// of signals plus an unsubscribe function. Calling Subscribe again after
// unsubscribing starts a fresh subscription.
func (b *Broker) Subscribe(topic string) (<-chan Signal, func()) {
	ch := make(chan Signal, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subs := b.subscribers[topic]
			for i, sub := range subs {
				if sub == ch {
					b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subscribers[topic]) == 0 {
				delete(b.subscribers, topic)
			}
			close(ch)
		})
	}

	return ch, unsubscribe
}

// SubscriberCount returns the number of live subscribers for topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
