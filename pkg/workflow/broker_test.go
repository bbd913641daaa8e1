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

package workflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tombee/flowcore/pkg/workflow"
)

func TestBroker_PublishDeliversToSubscriber(t *testing.T) {
	b := workflow.NewBroker()
	ch, unsubscribe := b.Subscribe(workflow.RunTopic("run-1"))
	defer unsubscribe()

	b.Publish(workflow.RunTopic("run-1"), workflow.Signal{})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
}

func TestBroker_PublishDoesNotBlockOnFullBuffer(t *testing.T) {
	b := workflow.NewBroker()
	ch, unsubscribe := b.Subscribe(workflow.RunTopic("run-1"))
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(workflow.RunTopic("run-1"), workflow.Signal{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}

	// Drain; the channel should still be readable (overflow drops the
	// oldest queued signal, not the newest).
	<-ch
}

func TestBroker_UnsubscribeClosesChannelAndRemovesEmptyTopic(t *testing.T) {
	b := workflow.NewBroker()
	ch, unsubscribe := b.Subscribe(workflow.RunTopic("run-1"))
	assert.Equal(t, 1, b.SubscriberCount(workflow.RunTopic("run-1")))

	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.Equal(t, 0, b.SubscriberCount(workflow.RunTopic("run-1")))
}

func TestBroker_UnsubscribeIsIdempotent(t *testing.T) {
	b := workflow.NewBroker()
	_, unsubscribe := b.Subscribe(workflow.RunTopic("run-1"))
	unsubscribe()
	assert.NotPanics(t, unsubscribe)
}

func TestBroker_MultipleSubscribersEachReceive(t *testing.T) {
	b := workflow.NewBroker()
	topic := workflow.RunTopic("run-1")
	ch1, unsub1 := b.Subscribe(topic)
	ch2, unsub2 := b.Subscribe(topic)
	defer unsub1()
	defer unsub2()

	b.Publish(topic, workflow.Signal{})

	for _, ch := range []<-chan workflow.Signal{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("expected every subscriber to receive the signal")
		}
	}
}
