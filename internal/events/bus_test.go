package events

import (
	"sync"
	"testing"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventNotificationCreated)
	other := bus.Subscribe(EventChartsRebuilt)

	bus.Publish(EventNotificationCreated, Payload{"user_id": "u1"})

	select {
	case p := <-sub:
		if p.String("user_id") != "u1" {
			t.Fatalf("payload=%v", p)
		}
	default:
		t.Fatal("expected a delivered payload")
	}

	select {
	case p := <-other:
		t.Fatalf("unrelated subscriber got %v", p)
	default:
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventVersionUpdated)
	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventVersionUpdated, Payload{"n": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("len=%d cap=%d", len(sub), cap(sub))
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventVersionUpdated)
	bus.Unsubscribe(EventVersionUpdated, sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	// A second unsubscribe must not panic on a closed channel.
	bus.Unsubscribe(EventVersionUpdated, sub)
	bus.Publish(EventVersionUpdated, Payload{})
}

func TestPayloadString(t *testing.T) {
	p := Payload{"a": "x", "b": 3}
	if p.String("a") != "x" || p.String("b") != "" || p.String("c") != "" {
		t.Fatalf("unexpected %v", p)
	}
}

func TestBus_PublishDuringUnsubscribe(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				bus.Publish(EventVersionUpdated, Payload{"version_id": "v1"})
			}
		}
	}()

	// A send on a closed channel would panic the publisher goroutine.
	for i := 0; i < 500; i++ {
		sub := bus.Subscribe(EventVersionUpdated)
		bus.Unsubscribe(EventVersionUpdated, sub)
	}
	close(stop)
	wg.Wait()
}
