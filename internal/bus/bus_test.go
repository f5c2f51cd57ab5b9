package bus

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event within 1s")
	}
	return Event{}
}

func TestPublishOrder(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Kind: TaskCreated, TaskID: string(rune('a' + i))})
	}
	for i := 0; i < 5; i++ {
		ev := recv(t, sub)
		if ev.TaskID != string(rune('a'+i)) {
			t.Fatalf("event %d = %q", i, ev.TaskID)
		}
		if ev.At.IsZero() {
			t.Error("At not stamped")
		}
	}
}

func TestKindFilter(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe(WorkflowCompleted)

	b.Publish(Event{Kind: TaskCreated, TaskID: "t1"})
	b.Publish(Event{Kind: WorkflowCompleted, TaskID: "t1"})

	ev := recv(t, sub)
	if ev.Kind != WorkflowCompleted {
		t.Fatalf("kind = %s", ev.Kind)
	}
	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+50; i++ {
			b.Publish(Event{Kind: TaskCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// Everything past the buffer was dropped for this subscriber.
	var got int
	for {
		select {
		case <-sub.Events:
			got++
			continue
		default:
		}
		break
	}
	if got != subscriberBuffer {
		t.Errorf("received %d, want %d buffered", got, subscriberBuffer)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()
	sub.Close()

	if _, ok := <-sub.Events; ok {
		t.Fatal("channel not closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic on the closed channel.
	b.Publish(Event{Kind: TaskCreated})
}

func TestCloseEndsAllStreams(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe(ProposalSubmitted)
	b.Close()

	if _, ok := <-s1.Events; ok {
		t.Error("s1 still open")
	}
	if _, ok := <-s2.Events; ok {
		t.Error("s2 still open")
	}

	// Publish and Subscribe after close are no-ops.
	b.Publish(Event{Kind: TaskCreated})
	s3 := b.Subscribe()
	if _, ok := <-s3.Events; ok {
		t.Error("post-close subscription open")
	}
	b.Close()
}

func TestSubscribeAfterPublishMissesEarlier(t *testing.T) {
	b := New()
	defer b.Close()

	b.Publish(Event{Kind: TaskCreated, TaskID: "early"})
	sub := b.Subscribe()
	b.Publish(Event{Kind: TaskCreated, TaskID: "late"})

	if ev := recv(t, sub); ev.TaskID != "late" {
		t.Fatalf("got %q, want only the post-subscribe event", ev.TaskID)
	}
}
