package publish

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func startServer(t *testing.T, b *Broadcaster) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go b.Serve(lis)
	t.Cleanup(b.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitSubscribers(t *testing.T, b *Broadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for b.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", b.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscribeReceivesBeliefs(t *testing.T) {
	b := NewBroadcaster(WithClock(func() time.Time { return epoch }))
	c := startServer(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub, err := c.Subscribe(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	waitSubscribers(t, b, 1)

	b.Publish("a", 1, []float64{0.7, 0.2, 0.1})
	b.Publish("b", 4, []float64{0.5, 0.5})

	got, err := sub.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if got.Session != "a" || got.Seq != 1 || len(got.Probs) != 3 || got.Probs[0] != 0.7 {
		t.Errorf("belief = %+v", got)
	}
	if !got.Time.Equal(epoch) {
		t.Errorf("time = %v, want %v", got.Time, epoch)
	}

	got, err = sub.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if got.Session != "b" || got.Seq != 4 {
		t.Errorf("belief = %+v", got)
	}
}

func TestSubscribeFiltersBySession(t *testing.T) {
	b := NewBroadcaster()
	c := startServer(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub, err := c.Subscribe(ctx, "wanted")
	if err != nil {
		t.Fatal(err)
	}
	waitSubscribers(t, b, 1)

	b.Publish("other", 1, []float64{1})
	b.Publish("wanted", 2, []float64{1})

	got, err := sub.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if got.Session != "wanted" || got.Seq != 2 {
		t.Errorf("belief = %+v", got)
	}
}

func TestSubscriberRemovedOnCancel(t *testing.T) {
	b := NewBroadcaster()
	c := startServer(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.Subscribe(ctx, ""); err != nil {
		t.Fatal(err)
	}
	waitSubscribers(t, b, 1)
	cancel()
	waitSubscribers(t, b, 0)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(WithBuffer(1))
	_, ch := b.add("")

	for seq := range uint64(3) {
		b.Publish("s", seq, []float64{1})
	}
	if got := b.Dropped(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
	if msg := <-ch; msg.Seq != 0 {
		t.Errorf("queued seq = %d, want 0", msg.Seq)
	}
}

func TestPublishCopiesProbabilities(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.add("")

	probs := []float64{0.4, 0.6}
	b.Publish("s", 1, probs)
	probs[0] = 9

	if msg := <-ch; msg.Probs[0] != 0.4 {
		t.Errorf("published belief aliases caller slice: %v", msg.Probs)
	}
}
