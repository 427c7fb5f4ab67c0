package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGate(t *testing.T, window time.Duration) (*Gate, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	current := time.Unix(1_700_000_000, 0)
	gate := NewGate(client, window, nil)
	gate.now = func() time.Time { return current }
	return gate, &current
}

func TestTryAcquireFirstCall(t *testing.T) {
	gate, _ := newTestGate(t, 120*time.Second)

	ok, err := gate.TryAcquire(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}
}

func TestTryAcquireBlocksWithinWindow(t *testing.T) {
	gate, current := newTestGate(t, 120*time.Second)
	ctx := context.Background()

	if ok, _ := gate.TryAcquire(ctx, "tenant-1"); !ok {
		t.Fatal("first acquire should succeed")
	}

	*current = current.Add(119 * time.Second)
	ok, err := gate.TryAcquire(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if ok {
		t.Fatal("acquire inside the window must fail")
	}

	*current = current.Add(1 * time.Second)
	ok, err = gate.TryAcquire(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !ok {
		t.Fatal("acquire at exactly the window boundary should succeed")
	}
}

func TestTenantsAreIndependent(t *testing.T) {
	gate, _ := newTestGate(t, 120*time.Second)
	ctx := context.Background()

	if ok, _ := gate.TryAcquire(ctx, "tenant-1"); !ok {
		t.Fatal("tenant-1 acquire should succeed")
	}
	if ok, _ := gate.TryAcquire(ctx, "tenant-2"); !ok {
		t.Fatal("tenant-2 should not be affected by tenant-1's cooldown")
	}
}

func TestCooldownCeiling(t *testing.T) {
	gate, current := newTestGate(t, 120*time.Second)
	ctx := context.Background()

	// Across a rolling 120s window only one acquire may succeed no matter how
	// many poll cycles run.
	acquired := 0
	for i := 0; i < 24; i++ {
		ok, err := gate.TryAcquire(ctx, "tenant-1")
		if err != nil {
			t.Fatalf("TryAcquire: %v", err)
		}
		if ok {
			acquired++
		}
		*current = current.Add(5 * time.Second) // 24 polls * 5s = 115s < window after first acquire
	}
	if acquired != 1 {
		t.Fatalf("expected exactly one acquire in the window, got %d", acquired)
	}
}

func TestReadyDoesNotConsumeTheWindow(t *testing.T) {
	gate, current := newTestGate(t, 120*time.Second)
	ctx := context.Background()

	if ready, err := gate.Ready(ctx, "tenant-1"); err != nil || !ready {
		t.Fatalf("unused gate should be ready: ready=%v err=%v", ready, err)
	}
	// Ready is read-only: an acquire right after must still succeed.
	if ok, _ := gate.TryAcquire(ctx, "tenant-1"); !ok {
		t.Fatal("acquire after ready check should succeed")
	}

	if ready, _ := gate.Ready(ctx, "tenant-1"); ready {
		t.Fatal("gate must report closed inside the window")
	}
	*current = current.Add(120 * time.Second)
	if ready, _ := gate.Ready(ctx, "tenant-1"); !ready {
		t.Fatal("gate must reopen once the window elapses")
	}
}
