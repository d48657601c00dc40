package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"circle-chat/internal/store"
	"circle-chat/internal/store/memstore"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeNetwork struct {
	mu       sync.Mutex
	disables int
	enables  int
	release  chan struct{}
}

func (f *fakeNetwork) DisableNetwork(ctx context.Context) error {
	f.mu.Lock()
	f.disables++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return nil
}

func (f *fakeNetwork) EnableNetwork(ctx context.Context) error {
	f.mu.Lock()
	f.enables++
	f.mu.Unlock()
	return nil
}

func (f *fakeNetwork) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disables, f.enables
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "backend down"), true},
		{"wrapped unavailable", fmt.Errorf("listen chats: %w", status.Error(codes.Unavailable, "x")), true},
		{"webchannel", errors.New("WebChannelConnection RPC 'Listen' stream 0x1 transport errored"), true},
		{"offline", errors.New("Could not reach Cloud Firestore backend. Connection failed 1 times."), true},
		{"permission", status.Error(codes.PermissionDenied, "missing or insufficient permissions"), false},
		{"not found", store.ErrNotFound, false},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestReportCoalescesWhileRecovering(t *testing.T) {
	net := &fakeNetwork{release: make(chan struct{})}
	r := NewRecoverer(net, 10*time.Millisecond, nil)
	fault := errors.New("WebChannelConnection transport errored")

	if !r.Report(fault) {
		t.Fatalf("expected transient fault to be accepted")
	}
	if !r.Recovering() {
		t.Fatalf("expected recovery in flight")
	}
	r.Report(fault)
	r.Report(fault)
	close(net.release)
	r.Wait()

	disables, enables := net.counts()
	if disables != 1 || enables != 1 {
		t.Fatalf("expected exactly one cycle, got disable=%d enable=%d", disables, enables)
	}
	if r.Recovering() {
		t.Fatalf("flag not cleared")
	}
	if r.Cycles() != 1 {
		t.Fatalf("expected 1 completed cycle, got %d", r.Cycles())
	}
}

func TestReportIgnoresNonTransient(t *testing.T) {
	net := &fakeNetwork{}
	r := NewRecoverer(net, time.Millisecond, nil)
	if r.Report(errors.New("permission denied")) {
		t.Fatalf("non-transient error should not trigger recovery")
	}
	r.Wait()
	if d, _ := net.counts(); d != 0 {
		t.Fatalf("unexpected disable call")
	}
}

func TestNextFaultAfterCycleStartsNewCycle(t *testing.T) {
	net := &fakeNetwork{}
	r := NewRecoverer(net, time.Millisecond, nil)
	fault := status.Error(codes.Unavailable, "x")

	r.Report(fault)
	r.Wait()
	r.Report(fault)
	r.Wait()
	if d, e := net.counts(); d != 2 || e != 2 {
		t.Fatalf("expected two sequential cycles, got %d/%d", d, e)
	}
}

func TestGuardedStoreReportsListenerErrors(t *testing.T) {
	mem := memstore.New()
	r := NewRecoverer(mem, 50*time.Millisecond, nil)
	g := Guard(mem, r)

	var mu sync.Mutex
	var errs, pushes int
	stop := g.Listen(store.Query{Collection: "chats"}, func(s store.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		pushes++
		if s.Err != nil {
			errs++
		}
	})
	defer stop()

	mem.BreakListeners("chats", errors.New("transport errored"))
	mem.BreakListeners("chats", errors.New("transport errored"))
	r.Wait()

	disables, enables := mem.NetworkCycles()
	if disables != 1 || enables != 1 {
		t.Fatalf("expected one network cycle, got %d/%d", disables, enables)
	}
	mu.Lock()
	defer mu.Unlock()
	if errs != 1 {
		t.Fatalf("expected a single error push while broken, got %d", errs)
	}
	if pushes < 3 {
		t.Fatalf("expected the listener to resume after the cycle, got %d pushes", pushes)
	}
}

func TestGuardedStoreReportsWriteErrors(t *testing.T) {
	mem := memstore.New()
	r := NewRecoverer(mem, time.Millisecond, nil)
	g := Guard(mem, r)

	mem.FailNext("update", status.Error(codes.Unavailable, "x"))
	err := g.Update(context.Background(), "chats", "c1", nil)
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("error should pass through unchanged, got %v", err)
	}
	r.Wait()
	if d, _ := mem.NetworkCycles(); d != 1 {
		t.Fatalf("expected a recovery cycle, got %d", d)
	}
}
