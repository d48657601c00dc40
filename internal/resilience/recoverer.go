// Package resilience recovers the document store from known transient transport faults by
// cycling its network connection.
package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"circle-chat/pkg/diagnostics"
	"circle-chat/pkg/logger"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// transientSignatures is the single table of transport fault fingerprints. Every call site
// goes through IsTransient.
var transientSignatures = []string{
	"WebChannelConnection",
	"transport errored",
	"Could not reach Cloud Firestore backend",
	"connection reset by peer",
	"http2: client connection lost",
	"stream terminated by RST_STREAM",
	"transport is closing",
}

var transientCodes = []codes.Code{
	codes.Unavailable,
}

func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	code := status.Code(err)
	for _, c := range transientCodes {
		if code == c {
			return true
		}
	}
	msg := err.Error()
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

type NetworkController interface {
	DisableNetwork(ctx context.Context) error
	EnableNetwork(ctx context.Context) error
}

const DefaultCooldown = time.Second

type Recoverer struct {
	net        NetworkController
	cooldown   time.Duration
	log        *logger.Logger
	recovering atomic.Bool
	cycles     atomic.Int64
	wg         sync.WaitGroup
}

func NewRecoverer(net NetworkController, cooldown time.Duration, log *logger.Logger) *Recoverer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Recoverer{net: net, cooldown: cooldown, log: log.Named("resilience")}
}

// Singleton instance variables
var (
	instance     *Recoverer
	instanceOnce sync.Once
)

// Initialize sets the process-wide recoverer. Only the first call has an effect.
func Initialize(net NetworkController, cooldown time.Duration, log *logger.Logger) *Recoverer {
	instanceOnce.Do(func() {
		instance = NewRecoverer(net, cooldown, log)
	})
	return instance
}

// Report inspects err and starts a recovery cycle for transient faults. It reports whether
// err was transient; reports arriving during a cycle are coalesced into it.
func (r *Recoverer) Report(err error) bool {
	if r == nil || !IsTransient(err) {
		return false
	}
	if !r.recovering.CompareAndSwap(false, true) {
		r.log.Debugf("recovery already in flight, coalescing: %v", err)
		return true
	}
	r.log.Debugf("transient transport fault, cycling network: %v", err)
	r.wg.Add(1)
	go r.cycle()
	return true
}

// Recovering reports whether a cycle is in flight.
func (r *Recoverer) Recovering() bool {
	return r.recovering.Load()
}

// Cycles counts completed disable/enable cycles.
func (r *Recoverer) Cycles() int64 {
	return r.cycles.Load()
}

// Wait blocks until the in-flight cycle, if any, finishes.
func (r *Recoverer) Wait() {
	r.wg.Wait()
}

func (r *Recoverer) cycle() {
	defer r.wg.Done()
	defer r.recovering.Store(false)
	defer diagnostics.Recover(r.log, "network recovery")

	ctx, cancel := context.WithTimeout(context.Background(), r.cooldown+30*time.Second)
	defer cancel()

	if err := r.net.DisableNetwork(ctx); err != nil {
		r.log.Warnf("recovery: disable network failed: %v", err)
		return
	}
	select {
	case <-time.After(r.cooldown):
	case <-ctx.Done():
	}
	if err := r.net.EnableNetwork(ctx); err != nil {
		r.log.Warnf("recovery: enable network failed: %v", err)
		return
	}
	r.cycles.Add(1)
	r.log.Infof("recovery: network cycled")
}
