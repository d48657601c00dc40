// Package diagnostics suppresses a small, named set of spurious warnings emitted by
// bundled dependencies. Nothing outside the signature list is ever silenced.
package diagnostics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"circle-chat/pkg/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultSignatures is the spurious Firestore SDK assertion that surfaces after a listener
// is torn down mid-handshake. It never reflects application state.
var DefaultSignatures = []string{
	"INTERNAL ASSERTION FAILED: Unexpected state",
}

type Filter struct {
	mu         sync.RWMutex
	signatures []string
	dropped    atomic.Int64
}

func NewFilter(signatures ...string) *Filter {
	f := &Filter{}
	f.signatures = append(f.signatures, DefaultSignatures...)
	for _, s := range signatures {
		s = strings.TrimSpace(s)
		if s != "" {
			f.signatures = append(f.signatures, s)
		}
	}
	return f
}

func (f *Filter) Matches(text string) bool {
	if text == "" {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.signatures {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// Dropped reports how many log entries the filter swallowed.
func (f *Filter) Dropped() int64 {
	return f.dropped.Load()
}

var active atomic.Pointer[Filter]

// Install wraps l's core with the filter and makes it the process-wide filter.
// The returned func restores the previous core; call it on shutdown or in test cleanup.
// Only loggers derived from l after Install (Named, With, Ctx) are filtered, so install it
// right after the root logger is built and before any component takes a child logger.
func Install(l *logger.Logger, signatures ...string) (*Filter, func()) {
	f := NewFilter(signatures...)
	prevFilter := active.Swap(f)

	var prevLogger *zap.Logger
	if l != nil {
		prevLogger = l.Logger
		l.Logger = l.Logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return &filterCore{Core: c, filter: f}
		}))
	}

	var once sync.Once
	return f, func() {
		once.Do(func() {
			active.CompareAndSwap(f, prevFilter)
			if l != nil {
				l.Logger = prevLogger
			}
		})
	}
}

// Active returns the installed filter, or nil.
func Active() *Filter {
	return active.Load()
}

// IsBenign reports whether err is one of the known spurious warnings.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	f := active.Load()
	if f == nil {
		f = defaultFilter
	}
	return f.Matches(err.Error())
}

var defaultFilter = NewFilter()

// Recover is deferred at the top of background goroutines. Benign panics are
// swallowed; anything else is logged with the site name.
func Recover(l *logger.Logger, where string) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	if IsBenign(err) {
		return
	}
	if l != nil {
		l.Errorf("panic in %s: %v", where, err)
	}
}

type filterCore struct {
	zapcore.Core
	filter *Filter
}

func (c *filterCore) With(fields []zapcore.Field) zapcore.Core {
	return &filterCore{Core: c.Core.With(fields), filter: c.filter}
}

func (c *filterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.filter.Matches(ent.Message) {
		c.filter.dropped.Add(1)
		return ce
	}
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *filterCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	for _, field := range fields {
		switch field.Type {
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok && c.filter.Matches(err.Error()) {
				c.filter.dropped.Add(1)
				return nil
			}
		case zapcore.StringType:
			if c.filter.Matches(field.String) {
				c.filter.dropped.Add(1)
				return nil
			}
		}
	}
	return c.Core.Write(ent, fields)
}
