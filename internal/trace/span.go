package trace

import (
	"context"
	"time"
)

type tracerKey struct{}

type spanKey struct{}

// WithTracer attaches t to ctx.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// FromContext returns the tracer in ctx or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// Span is an open begin/end pair. The zero value and nil are inert.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

// Begin opens a span under the tracer and parent span found in ctx.
func Begin(ctx context.Context, scope Scope, name string) *Span {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().Allows(KindSpanBegin, scope) {
		return &Span{}
	}
	var parent uint64
	if p, ok := ctx.Value(spanKey{}).(uint64); ok {
		parent = p
	}
	s := &Span{
		tracer:  t,
		id:      nextSpanID(),
		parent:  parent,
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	t.Emit(&Event{
		Time:     s.started,
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: parent,
		Name:     name,
	})
	return s
}

// Context returns ctx with s as the parent of spans opened from it.
func (s *Span) Context(ctx context.Context) context.Context {
	if s == nil || s.tracer == nil {
		return ctx
	}
	return context.WithValue(ctx, spanKey{}, s.id)
}

// WithExtra attaches a key/value pair reported on End.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// End closes the span. Calling End on an inert span does nothing.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Elapsed:  dur,
		Extra:    s.extra,
	})
	s.tracer = nil
	return dur
}

// Point emits an instant event.
func Point(ctx context.Context, scope Scope, name, detail string) {
	emitInstant(ctx, KindPoint, scope, name, detail)
}

// Error emits an error event; it passes every level except LevelOff.
func Error(ctx context.Context, scope Scope, name, detail string) {
	emitInstant(ctx, KindError, scope, name, detail)
}

func emitInstant(ctx context.Context, kind Kind, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() {
		return
	}
	var parent uint64
	if ctx != nil {
		if p, ok := ctx.Value(spanKey{}).(uint64); ok {
			parent = p
		}
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     kind,
		Scope:    scope,
		ParentID: parent,
		Name:     name,
		Detail:   detail,
	})
}
