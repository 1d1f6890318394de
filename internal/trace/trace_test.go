package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"off", "error", "session", "phase", "debug"} {
		l, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", name, err)
		}
		if l.String() != name {
			t.Errorf("round trip %q -> %q", name, l.String())
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevelAllows(t *testing.T) {
	if LevelSession.Allows(KindSpanBegin, ScopePhase) {
		t.Error("session level must drop phase spans")
	}
	if !LevelPhase.Allows(KindSpanBegin, ScopePhase) {
		t.Error("phase level must keep phase spans")
	}
	if LevelPhase.Allows(KindPoint, ScopeBackend) {
		t.Error("phase level must drop backend points")
	}
	if !LevelError.Allows(KindError, ScopeBackend) {
		t.Error("error events pass the error level")
	}
	if LevelOff.Allows(KindError, ScopeDriver) {
		t.Error("off drops everything")
	}
}

func TestSpan_StreamText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	ctx := WithTracer(context.Background(), tr)

	session := Begin(ctx, ScopeSession, "compile Foo.bar()V")
	phase := Begin(session.Context(ctx), ScopePhase, "optimize")
	phase.WithExtra("opt", "2").End("ok")
	Point(ctx, ScopeBackend, "opt", "hidden at phase level")
	session.End("")
	session.End("twice")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "→ compile Foo.bar()V") {
		t.Errorf("unexpected begin line %q", lines[0])
	}
	if !strings.Contains(lines[2], "← optimize (ok)") || !strings.Contains(lines[2], "{opt=2}") {
		t.Errorf("unexpected end line %q", lines[2])
	}
}

func TestStream_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	ctx := WithTracer(context.Background(), tr)
	Error(ctx, ScopeSession, "report", "boom")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["kind"] != "error" || got["detail"] != "boom" || got["scope"] != "session" {
		t.Fatalf("unexpected event %v", got)
	}
}

func TestRing_Wraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for i := range 5 {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopeDriver, Name: string(rune('a' + i))})
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 events, got %d", len(snap))
	}
	var names []string
	for _, ev := range snap {
		names = append(names, ev.Name)
	}
	if strings.Join(names, "") != "cde" {
		t.Fatalf("unexpected order %v", names)
	}
}

func TestMulti_FansOut(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(8, LevelDebug)
	m := NewMultiTracer(LevelDebug, NewStreamTracer(&buf, LevelDebug, FormatText), ring)
	m.Emit(&Event{Kind: KindPoint, Scope: ScopeDriver, Name: "x"})
	if len(m.Ring().Snapshot()) != 1 || buf.Len() == 0 {
		t.Fatal("expected event in both tracers")
	}
}

func TestNopAndNilContext(t *testing.T) {
	if FromContext(nil) != Nop { //nolint:staticcheck
		t.Fatal("nil context must yield Nop")
	}
	s := Begin(context.Background(), ScopeSession, "x")
	if d := s.End(""); d != 0 {
		t.Fatalf("inert span returned %v", d)
	}
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr != Nop {
		t.Fatalf("expected Nop for LevelOff, got %v %v", tr, err)
	}
}

func TestHeartbeat(t *testing.T) {
	ring := NewRingTracer(16, LevelSession)
	h := StartHeartbeat(ring, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(ring.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	if len(ring.Snapshot()) == 0 {
		t.Fatal("expected at least one heartbeat")
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatal("disabled tracer must not start a heartbeat")
	}
}
