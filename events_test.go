package bedrud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newEventDispatcher(EventsConfig{Enabled: false}, &countingSink{})
	require.Nil(t, d)

	d.Emit(context.Background(), Event{Type: EventLogin})
	d.Close()
	require.Zero(t, d.Dropped())
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Type: EventRefresh})
	}
	d.Close()

	require.EqualValues(t, 50, sink.count.Load())
	d.Emit(context.Background(), Event{Type: EventRefresh})
	require.EqualValues(t, 50, sink.count.Load())
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: EventLogin})
	}
	require.Greater(t, d.Dropped(), uint64(0))

	close(sink.gate)
	d.Close()
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Type: EventLogin})
	d.Emit(context.Background(), Event{Type: EventLogin})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{Type: EventLogin})
	require.Less(t, time.Since(start), time.Second)
	require.Zero(t, d.Dropped())
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{Type: EventLogin, UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{Type: EventForcedLogout, Error: "session expired"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
	require.Equal(t, EventForcedLogout, ev.Type)
	require.Equal(t, "session expired", ev.Error)
	require.False(t, ev.Success)
}

func TestZerologSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Emit(context.Background(), Event{Type: EventLogin, UserID: "u1", Success: true, Metadata: map[string]string{"remember": "true"}})
	sink.Emit(context.Background(), Event{Type: EventRefresh, Error: "boom"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"level":"info"`)
	require.Contains(t, lines[0], `"remember":"true"`)
	require.Contains(t, lines[1], `"level":"warn"`)
	require.Contains(t, lines[1], `"error":"boom"`)
}

func TestManagerEmitsLifecycleEvents(t *testing.T) {
	sink := NewChannelSink(8)
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	m := newStubManager(stubAuth{err: errors.New("down")})
	m.events = d
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	_, err := m.Login(context.Background(), testEmail, testPassword, false)
	require.Error(t, err)
	require.NoError(t, m.Logout(context.Background()))

	login := nextEvent(t, sink)
	require.Equal(t, EventLogin, login.Type)
	require.False(t, login.Success)
	require.Equal(t, "down", login.Error)
	require.Equal(t, m.now(), login.Timestamp)

	logout := nextEvent(t, sink)
	require.Equal(t, EventLogout, logout.Type)
	require.True(t, logout.Success)
}
