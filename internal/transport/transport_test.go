package transport

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/wsbridge/api"
	"github.com/momentics/wsbridge/pool"
)

// recordingHandler copies frames out of pooled memory as they arrive.
type recordingHandler struct {
	frames chan api.Frame
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{frames: make(chan api.Frame, 64)}
}

func (h *recordingHandler) HandleFrame(f api.Frame) {
	if d, ok := f.(api.DataFrame); ok {
		d.Payload = append([]byte(nil), d.Payload...)
		f = d
	}
	h.frames <- f
}

func (h *recordingHandler) next(t *testing.T) api.Frame {
	t.Helper()
	select {
	case f := <-h.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDispatcherDeliversStreamFramesInOrder(t *testing.T) {
	slab, err := pool.NewBufferSlab(1024, 64)
	if err != nil {
		t.Fatal(err)
	}
	ep := NewRingEndpoint("ws-in", 16, slab)
	handler := newRecordingHandler()
	d := NewDispatcher(ep, func() api.StreamHandler { return handler }, zerolog.Nop())
	d.Start()
	defer d.Stop()

	if err := ep.DoBegin(7, 0, 42, nil); err != nil {
		t.Fatal(err)
	}
	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, p := range payloads {
		if err := ep.DoData(7, p, 0x82); err != nil {
			t.Fatal(err)
		}
	}
	if err := ep.DoEnd(7); err != nil {
		t.Fatal(err)
	}

	if _, ok := handler.next(t).(api.BeginFrame); !ok {
		t.Fatal("first frame is not Begin")
	}
	for i, want := range payloads {
		data, ok := handler.next(t).(api.DataFrame)
		if !ok {
			t.Fatalf("frame %d is not Data", i+1)
		}
		if !bytes.Equal(data.Payload, want) {
			t.Errorf("payload %d = %q, want %q", i, data.Payload, want)
		}
	}
	if _, ok := handler.next(t).(api.EndFrame); !ok {
		t.Fatal("last frame is not End")
	}
}

func TestSlabSlotsReturnAfterDispatch(t *testing.T) {
	slab, err := pool.NewBufferSlab(256, 16)
	if err != nil {
		t.Fatal(err)
	}
	ep := NewRingEndpoint("ws-in", 16, slab)
	handler := newRecordingHandler()
	d := NewDispatcher(ep, func() api.StreamHandler { return handler }, zerolog.Nop())
	d.Start()
	defer d.Stop()

	free := slab.FreeSlots()
	if err := ep.DoBegin(7, 0, 42, nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 32; i++ {
		if err := ep.DoData(7, []byte("payload"), 0x82); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 33; i++ {
		handler.next(t)
	}
	eventually(t, func() bool { return ep.pending() == 0 && slab.FreeSlots() == free },
		"slab slots not released after dispatch")
}

func TestOversizedAndOverflowingDataFallsBackToHeap(t *testing.T) {
	// One-slot slab of 16 bytes: the second small payload and any payload
	// larger than a slot must be heap-copied, never rejected.
	slab, err := pool.NewBufferSlab(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	ep := NewRingEndpoint("ws-in", 16, slab)

	if err := ep.DoData(7, []byte("first"), 0x82); err != nil {
		t.Fatal(err)
	}
	if err := ep.DoData(7, []byte("second"), 0x82); err != nil {
		t.Fatal(err)
	}
	big := bytes.Repeat([]byte("x"), 64)
	if err := ep.DoData(7, big, 0x82); err != nil {
		t.Fatal(err)
	}

	for i, want := range [][]byte{[]byte("first"), []byte("second"), big} {
		it, ok := ep.poll()
		if !ok {
			t.Fatalf("poll %d failed", i)
		}
		data := it.frame.(api.DataFrame)
		if !bytes.Equal(data.Payload, want) {
			t.Errorf("payload %d = %q, want %q", i, data.Payload, want)
		}
		ep.releaseItem(it)
	}
	if slab.FreeSlots() != 1 {
		t.Errorf("slab has %d free slots, want 1", slab.FreeSlots())
	}
}

func TestThrottleBypassesFramePath(t *testing.T) {
	ep := NewRingEndpoint("http-out", 16, nil)
	var got []api.Frame
	ep.AddThrottle(9, func(f api.Frame) { got = append(got, f) })

	if err := ep.DoWindow(9, 100); err != nil {
		t.Fatal(err)
	}
	if err := ep.DoReset(9); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("throttle received %d events, want 2", len(got))
	}
	if w, ok := got[0].(api.WindowFrame); !ok || w.Update != 100 {
		t.Errorf("first event %+v, want Window(100)", got[0])
	}
	if _, ok := got[1].(api.ResetFrame); !ok {
		t.Errorf("second event %+v, want Reset", got[1])
	}
	if ep.pending() != 0 {
		t.Errorf("frame path has %d pending frames, want 0", ep.pending())
	}

	ep.RemoveThrottle(9)
	if err := ep.DoWindow(9, 50); err != nil {
		t.Fatal(err)
	}
	if ep.pending() != 1 {
		t.Error("window without throttle must travel the frame path")
	}
}

func TestUnknownStreamIsReset(t *testing.T) {
	ep := NewRingEndpoint("ws-in", 16, nil)
	handler := newRecordingHandler()
	d := NewDispatcher(ep, func() api.StreamHandler { return handler }, zerolog.Nop())

	resets := make(chan uint64, 1)
	ep.AddThrottle(3, func(f api.Frame) {
		if r, ok := f.(api.ResetFrame); ok {
			resets <- r.ID
		}
	})

	d.Start()
	defer d.Stop()

	// Data without a preceding Begin.
	if err := ep.DoData(3, []byte("orphan"), 0x82); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-resets:
		if id != 3 {
			t.Errorf("reset stream %d, want 3", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reset")
	}
	if len(handler.frames) != 0 {
		t.Error("orphan frame must not reach a handler")
	}
}

func TestOverflowPreservesOrder(t *testing.T) {
	ep := NewRingEndpoint("ws-in", 2, nil)
	const n = 50
	for i := 0; i < n; i++ {
		if err := ep.DoWindow(uint64(i), i); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < n; i++ {
		it, ok := ep.poll()
		if !ok {
			t.Fatalf("poll %d failed with %d pending", i, ep.pending())
		}
		w := it.frame.(api.WindowFrame)
		if w.Update != i {
			t.Fatalf("frame %d out of order: got update %d", i, w.Update)
		}
	}
}

func TestClosedEndpointRefusesFrames(t *testing.T) {
	ep := NewRingEndpoint("ws-in", 4, nil)
	ep.Close()
	if err := ep.DoData(1, []byte("x"), 0x82); err != api.ErrEndpointClosed {
		t.Errorf("got %v, want ErrEndpointClosed", err)
	}
	if err := ep.DoEnd(1); err != api.ErrEndpointClosed {
		t.Errorf("got %v, want ErrEndpointClosed", err)
	}
}
