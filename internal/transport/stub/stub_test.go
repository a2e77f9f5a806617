package stub

import (
	"testing"
	"time"
)

type recordingHandler struct {
	dpReads  []uint32
	dpWrites map[uint32]uint32
	failReg  uint32
	failErr  error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{dpWrites: make(map[uint32]uint32)}
}

func (h *recordingHandler) HandleDPRead(reg uint32) (uint32, error) {
	h.dpReads = append(h.dpReads, reg)
	if h.failErr != nil && reg == h.failReg {
		return 0, h.failErr
	}
	return h.dpWrites[reg], nil
}

func (h *recordingHandler) HandleDPWrite(reg uint32, val uint32) error {
	h.dpWrites[reg] = val
	return nil
}

func (h *recordingHandler) HandleAPRead(apNum uint8, reg uint32) (uint32, error) { return 0, nil }
func (h *recordingHandler) HandleAPWrite(apNum uint8, reg uint32, val uint32) error { return nil }

func TestQueuedReadsNotVisibleBeforeRun(t *testing.T) {
	h := newRecordingHandler()
	h.dpWrites[0x04] = 0xABCD1234
	tr := New(h)

	var out uint32
	if err := tr.QueueDPRead(0x04, &out); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	if out != 0 {
		t.Fatalf("expected destination untouched before Run, got %#x", out)
	}
	if err := tr.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != 0xABCD1234 {
		t.Fatalf("expected %#x after run, got %#x", 0xABCD1234, out)
	}
}

func TestRunSurfacesFirstFailure(t *testing.T) {
	h := newRecordingHandler()
	h.failReg = 0x04
	h.failErr = errWAIT
	tr := New(h)

	var a, b uint32
	_ = tr.QueueDPRead(0x04, &a)
	_ = tr.QueueDPRead(0x08, &b)

	if err := tr.Run(); err == nil {
		t.Fatal("expected Run to fail")
	}
	if tr.Pending() != 0 {
		t.Fatalf("expected journal drained after failure, got %d pending", tr.Pending())
	}
}

func TestPollRegisterRetriesUntilMatch(t *testing.T) {
	h := newRecordingHandler()
	tr := New(h)

	go func() {
		time.Sleep(5 * time.Millisecond)
		h.dpWrites[0x04] = 0x1
	}()

	if err := tr.PollRegister(0x04, 0x1, 0x1, 200*time.Millisecond); err != nil {
		t.Fatalf("expected poll to succeed, got %v", err)
	}
}

func TestPollRegisterTimesOut(t *testing.T) {
	h := newRecordingHandler()
	tr := New(h)

	err := tr.PollRegister(0x04, 0x1, 0x1, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

var errWAIT = &testError{"WAIT"}

type testError struct{ s string }

func (e *testError) Error() string { return e.s }
