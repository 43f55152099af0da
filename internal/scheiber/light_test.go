package scheiber

import (
	"sync"
	"testing"
	"time"
)

func newTestLight() (*DimmableLight, *[]int) {
	var mu sync.Mutex
	var sent []int
	send := func(slot int, brightness int) {
		mu.Lock()
		sent = append(sent, brightness)
		mu.Unlock()
	}
	l := newDimmableLight(7, 0, "s1", "light_s1", send, "bloc9_7_s1", NewTransitionEngine(), NewFlashController())
	return l, &sent
}

func TestSetBrightnessPostcondition(t *testing.T) {
	l, _ := newTestLight()
	l.SetBrightness(180)
	state, brightness := l.State()
	if brightness != 180 {
		t.Fatalf("brightness = %d, want 180", brightness)
	}
	if state != (180 > DimThreshold) {
		t.Fatalf("state = %v, want %v", state, 180 > DimThreshold)
	}
}

func TestSetBrightnessCancelsTransitionAndFlash(t *testing.T) {
	l, _ := newTestLight()
	if err := l.FadeTo(255, 500*time.Millisecond, "linear"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.trans.Active(l.key) {
		t.Fatalf("expected transition to be active")
	}
	l.SetBrightness(0)
	if l.trans.Active(l.key) {
		t.Fatalf("SetBrightness must cancel the active transition")
	}
}

func TestFlashAndTransitionMutualExclusion(t *testing.T) {
	l, _ := newTestLight()
	if err := l.FadeTo(255, 500*time.Millisecond, "linear"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Flash(50 * time.Millisecond)
	if l.trans.Active(l.key) {
		t.Fatalf("starting a flash must cancel any active transition")
	}
	if !l.flash.Active(l.key) {
		t.Fatalf("flash should be active")
	}

	time.Sleep(100 * time.Millisecond)
	if l.flash.Active(l.key) {
		t.Fatalf("flash should have completed")
	}
}

func TestFadeCancellationByImmediateOff(t *testing.T) {
	l, sent := newTestLight()
	if err := l.FadeTo(255, 5*time.Second, "linear"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	l.SetBrightness(0)

	countAtCancel := len(*sent)
	time.Sleep(100 * time.Millisecond)
	if len(*sent) != countAtCancel {
		t.Fatalf("stepper kept sending after cancellation: %d -> %d", countAtCancel, len(*sent))
	}

	last := (*sent)[len(*sent)-1]
	if last != 0 {
		t.Fatalf("final sent brightness = %d, want 0 (mode=0x00 OFF)", last)
	}
}

func TestEchoReconciliationDuringTransition(t *testing.T) {
	l, _ := newTestLight()
	// internal state s1=(true,255), simulated as the target of an active transition.
	if err := l.FadeTo(255, 5*time.Second, "linear"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Echo reports state=ON, brightness byte=0 (threshold-snap echo).
	l.ingest(true, 0)

	state, brightness := l.State()
	if !state || brightness != 255 {
		t.Fatalf("got (%v,%d), want (true,255) — echo must not clobber the transition target", state, brightness)
	}
}

func TestIngestNoChangeNoNotify(t *testing.T) {
	l, _ := newTestLight()
	l.setFromPersisted(true, 76)

	var notifications int
	l.Subscribe(func(string, any) { notifications++ })

	l.ingest(true, 76)
	if notifications != 0 {
		t.Fatalf("no-op ingest must not notify observers, got %d notifications", notifications)
	}

	l.ingest(true, 80)
	if notifications != 1 {
		t.Fatalf("expected exactly one notification for the brightness change, got %d", notifications)
	}
}

func TestRestoreProducesZeroSends(t *testing.T) {
	l, sent := newTestLight()
	l.setFromPersisted(true, 180)
	if len(*sent) != 0 {
		t.Fatalf("restore must not send any CAN frames, got %d sends", len(*sent))
	}
	_, brightness := l.State()
	if brightness != 180 {
		t.Fatalf("brightness = %d, want 180", brightness)
	}
}
