package scheiber

import "time"

// DimmableLight is a brightness-capable output. It composes the shared
// outputCore with a key into the owning device's TransitionEngine and
// FlashController.
type DimmableLight struct {
	outputCore
	key   string
	trans *TransitionEngine
	flash *FlashController
}

func newDimmableLight(deviceID, slot int, name, entityID string, send SendFunc, key string, trans *TransitionEngine, flash *FlashController) *DimmableLight {
	return &DimmableLight{
		outputCore: newOutputCore(deviceID, slot, name, entityID, send),
		key:        key,
		trans:      trans,
		flash:      flash,
	}
}

// State returns the last-known (state, brightness).
func (l *DimmableLight) State() (state bool, brightness int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.brightness
}

// Set mirrors the original light.set dispatch: flash takes priority over
// fade, fade over an explicit brightness, and a bare on/off falls back to
// the previous brightness (or full ON if there was none).
func (l *DimmableLight) Set(on bool, brightness *int, flashDuration time.Duration, fadeTo *int, fadeDuration time.Duration, fadeEasing string) error {
	if flashDuration > 0 {
		l.Flash(flashDuration)
		return nil
	}
	if fadeTo != nil {
		return l.FadeTo(*fadeTo, fadeDuration, fadeEasing)
	}
	if brightness != nil {
		l.SetBrightness(*brightness)
		return nil
	}
	if on {
		_, prev := l.State()
		if prev == 0 {
			prev = 255
		}
		l.SetBrightness(prev)
		return nil
	}
	l.SetBrightness(0)
	return nil
}

// SetBrightness is the immediate command path: it cancels any active
// transition or flash, clamps to [0,255], derives state from the dim
// threshold, sends the command, and always notifies (state before
// brightness) — this is an explicit command, not a hardware-state ingest,
// so there's no change-detection gate.
func (l *DimmableLight) SetBrightness(brightness int) {
	l.trans.Cancel(l.key)
	l.flash.Cancel(l.key)
	l.setBrightnessInternal(brightness, true)
}

func (l *DimmableLight) setBrightnessInternal(brightness int, notify bool) {
	brightness = clampByte(brightness, 0, 255)
	state := brightness > DimThreshold

	l.mu.Lock()
	l.state = state
	l.brightness = brightness
	l.mu.Unlock()

	l.send(l.slot, brightness)

	if notify {
		l.notify(propChange{"state", state}, propChange{"brightness", brightness})
	}
}

// FadeTo starts a smooth transition to target over duration using the named
// easing function (DefaultEasing if empty). Per spec §4.4/§9, the target
// brightness is committed to the Output immediately — before the first
// frame is even sent — so that the echo-reconciliation rule in ingest can
// recognize the threshold-snap echo and not clobber it. Stepping sends are
// CAN-only: intermediate values do not renotify observers, matching the
// original transition controller's notify=False stepping.
func (l *DimmableLight) FadeTo(target int, duration time.Duration, easing string) error {
	if easing == "" {
		easing = DefaultEasing
	}

	l.flash.Cancel(l.key)

	_, start := l.State()
	target = clampByte(target, 0, 255)

	state := target > DimThreshold
	l.mu.Lock()
	l.state = state
	l.brightness = target
	l.mu.Unlock()
	l.notify(propChange{"state", state}, propChange{"brightness", target})

	return l.trans.Start(l.key, start, target, duration, easing, func(value int) {
		l.send(l.slot, value)
	})
}

// Flash briefly sends ON at full brightness, then restores whatever
// (state, brightness) was current before the flash — without touching
// Output state directly, so a cancelled flash leaves the hardware at
// whatever was last sent.
func (l *DimmableLight) Flash(duration time.Duration) {
	l.trans.Cancel(l.key)

	prevState, prevBrightness := l.State()

	l.flash.Start(l.key, duration,
		func() { l.send(l.slot, 255) },
		func() {
			restoreBrightness := 0
			if prevState {
				restoreBrightness = prevBrightness
			}
			l.send(l.slot, restoreBrightness)
		},
	)
}

// ingest applies a decoded hardware (state, brightness) pair, reconciling
// it against any in-flight transition per spec §4.6: if a transition is
// active, the echo reports brightness=0 with state=ON, and our internal
// brightness is already above the dim threshold, the echo is the
// threshold-snap command's own reflection — keep our internal value instead
// of clobbering it. Observers are notified (state before brightness) only
// on an actual change.
func (l *DimmableLight) ingest(state bool, brightness int) bool {
	l.mu.Lock()
	if l.trans.Active(l.key) && brightness == 0 && state && l.brightness > DimThreshold {
		state = l.state
		brightness = l.brightness
	}

	stateChanged := l.state != state
	brightnessChanged := l.brightness != brightness
	l.state = state
	l.brightness = brightness
	l.mu.Unlock()

	var changes []propChange
	if stateChanged {
		changes = append(changes, propChange{"state", state})
	}
	if brightnessChanged {
		changes = append(changes, propChange{"brightness", brightness})
	}
	if len(changes) > 0 {
		l.notify(changes...)
	}
	return len(changes) > 0
}

// setFromPersisted restores (state, brightness) without touching the bus.
func (l *DimmableLight) setFromPersisted(state bool, brightness int) {
	l.mu.Lock()
	l.state = state
	l.brightness = brightness
	l.mu.Unlock()
}

func (l *DimmableLight) snapshotState() (bool, int) {
	return l.State()
}
