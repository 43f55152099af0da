package scheiber

import "sync"

// SendFunc hands a slot's desired brightness to the owning device, which
// encodes it into a CAN command frame; the on/off mode follows from the
// brightness through threshold snapping. It is injected into every Output so
// that Output code never depends on the transport or the device directly.
type SendFunc func(slot int, brightness int)

// Observer is notified of a property change on an Output. Delivery is
// synchronous, on whatever goroutine performed the change, and the observer
// list is snapshotted under the output's mutex before observers run
// unlocked — so a slow or re-entrant observer cannot deadlock the output.
type Observer func(property string, value any)

// outputCore is the state cell shared by Switch and DimmableLight: an
// owning device id, a slot (0-5), names, current (state, brightness), and
// an observer fan-out list.
type outputCore struct {
	deviceID int
	slot     int
	name     string
	entityID string
	send     SendFunc

	mu         sync.Mutex
	state      bool
	brightness int
	observers  []Observer
}

func newOutputCore(deviceID, slot int, name, entityID string, send SendFunc) outputCore {
	return outputCore{
		deviceID: deviceID,
		slot:     slot,
		name:     name,
		entityID: entityID,
		send:     send,
	}
}

// Subscribe registers an observer. Subscribe/unsubscribeAll/notify are safe
// for concurrent use.
func (o *outputCore) Subscribe(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// unsubscribeAll removes every registered observer. There is no removal of
// a single observer: Observer is a plain func value and cannot be compared.
// Most callers (the MQTT sink) subscribe once per Output for the process
// lifetime and never unsubscribe.
func (o *outputCore) unsubscribeAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = nil
}

// propChange is one (property, value) pair to deliver to observers.
type propChange struct {
	name  string
	value any
}

// notify snapshots the observer list under the mutex and then invokes every
// observer, unlocked, for every change in order — so a slow or re-entrant
// observer cannot block a concurrent state mutation, and notification order
// across properties (state before brightness) is preserved.
func (o *outputCore) notify(changes ...propChange) {
	o.mu.Lock()
	snapshot := make([]Observer, len(o.observers))
	copy(snapshot, o.observers)
	o.mu.Unlock()

	for _, c := range changes {
		for _, obs := range snapshot {
			obs(c.name, c.value)
		}
	}
}

// Name returns the configured human-readable name.
func (o *outputCore) Name() string { return o.name }

// EntityID returns the stable entity identifier used by the MQTT sink.
func (o *outputCore) EntityID() string { return o.entityID }

// Slot returns the 0-5 slot index on the owning device.
func (o *outputCore) Slot() int { return o.slot }
