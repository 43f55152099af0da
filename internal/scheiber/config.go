package scheiber

import "fmt"

// Configuration is the immutable input to system construction: a list of
// device descriptors. It is produced by internal/config's YAML loader and
// never mutated after NewSystem consumes it (spec §3).
type Configuration struct {
	Devices []DeviceConfig
}

// DeviceConfig describes one physical Scheiber unit.
type DeviceConfig struct {
	Type  string // "bloc9" or "bloc7"
	BusID int    // 0-15

	// Bloc9 fields.
	Lights   map[string]LightConfig  // slot ("s1".."s6") -> light
	Switches map[string]SwitchConfig // slot -> switch

	// Bloc7 fields.
	Voltages []SensorConfig
	Levels   []SensorConfig
}

// LightConfig describes one DimmableLight output.
type LightConfig struct {
	Name              string
	EntityID          string
	InitialBrightness *int // nil unless explicitly configured
}

// SwitchConfig describes one Switch output.
type SwitchConfig struct {
	Name     string
	EntityID string
}

// SensorConfig describes one Bloc7 analog-input sensor.
type SensorConfig struct {
	Name      string
	EntityID  string
	Pattern   uint32
	Mask      uint32
	StartByte int
	BitLength int
	Endian    string // "little" or "big"
	Scale     float64
}

var slotIndex = map[string]int{
	"s1": 0, "s2": 1, "s3": 2, "s4": 3, "s5": 4, "s6": 5,
}

// Validate checks the structural invariants spec §6 lists: valid slot
// names, unique (type, bus_id) pairs, unique entity ids, and no slot
// assigned to both a light and a switch on the same device. It returns one
// of the Configuration error sentinels, fatal to system construction.
func (c Configuration) Validate() error {
	seenDevice := make(map[string]bool)
	seenEntity := make(map[string]bool)

	for _, d := range c.Devices {
		if d.Type != "bloc9" && d.Type != "bloc7" {
			return fmt.Errorf("%w: %q", ErrUnknownDeviceType, d.Type)
		}
		if d.BusID < 0 || d.BusID > 15 {
			return fmt.Errorf("%w: bus_id %d out of range 0-15", ErrInvalidSlot, d.BusID)
		}

		key := fmt.Sprintf("%s_%d", d.Type, d.BusID)
		if seenDevice[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateDevice, key)
		}
		seenDevice[key] = true

		for slot, light := range d.Lights {
			if _, ok := slotIndex[slot]; !ok {
				return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
			}
			if _, conflict := d.Switches[slot]; conflict {
				return fmt.Errorf("%w: %s slot %s", ErrSlotConflict, key, slot)
			}
			if err := checkEntityID(seenEntity, light.EntityID); err != nil {
				return err
			}
		}
		for slot, sw := range d.Switches {
			if _, ok := slotIndex[slot]; !ok {
				return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
			}
			if err := checkEntityID(seenEntity, sw.EntityID); err != nil {
				return err
			}
		}
		for _, s := range d.Voltages {
			if err := checkEntityID(seenEntity, s.EntityID); err != nil {
				return err
			}
		}
		for _, s := range d.Levels {
			if err := checkEntityID(seenEntity, s.EntityID); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkEntityID(seen map[string]bool, id string) error {
	if id == "" {
		return nil
	}
	if seen[id] {
		return fmt.Errorf("%w: %s", ErrDuplicateEntityID, id)
	}
	seen[id] = true
	return nil
}
