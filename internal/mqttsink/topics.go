package mqttsink

import "fmt"

// Topics builds scheiberd's MQTT topic hierarchy. A flat, entity-scoped
// scheme, separate from Home Assistant's own discovery namespace.
type Topics struct {
	Prefix string // e.g. "scheiber"
}

// State is where an entity's confirmed (hardware-echoed) value is
// published, retained.
//
// Example: scheiber/state/light_saloon
func (t Topics) State(entityID string) string {
	return fmt.Sprintf("%s/state/%s", t.Prefix, entityID)
}

// Command is where incoming requests for an entity are received.
//
// Example: scheiber/command/light_saloon
func (t Topics) Command(entityID string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix, entityID)
}

// AllCommands is the wildcard subscription pattern covering every entity's
// command topic.
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", t.Prefix)
}

// BridgeStatus is the LWT/online-status topic for the gateway process
// itself.
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.Prefix)
}

// DiscoveryConfig is the Home Assistant MQTT discovery config topic for one
// entity.
//
// Example: homeassistant/light/light_saloon/config
func (t Topics) DiscoveryConfig(component, entityID string) string {
	return fmt.Sprintf("homeassistant/%s/%s/config", component, entityID)
}
