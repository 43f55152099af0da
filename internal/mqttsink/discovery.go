package mqttsink

import "encoding/json"

// lightDiscovery is the Home Assistant MQTT JSON-schema light config
// payload: https://www.home-assistant.io/integrations/light.mqtt/#json-schema
type lightDiscovery struct {
	Name            string   `json:"name"`
	UniqueID        string   `json:"unique_id"`
	Schema          string   `json:"schema"`
	StateTopic      string   `json:"state_topic"`
	CommandTopic    string   `json:"command_topic"`
	Brightness      bool     `json:"brightness"`
	BrightnessScale int      `json:"brightness_scale"`
	Device          haDevice `json:"device"`
}

// switchDiscovery is the Home Assistant MQTT switch config payload.
type switchDiscovery struct {
	Name         string   `json:"name"`
	UniqueID     string   `json:"unique_id"`
	StateTopic   string   `json:"state_topic"`
	CommandTopic string   `json:"command_topic"`
	PayloadOn    string   `json:"payload_on"`
	PayloadOff   string   `json:"payload_off"`
	Device       haDevice `json:"device"`
}

// sensorDiscovery is the Home Assistant MQTT sensor config payload.
type sensorDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	Device            haDevice `json:"device"`
}

// haDevice groups entities under a single device card in Home Assistant.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

func scheiberDevice(deviceKey, model string) haDevice {
	return haDevice{
		Identifiers:  []string{deviceKey},
		Name:         deviceKey,
		Manufacturer: "Scheiber",
		Model:        model,
	}
}

func marshalDiscovery(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		// Every discovery payload is built from static, well-formed fields;
		// a marshal failure here would be a programming error, not a
		// runtime condition callers should handle.
		panic(err)
	}
	return raw
}
