package mqttsink

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eburi/scheiber-bridge/internal/scheiber"
)

// Sink adapts a Client to the core domain: it publishes retained state and
// Home Assistant discovery payloads for every configured entity, and turns
// incoming command-topic payloads into Output calls. It never writes state
// optimistically — state_topic is only ever refreshed from an Output
// observer, which only fires on a confirmed hardware echo (spec §4.3).
type Sink struct {
	client *Client
	topics Topics
	logger Logger
}

// NewSink wraps client for use against the given device set.
func NewSink(client *Client, prefix string, logger Logger) *Sink {
	return &Sink{client: client, topics: Topics{Prefix: prefix}, logger: logger}
}

// Attach subscribes one Output observer per configured entity and
// publishes each entity's discovery payload. Call once, after the System
// has been constructed and before System.Start so the first CAN echo
// already has a subscriber.
func (s *Sink) Attach(devices []scheiber.Device) error {
	for _, dev := range devices {
		switch d := dev.(type) {
		case *scheiber.Bloc9:
			if err := s.attachBloc9(d); err != nil {
				return err
			}
		case *scheiber.Bloc7:
			s.attachBloc7(d)
		}
	}
	return nil
}

func (s *Sink) attachBloc9(d *scheiber.Bloc9) error {
	for _, light := range d.Lights() {
		if light.EntityID() == "" {
			continue
		}
		s.publishLightDiscovery(d.Key(), light)
		light.Subscribe(func(string, any) { s.publishLightState(light) })
		if err := s.subscribeLightCommands(light); err != nil {
			return err
		}
	}
	for _, sw := range d.Switches() {
		if sw.EntityID() == "" {
			continue
		}
		s.publishSwitchDiscovery(d.Key(), sw)
		sw.Subscribe(func(string, any) { s.publishSwitchState(sw) })
		if err := s.subscribeSwitchCommands(sw); err != nil {
			return err
		}
	}
	return nil
}

type sensorLike interface {
	EntityID() string
	Name() string
	IsLevel() bool
	Value() (float64, bool)
	Subscribe(func(float64))
}

func (s *Sink) attachBloc7(d *scheiber.Bloc7) {
	for _, sensor := range d.Sensors() {
		sl := sensorLike(sensor)
		if sl.EntityID() == "" {
			continue
		}
		s.publishSensorDiscovery(d.Key(), sl)
		sl.Subscribe(func(float64) { s.publishSensorState(sl) })
	}
}

func (s *Sink) publishLightDiscovery(deviceKey string, light *scheiber.DimmableLight) {
	payload := lightDiscovery{
		Name:            light.Name(),
		UniqueID:        light.EntityID(),
		Schema:          "json",
		StateTopic:      s.topics.State(light.EntityID()),
		CommandTopic:    s.topics.Command(light.EntityID()),
		Brightness:      true,
		BrightnessScale: 255,
		Device:          scheiberDevice(deviceKey, "Bloc9"),
	}
	topic := s.topics.DiscoveryConfig("light", light.EntityID())
	if err := s.client.PublishRetained(topic, marshalDiscovery(payload)); err != nil {
		s.logError("publish light discovery failed", light.EntityID(), err)
	}
}

func (s *Sink) publishSwitchDiscovery(deviceKey string, sw *scheiber.Switch) {
	payload := switchDiscovery{
		Name:         sw.Name(),
		UniqueID:     sw.EntityID(),
		StateTopic:   s.topics.State(sw.EntityID()),
		CommandTopic: s.topics.Command(sw.EntityID()),
		PayloadOn:    "ON",
		PayloadOff:   "OFF",
		Device:       scheiberDevice(deviceKey, "Bloc9"),
	}
	topic := s.topics.DiscoveryConfig("switch", sw.EntityID())
	if err := s.client.PublishRetained(topic, marshalDiscovery(payload)); err != nil {
		s.logError("publish switch discovery failed", sw.EntityID(), err)
	}
}

func (s *Sink) publishSensorDiscovery(deviceKey string, sensor sensorLike) {
	unit, class := "V", "voltage"
	if sensor.IsLevel() {
		unit, class = "%", ""
	}
	payload := sensorDiscovery{
		Name:              sensor.Name(),
		UniqueID:          sensor.EntityID(),
		StateTopic:        s.topics.State(sensor.EntityID()),
		UnitOfMeasurement: unit,
		DeviceClass:       class,
		Device:            scheiberDevice(deviceKey, "Bloc7"),
	}
	topic := s.topics.DiscoveryConfig("sensor", sensor.EntityID())
	if err := s.client.PublishRetained(topic, marshalDiscovery(payload)); err != nil {
		s.logError("publish sensor discovery failed", sensor.EntityID(), err)
	}
}

func (s *Sink) publishLightState(light *scheiber.DimmableLight) {
	state, brightness := light.State()
	payload := map[string]any{"state": onOff(state), "brightness": brightness}
	raw, _ := json.Marshal(payload)
	if err := s.client.PublishRetained(s.topics.State(light.EntityID()), raw); err != nil {
		s.logError("publish light state failed", light.EntityID(), err)
	}
}

func (s *Sink) publishSwitchState(sw *scheiber.Switch) {
	payload := []byte(onOff(sw.State()))
	if err := s.client.PublishRetained(s.topics.State(sw.EntityID()), payload); err != nil {
		s.logError("publish switch state failed", sw.EntityID(), err)
	}
}

func (s *Sink) publishSensorState(sensor sensorLike) {
	value, ok := sensor.Value()
	if !ok {
		return
	}
	raw := []byte(fmt.Sprintf("%v", value))
	if err := s.client.PublishRetained(s.topics.State(sensor.EntityID()), raw); err != nil {
		s.logError("publish sensor state failed", sensor.EntityID(), err)
	}
}

// lightCommand is the Home Assistant MQTT JSON-schema light command
// payload: state/brightness/transition/flash, any subset present.
type lightCommand struct {
	State      *string  `json:"state"`
	Brightness *int     `json:"brightness"`
	Transition *float64 `json:"transition"`
	Flash      *float64 `json:"flash"`
}

func (s *Sink) subscribeLightCommands(light *scheiber.DimmableLight) error {
	topic := s.topics.Command(light.EntityID())
	return s.client.Subscribe(topic, byte(1), func(_ string, payload []byte) error {
		var cmd lightCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("invalid light command payload: %w", err)
		}

		on := true
		if cmd.State != nil {
			on = strings.EqualFold(*cmd.State, "ON")
		}

		var flashDuration time.Duration
		if cmd.Flash != nil {
			flashDuration = time.Duration(*cmd.Flash * float64(time.Second))
		}

		var fadeTo *int
		var fadeDuration time.Duration
		var brightness *int
		if cmd.Brightness != nil {
			if cmd.Transition != nil && *cmd.Transition > 0 {
				fadeTo = cmd.Brightness
				fadeDuration = time.Duration(*cmd.Transition * float64(time.Second))
			} else {
				brightness = cmd.Brightness
			}
		}

		return light.Set(on, brightness, flashDuration, fadeTo, fadeDuration, "")
	})
}

func (s *Sink) subscribeSwitchCommands(sw *scheiber.Switch) error {
	topic := s.topics.Command(sw.EntityID())
	return s.client.Subscribe(topic, byte(1), func(_ string, payload []byte) error {
		on := strings.EqualFold(strings.TrimSpace(string(payload)), "ON")
		sw.Set(on)
		return nil
	})
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func (s *Sink) logError(msg, entityID string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "entity_id", entityID, "error", err)
	}
}
