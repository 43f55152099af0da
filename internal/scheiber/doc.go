// Package scheiber implements the core Scheiber CAN protocol gateway: frame
// matching, payload codec, per-output state with transitions and flash
// effects, the Bloc9/Bloc7 device families, and the top-level System that
// ties a CAN transport to persisted state.
//
// Nothing in this package touches MQTT, YAML, or the CAN socket directly —
// those are the collaborators in internal/mqttsink, internal/config, and
// internal/canbus.
package scheiber
