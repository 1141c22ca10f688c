// Package mqtt provides MQTT client connectivity for the Sentinel core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the sensor bus: door/window/motion bridges publish zone state
// under sentinel/zone/{id}/state, the core publishes the authoritative
// alarm state (retained) and an event stream, and arming actions go out
// as commands to actuator bridges.
//
//	Sensor bridges → MQTT Broker → Sentinel core → lock/siren bridges
//
// The broker is optional: with mqtt.enabled=false the core runs on its
// HTTP API alone.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllZoneStates(), 1,
//	    func(topic string, payload []byte) error {
//	        // evaluate the trip
//	        return nil
//	    })
package mqtt
