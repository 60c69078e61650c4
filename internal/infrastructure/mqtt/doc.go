// Package mqtt provides MQTT client connectivity for Gray Logic Motion.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic layout
//
// Entities are addressed as "domain.object" (light.hallway,
// binary_sensor.hall_motion) and map onto the flat Gray Logic scheme:
//
//	graylogic/state/{domain}/{object}      entity state, published by bridges
//	graylogic/command/{domain}/{object}    turn_on / turn_off commands
//	graylogic/core/lightingsm/{name}/status controller status (retained)
//	graylogic/core/event/{event}           events such as lightingsm-reset
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntityStates(), 1,
//	    func(msg mqtt.Message) error {
//	        log.Printf("%s = %s", msg.Topic, msg.Payload)
//	        return nil
//	    })
package mqtt
