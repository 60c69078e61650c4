// Package platform connects lighting controllers to the outside world.
//
// Two implementations of lighting.Platform and lighting.Subscriber are
// provided:
//
//   - MQTT: talks to Gray Logic bridges over the broker. Entity states are
//     read from graylogic/state/{domain}/{object}, commands are sent on
//     graylogic/command/{domain}/{object}, controller statuses are retained
//     on graylogic/core/lightingsm/{name}/status and events arrive on
//     graylogic/core/event/{event}.
//   - Memory: keeps everything in process. Used by tests and dry runs.
//
// # State Cache
//
// The MQTT platform keeps the last known state of every entity seen on the
// state wildcard. Retained messages seed the cache without notifying
// subscribers, so a restart does not replay old motion. Subscribers are only
// notified when the state string actually changes.
//
// # Delivery
//
// Broker callbacks never run controller logic directly. Updates are queued
// and delivered by a single worker goroutine in arrival order, so a
// controller may publish commands from inside a callback.
package platform
