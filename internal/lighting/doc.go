// Package lighting implements motion and occupancy driven lighting control
// for Gray Logic Motion.
//
// Each configured controller watches a set of sensor entities and switches a
// set of control entities (lights) on when motion is seen, keeping them on
// while motion continues and switching them off once a timer expires. Override
// entities pause a controller entirely.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   Manager (manager.go)                    │
//	│  Subscribes entity changes and events, owns controllers   │
//	│  ┌───────────────┐    ┌────────────────────────────────┐ │
//	│  │ Event router  │───▶│  Controller (controller.go)     │ │
//	│  │ (router.go)   │    │  1. snapshot entity states      │ │
//	│  └───────────────┘    │  2. lock, evaluate Transition   │ │
//	│                       │  3. entry/exit actions, timer   │ │
//	│                       │  4. unlock, dispatch effects    │ │
//	│                       └────────────────────────────────┘ │
//	│        │                         │                        │
//	│        ▼                         ▼                        │
//	│  Matcher (vocabulary.go)   backoffTimer (timer.go)        │
//	│  Guards  (guards.go)       Resolver (params.go)           │
//	└──────────────────────────────────────────────────────────┘
//
// # State Machine
//
// The controller state is one of idle, disabled, active_timer and
// active_stay_on. The two active states share entry and exit actions. The
// transition table lives in fsm.go as a pure function over a closed set of
// states and triggers, so it can be tested without a platform.
//
// # Timer
//
// Every arm of the timer bumps a generation counter. An expiry callback that
// carries an old generation is ignored, so at most one timer can ever drive a
// transition. With backoff enabled, each retrigger while active multiplies the
// delay by the backoff factor up to backoff_max.
//
// # Thread Safety
//
// A Controller serialises trigger processing behind its own mutex. Commands,
// status publication and history are dispatched after the FSM lock is
// released, in arrival order. Controllers share no mutable state.
//
// # Usage
//
//	settings, err := lighting.NewSettings(cfg, site.Location())
//	if err != nil {
//	    return err
//	}
//	ctrl := lighting.NewController(settings, lighting.Deps{Platform: plat, Logger: log})
//
//	mgr := lighting.NewManager(plat, log)
//	mgr.Add(ctrl)
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
package lighting
