// Package metrics exposes Prometheus collectors for the lighting controllers.
//
// Collectors live in their own registry so that tests and multiple
// instances never collide on the global default registerer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// States reported on the controller_state gauge.
var States = []string{"idle", "disabled", "active_timer", "active_stay_on"}

// Collectors holds every metric the service exports.
type Collectors struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	state          *prometheus.GaugeVec
	timerArms      *prometheus.CounterVec
	workingDelay   *prometheus.GaugeVec
	delay          *prometheus.HistogramVec
	commandErrors  *prometheus.CounterVec
	sensorMessages *prometheus.CounterVec
	brokerUp       prometheus.Gauge
}

// New creates and registers the collectors under namespace.
// Go runtime and process collectors are registered alongside.
func New(namespace string) *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed controller state transitions.",
		}, []string{"controller", "from", "to", "trigger"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "controller_state",
			Help:      "1 for the state each controller is currently in, 0 otherwise.",
		}, []string{"controller", "state"}),
		timerArms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_arms_total",
			Help:      "Timer arms, including backoff re-arms.",
		}, []string{"controller"}),
		workingDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "working_delay_seconds",
			Help:      "Delay the live timer was armed with.",
		}, []string{"controller"}),
		delay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "armed_delay_seconds",
			Help:      "Distribution of armed timer delays.",
			Buckets:   []float64{30, 60, 120, 180, 240, 300, 600, 1200},
		}, []string{"controller"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Actuator commands or status publications that failed.",
		}, []string{"controller", "entity"}),
		sensorMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_updates_total",
			Help:      "Entity state updates received by source.",
		}, []string{"source"}),
		brokerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT broker connection is up.",
		}),
	}

	c.registry.MustRegister(
		c.transitions,
		c.state,
		c.timerArms,
		c.workingDelay,
		c.delay,
		c.commandErrors,
		c.sensorMessages,
		c.brokerUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// TransitionObserved counts a transition and moves the state gauge.
func (c *Collectors) TransitionObserved(controller, from, to, trigger string) {
	c.transitions.WithLabelValues(controller, from, to, trigger).Inc()
	c.SetState(controller, to)
}

// SetState marks state as current for controller.
func (c *Collectors) SetState(controller, state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		c.state.WithLabelValues(controller, s).Set(v)
	}
}

// TimerArmed records one timer arm.
func (c *Collectors) TimerArmed(controller string, delaySeconds float64, _ int) {
	c.timerArms.WithLabelValues(controller).Inc()
	c.workingDelay.WithLabelValues(controller).Set(delaySeconds)
	c.delay.WithLabelValues(controller).Observe(delaySeconds)
}

// CommandFailed counts a failed command or status publication.
func (c *Collectors) CommandFailed(controller, entity string) {
	c.commandErrors.WithLabelValues(controller, entity).Inc()
}

// EntityUpdate counts an inbound entity state message.
func (c *Collectors) EntityUpdate(source string) {
	c.sensorMessages.WithLabelValues(source).Inc()
}

// SetBrokerConnected records the MQTT connection state.
func (c *Collectors) SetBrokerConnected(up bool) {
	if up {
		c.brokerUp.Set(1)
		return
	}
	c.brokerUp.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
