package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BotMetrics содержит метрики обработки сообщений и склада.
type BotMetrics struct {
	// Счётчики операций
	messagesHandled *prometheus.CounterVec
	stepTransitions *prometheus.CounterVec
	dispenseSuccess prometheus.Counter
	dispenseEmpty   prometheus.Counter
	approvals       *prometheus.CounterVec
	deliveries      prometheus.Counter
	outboxEvents    prometheus.Counter

	// Гистограмма времени обработки сообщения
	handleDuration prometheus.Histogram

	// Gauge активных сессий
	activeSessions prometheus.Gauge
}

// NewBotMetrics создаёт новый экземпляр метрик бота.
func NewBotMetrics() *BotMetrics {
	return newBotMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newBotMetricsWithRegisterer(registerer prometheus.Registerer) *BotMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &BotMetrics{
		messagesHandled: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storebot_messages_handled_total",
			Help: "Total number of inbound messages handled",
		}, []string{"kind"}),
		stepTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storebot_step_transitions_total",
			Help: "Total number of session step transitions",
		}, []string{"to"}),
		dispenseSuccess: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_dispense_success_total",
			Help: "Total number of credentials dispensed",
		}),
		dispenseEmpty: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_dispense_empty_total",
			Help: "Total number of dispense attempts on empty queues",
		}),
		approvals: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storebot_approvals_total",
			Help: "Total number of admin approvals by outcome",
		}, []string{"outcome"}),
		deliveries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_deliveries_total",
			Help: "Total number of credential deliveries sent to customers",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storebot_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		handleDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storebot_message_handle_duration_seconds",
			Help:    "Duration of inbound message handling in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		activeSessions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storebot_active_sessions",
			Help: "Number of currently active customer sessions",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordMessageHandled увеличивает счётчик обработанных сообщений.
// kind: customer | admin | global.
func (m *BotMetrics) RecordMessageHandled(kind string) {
	m.messagesHandled.WithLabelValues(kind).Inc()
}

// RecordStepTransition фиксирует переход сессии на новый шаг.
func (m *BotMetrics) RecordStepTransition(to string) {
	m.stepTransitions.WithLabelValues(to).Inc()
}

// RecordDispenseSuccess увеличивает счётчик успешных выдач.
func (m *BotMetrics) RecordDispenseSuccess() {
	m.dispenseSuccess.Inc()
}

// RecordDispenseEmpty увеличивает счётчик выдач при пустой очереди.
func (m *BotMetrics) RecordDispenseEmpty() {
	m.dispenseEmpty.Inc()
}

// RecordApproval фиксирует результат /approve: approved | failed.
func (m *BotMetrics) RecordApproval(outcome string) {
	m.approvals.WithLabelValues(outcome).Inc()
}

// RecordDelivery увеличивает счётчик доставок учётных данных.
func (m *BotMetrics) RecordDelivery() {
	m.deliveries.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *BotMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordHandleDuration записывает время обработки сообщения.
func (m *BotMetrics) RecordHandleDuration(duration time.Duration) {
	m.handleDuration.Observe(duration.Seconds())
}

// SetActiveSessions выставляет число активных сессий.
func (m *BotMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}
