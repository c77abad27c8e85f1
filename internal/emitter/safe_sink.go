package emitter

import "go.uber.org/zap"

// SafeSink wraps another Sink and recovers any panic from it, logging at
// warn level instead. Emission must never fail record processing, and a
// misbehaving sink implementation is exactly the kind of failure that
// policy exists for.
type SafeSink struct {
	inner  Sink
	logger *zap.Logger
}

func NewSafeSink(inner Sink, logger *zap.Logger) *SafeSink {
	return &SafeSink{inner: inner, logger: logger.With(zap.String("component", "emitter"))}
}

func (s *SafeSink) Counter(name string, value float64, tags Tags) {
	defer s.recoverFrom("counter", name)
	s.inner.Counter(name, value, tags)
}

func (s *SafeSink) Gauge(name string, value float64, tags Tags) {
	defer s.recoverFrom("gauge", name)
	s.inner.Gauge(name, value, tags)
}

func (s *SafeSink) Histogram(name string, value float64, tags Tags) {
	defer s.recoverFrom("histogram", name)
	s.inner.Histogram(name, value, tags)
}

func (s *SafeSink) Event(title, body, severity string, tags Tags) {
	defer s.recoverFrom("event", title)
	s.inner.Event(title, body, severity, tags)
}

func (s *SafeSink) recoverFrom(kind, name string) {
	if r := recover(); r != nil {
		s.logger.Warn("sink emission failed, dropped", zap.String("kind", kind), zap.String("name", name), zap.Any("panic", r))
	}
}
