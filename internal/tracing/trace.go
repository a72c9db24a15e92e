package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tsyne-dev/tsyne-host/internal/shared/id"
)

// spanBuffer bounds how many completed spans may wait for the collector.
const spanBuffer = 1000

// Span records one handled request.
type Span struct {
	Request  id.RequestID
	Name     string // route template, or raw path for unmatched routes
	Method   string
	Path     string
	Status   int
	Duration time.Duration
	Err      error
}

// Tracer turns request spans into structured log lines. Spans ride a
// buffered channel to a collector goroutine so handlers never block on
// span logging.
type Tracer struct {
	service string
	logger  *zap.Logger

	mu     sync.RWMutex
	spans  chan *Span // Guarded by mu for send-vs-close
	closed bool
	done   chan struct{}
}

// New creates a tracer and starts its collector.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, spanBuffer),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// Submit hands a completed span to the collector. Spans are dropped when
// the collector is behind; losing one beats stalling a request.
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("request_id", span.Request.String()))
	}
}

// Close stops the collector after draining queued spans. Safe to call
// more than once.
func (t *Tracer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.spans)
	t.mu.Unlock()

	<-t.done
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.log(span)
	}
}

func (t *Tracer) log(s *Span) {
	fields := []zap.Field{
		zap.String("request_id", s.Request.String()),
		zap.String("route", s.Name),
		zap.String("method", s.Method),
		zap.String("path", s.Path),
		zap.Int("status", s.Status),
		zap.Duration("duration", s.Duration),
		zap.String("service", t.service),
	}

	if s.Err != nil {
		t.logger.Error("request completed with error", append(fields, zap.Error(s.Err))...)
		return
	}
	t.logger.Info("request completed", fields...)
}

type contextKey struct{}

// WithRequest stamps a request identifier onto a context.
func WithRequest(ctx context.Context, reqID id.RequestID) context.Context {
	return context.WithValue(ctx, contextKey{}, reqID)
}

// RequestFrom returns the request identifier carried by ctx, if any.
func RequestFrom(ctx context.Context) id.RequestID {
	reqID, _ := ctx.Value(contextKey{}).(id.RequestID)
	return reqID
}
