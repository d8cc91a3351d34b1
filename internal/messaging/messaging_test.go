package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

var (
	tracingOnce sync.Once
	testTracer  trace.Tracer
)

// setupTracing installs one recording provider for the whole package. The
// package-level tracers bind to the first global provider they see.
func setupTracing(t *testing.T) trace.Tracer {
	t.Helper()
	tracingOnce.Do(func() {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		testTracer = tp.Tracer("test")
	})
	return testTracer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{}
	c := NewHeaderCarrier(&msg)

	c.Set("traceparent", "a")
	c.Set("tracestate", "b")
	c.Set("traceparent", "c")

	if got := c.Get("traceparent"); got != "c" {
		t.Errorf("expected overwritten value c, got %q", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
	if keys := c.Keys(); len(keys) != 2 {
		t.Errorf("expected 2 keys, got %v", keys)
	}
}

func TestProducer_Publish(t *testing.T) {
	tracer := setupTracing(t)
	w := &fakeWriter{}
	p := newProducer(w, "order.received")

	ctx, span := tracer.Start(context.Background(), "intake")
	err := p.Publish(ctx, "order-1", map[string]string{"order_id": "order-1"})
	span.End()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "order-1" {
		t.Errorf("unexpected key %q", msg.Key)
	}

	var body map[string]string
	if err := json.Unmarshal(msg.Value, &body); err != nil || body["order_id"] != "order-1" {
		t.Errorf("unexpected value %s (%v)", msg.Value, err)
	}

	carrier := NewHeaderCarrier(&msg)
	if carrier.Get(ContentTypeHeader) != "application/json" {
		t.Error("missing content type header")
	}
	extracted := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), carrier))
	if extracted.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("trace id not propagated: got %s want %s", extracted.TraceID(), span.SpanContext().TraceID())
	}
}

func TestProducer_PublishError(t *testing.T) {
	setupTracing(t)
	boom := errors.New("leader not available")
	p := newProducer(&fakeWriter{err: boom}, "order.received")

	err := p.Publish(context.Background(), "order-1", struct{}{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}

	if err := p.Publish(context.Background(), "order-1", func() {}); err == nil {
		t.Fatal("expected an encode error")
	}
}

func TestConsumer_Consume(t *testing.T) {
	tracer := setupTracing(t)

	ctx, span := tracer.Start(context.Background(), "intake")
	traced := kafka.Message{Offset: 1, Value: []byte("one")}
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&traced))
	span.End()

	t.Run("commits handled and skipped messages", func(t *testing.T) {
		r := &fakeReader{msgs: []kafka.Message{
			traced,
			{Offset: 2, Value: []byte("poison")},
			{Offset: 3, Value: []byte("three")},
		}}
		c := newConsumer(r, "order.received", "notifier", discardLogger())

		var seen []string
		var parent trace.SpanContext
		err := c.Consume(context.Background(), func(ctx context.Context, payload []byte) error {
			if string(payload) == "poison" {
				return errors.Join(ErrSkip, errors.New("bad json"))
			}
			if string(payload) == "one" {
				parent = trace.SpanContextFromContext(ctx)
			}
			seen = append(seen, string(payload))
			return nil
		})

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected the fetch error to end consumption, got %v", err)
		}
		if len(seen) != 2 {
			t.Errorf("expected 2 handled messages, got %v", seen)
		}
		if len(r.committed) != 3 {
			t.Errorf("expected 3 commits, got %v", r.committed)
		}
		if parent.TraceID() != span.SpanContext().TraceID() {
			t.Errorf("handler span is not a child of the producer trace")
		}
	})

	t.Run("stops without committing on handler failure", func(t *testing.T) {
		r := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: []byte("x")}, {Offset: 8}}}
		c := newConsumer(r, "order.received", "notifier", discardLogger())
		boom := errors.New("email service down")

		err := c.Consume(context.Background(), func(context.Context, []byte) error { return boom })

		if !errors.Is(err, boom) {
			t.Fatalf("expected handler error, got %v", err)
		}
		if len(r.committed) != 0 {
			t.Errorf("expected no commits, got %v", r.committed)
		}
	})
}
