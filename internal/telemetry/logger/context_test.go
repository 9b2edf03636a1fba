package logger

import (
	"context"
	"testing"
)

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() returned nil without a logger")
	}

	l, buf := newBufferLogger(t, "info", "json")
	FromContext(WithLogger(context.Background(), l)).Info("m")
	if buf.Len() == 0 {
		t.Error("FromContext() did not return the stored logger")
	}
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
	ctx = WithRequestID(ctx, "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %q, want req-1", got)
	}
}

func TestL(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	ctx := WithRequestID(WithLogger(context.Background(), l), "req-42")
	L(ctx).Info("m")
	if got := decodeLine(t, buf)["request_id"]; got != "req-42" {
		t.Errorf("request_id = %v, want req-42", got)
	}

	buf.Reset()
	L(WithLogger(context.Background(), l)).Info("m")
	if _, ok := decodeLine(t, buf)["request_id"]; ok {
		t.Error("request_id present without one in context")
	}
}
