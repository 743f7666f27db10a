package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextRoundTrip(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)

	ctx := ContextWithLogger(context.Background(), l)
	FromContext(ctx).Info("carried")

	if logs.Len() != 1 || logs.All()[0].Message != "carried" {
		t.Errorf("expected the stored logger back, got %d entries", logs.Len())
	}
}

func TestFromContext_MissingLoggerIsNop(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatal("expected a usable logger")
	}
	l.Info("must not panic")
}
