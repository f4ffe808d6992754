package log_test

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/go-elektra/kdb/internal/log"
)

func TestFieldsEmptyOnFreshContext(t *testing.T) {
	fields := log.Fields(context.Background())
	if len(fields) != 0 {
		t.Fatalf("got %d fields, want 0", len(fields))
	}
}

func TestWithFieldsAccumulates(t *testing.T) {
	ctx := log.WithFields(context.Background(), zap.String("a", "1"))
	ctx = log.WithFields(ctx, zap.String("b", "2"))

	fields := log.Fields(ctx)
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
}

func TestWithContextAttachesAccumulatedFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := log.WithFields(context.Background(), zap.String("mountpoint", "user:/app"))

	enriched := log.WithContext(ctx, base)
	enriched.Info("opened backend")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["mountpoint"]; got != "user:/app" {
		t.Fatalf("got mountpoint field %v, want %q", got, "user:/app")
	}
}

func TestLoggerRoundTripsThroughContext(t *testing.T) {
	base := zap.NewNop()

	ctx := log.WithLogger(context.Background(), base)
	if got := log.Logger(ctx); got != base {
		t.Fatalf("got a different logger back than was attached")
	}
}

func TestLoggerIsNilWithoutAttachment(t *testing.T) {
	if got := log.Logger(context.Background()); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestFromContextFallsBackAndAttaches(t *testing.T) {
	fallback := zap.NewNop()

	logger, ctx := log.FromContext(context.Background(), fallback)
	if logger != fallback {
		t.Fatalf("expected FromContext to fall back to the default logger")
	}
	if got := log.Logger(ctx); got != fallback {
		t.Fatalf("expected FromContext to attach the fallback logger to the returned context")
	}
}

func TestFromContextPrefersAttachedLogger(t *testing.T) {
	attached := zap.NewNop()
	fallback := zap.NewNop()

	ctx := log.WithLogger(context.Background(), attached)
	logger, _ := log.FromContext(ctx, fallback)
	if logger != attached {
		t.Fatalf("expected FromContext to prefer the already-attached logger over the fallback")
	}
}
