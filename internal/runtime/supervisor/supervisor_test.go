package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWaitReturnsFirstError(t *testing.T) {
	sup := New(context.Background(), WithCancelOnError(true))
	boom := errors.New("boom")

	sup.Go("worker", func(ctx context.Context) error { return boom })
	sup.Go("sleeper", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

func TestCancelOnErrorStopsSiblings(t *testing.T) {
	sup := New(context.Background(), WithCancelOnError(true))
	stopped := make(chan struct{})

	sup.Go("failing", func(ctx context.Context) error { return errors.New("dead") })
	sup.Go0("sibling", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sibling was not cancelled")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	sup := New(context.Background())
	sup.Go("panicky", func(ctx context.Context) error { panic("kaput") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "panicky") {
		t.Fatalf("want panic error naming the goroutine, got %v", err)
	}
}

func TestErrorAfterCancelIgnored(t *testing.T) {
	sup := New(context.Background(), WithCancelOnError(true))
	sup.Go("server", func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("listener closed")
	})
	sup.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("shutdown-path error must not surface: %v", err)
	}
}
