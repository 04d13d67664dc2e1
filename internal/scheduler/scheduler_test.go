package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

func TestSchedulerAlignedBuckets(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 3, 20, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)

	ticks := make(chan time.Time, 4)
	s := New(Options{Interval: 10 * time.Minute, AlignToStart: true}, clock, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, bucket time.Time) error {
			ticks <- bucket
			return nil
		})
	}()

	clock.BlockUntil(1)
	clock.Advance(6*time.Minute + 40*time.Second)

	first := <-ticks
	want := time.Date(2025, 3, 1, 12, 10, 0, 0, time.UTC)
	if !first.Equal(want) {
		t.Fatalf("期望第一个 bucket %s, 实际 %s", want, first)
	}

	clock.BlockUntil(1)
	clock.Advance(10 * time.Minute)

	second := <-ticks
	if !second.Equal(want.Add(10 * time.Minute)) {
		t.Fatalf("期望第二个 bucket %s, 实际 %s", want.Add(10*time.Minute), second)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("取消后应返回 context.Canceled, 实际 %v", err)
	}
}

func TestSchedulerContinuesAfterTickError(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)

	ticks := make(chan time.Time, 4)
	s := New(Options{Interval: time.Minute, AlignToStart: true}, clock, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = s.Run(ctx, func(ctx context.Context, bucket time.Time) error {
			ticks <- bucket
			return errors.New("tick boom")
		})
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	<-ticks

	// 失败的 tick 不应终止循环
	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("调度循环在 tick 失败后停止了")
	}
}

func TestSchedulerStartupDelay(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 30, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)

	ticks := make(chan time.Time, 1)
	s := New(Options{Interval: time.Minute, AlignToStart: true, StartupDelay: 10 * time.Second}, clock, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = s.Run(ctx, func(ctx context.Context, bucket time.Time) error {
			ticks <- bucket
			return nil
		})
	}()

	// 先消耗启动延迟, 再推进到对齐边界
	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	clock.BlockUntil(1)
	clock.Advance(20 * time.Second)

	bucket := <-ticks
	want := time.Date(2025, 3, 1, 0, 1, 0, 0, time.UTC)
	if !bucket.Equal(want) {
		t.Fatalf("期望 bucket %s, 实际 %s", want, bucket)
	}
}
