package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []uuid.UUID
	err  error
}

func (p *recordingProcessor) Process(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, id)
	return p.err
}

func TestQueueDrainsOnShutdown(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewExtractionQueue(proc, nil, WithWorkers(2), WithQueueSize(8))

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(context.Background(), Job{ArtistID: uuid.New()}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.seen) != 5 {
		t.Fatalf("processed %d jobs, want 5", len(proc.seen))
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewExtractionQueue(&recordingProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	if err := q.Enqueue(context.Background(), Job{ArtistID: uuid.New()}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v", err)
	}
	q.Shutdown(context.Background())
}

type blockingProcessor struct{ release chan struct{} }

func (b blockingProcessor) Process(context.Context, uuid.UUID) error {
	<-b.release
	return nil
}

func TestEnqueueRespectsContextWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := NewExtractionQueue(blockingProcessor{release: release}, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	// one job occupies the worker, one fills the buffer
	_ = q.Enqueue(context.Background(), Job{ArtistID: uuid.New()})
	time.Sleep(20 * time.Millisecond)
	_ = q.Enqueue(context.Background(), Job{ArtistID: uuid.New()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{ArtistID: uuid.New()}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestShutdownReleasesBlockedEnqueue(t *testing.T) {
	release := make(chan struct{})
	q := NewExtractionQueue(blockingProcessor{release: release}, nil, WithWorkers(1), WithQueueSize(1))

	_ = q.Enqueue(context.Background(), Job{ArtistID: uuid.New()})
	time.Sleep(20 * time.Millisecond)
	_ = q.Enqueue(context.Background(), Job{ArtistID: uuid.New()})

	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(context.Background(), Job{ArtistID: uuid.New()}) }()
	time.Sleep(20 * time.Millisecond)

	// a second caller is not serialized behind the blocked one
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := q.Enqueue(ctx, Job{ArtistID: uuid.New()}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("concurrent Enqueue waited on the blocked one")
	}

	shut := make(chan struct{})
	go func() {
		defer close(shut)
		q.Shutdown(context.Background())
	}()

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("blocked Enqueue err = %v, want ErrQueueClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Enqueue not released by Shutdown")
	}

	close(release)
	select {
	case <-shut:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not complete")
	}
}
