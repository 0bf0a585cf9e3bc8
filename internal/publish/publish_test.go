package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ppg-service/internal/models"
)

type recordingSink struct {
	name string
	err  error

	mu      sync.Mutex
	records []models.Record
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) got() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Record(nil), s.records...)
}

// blockingSink holds the worker until release is closed.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Publish(ctx context.Context, _ models.Record) error {
	<-s.release
	return nil
}

func TestDispatcher_FanOutInOrder(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", err: errors.New("unavailable")}
	d := NewDispatcher(16, time.Second, a, b)
	d.Start()

	for i := 0; i < 10; i++ {
		if !d.Submit(models.Record{Timestamp: uint64(i)}) {
			t.Fatalf("Submit %d rejected", i)
		}
	}
	d.Stop()

	for _, s := range []*recordingSink{a, b} {
		recs := s.got()
		if len(recs) != 10 {
			t.Fatalf("Sink %s expected 10 records, got %d", s.name, len(recs))
		}
		for i, r := range recs {
			if r.Timestamp != uint64(i) {
				t.Errorf("Sink %s record %d has timestamp %d", s.name, i, r.Timestamp)
			}
		}
	}

	submitted, dropped, failed := d.Stats()
	if submitted != 10 || dropped != 0 || failed != 10 {
		t.Errorf("Unexpected stats submitted=%d dropped=%d failed=%d", submitted, dropped, failed)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	// Not started: nothing drains the buffer.
	d := NewDispatcher(2, time.Second)

	if !d.Submit(models.Record{}) || !d.Submit(models.Record{}) {
		t.Fatal("Expected the first two records to fit")
	}
	if d.Submit(models.Record{}) {
		t.Error("Expected overflow to be rejected")
	}
	if _, dropped, _ := d.Stats(); dropped != 1 {
		t.Errorf("Expected 1 dropped record, got %d", dropped)
	}
}

func TestDispatcher_SubmitDoesNotBlock(t *testing.T) {
	bs := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(1, time.Second, bs)
	d.Start()

	start := time.Now()
	for i := 0; i < 100; i++ {
		d.Submit(models.Record{})
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Submit blocked for %v", elapsed)
	}

	close(bs.release)
	d.Stop()
}

func TestDispatcher_Sinks(t *testing.T) {
	d := NewDispatcher(1, 0, &recordingSink{name: "x"}, &recordingSink{name: "y"})
	names := d.Sinks()
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Errorf("Unexpected sink names %v", names)
	}
	d.Stop()
}

type fakeNATS struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestNATSSink_Publish(t *testing.T) {
	fake := &fakeNATS{}
	s := &NATSSink{pub: fake, subject: DefaultNATSSubject}

	rec := models.Record{Timestamp: 20000, Raw: 2048, Filtered: -12, BPM: 72, Fresh: true}
	if err := s.Publish(context.Background(), rec); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if fake.subject != "ppg.records" {
		t.Errorf("Unexpected subject %q", fake.subject)
	}

	var got models.Record
	if err := json.Unmarshal(fake.data, &got); err != nil {
		t.Fatalf("Payload is not JSON: %v", err)
	}
	if got != rec {
		t.Errorf("Expected %+v, got %+v", rec, got)
	}

	fake.err = errors.New("slow consumer")
	if err := s.Publish(context.Background(), rec); !errors.Is(err, fake.err) {
		t.Errorf("Expected wrapped publish error, got %v", err)
	}
}

func TestNATSSink_CancelledContext(t *testing.T) {
	fake := &fakeNATS{}
	s := &NATSSink{pub: fake, subject: "x"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Publish(ctx, models.Record{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if fake.data != nil {
		t.Error("Nothing should be published after cancellation")
	}
}
