package history

import (
	"fmt"
	"sync"
	"testing"
)

func TestAppendAndSince(t *testing.T) {
	log := New(10)

	log.Append("ann", "bob", "hello")
	log.Append("bob", "ann", "hi")
	seq := log.Append("ann", "bob", "!")
	if seq != 3 {
		t.Fatalf("expected seq 3, got %d", seq)
	}

	lines := log.Since(0)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0].Body != "hello" || lines[0].From != "ann" || lines[0].To != "bob" {
		t.Fatalf("unexpected first line %+v", lines[0])
	}

	lines = log.Since(2)
	if len(lines) != 1 || lines[0].Seq != 3 {
		t.Fatalf("expected only seq 3, got %+v", lines)
	}
}

func TestSinceEmpty(t *testing.T) {
	log := New(4)
	if lines := log.Since(0); lines != nil {
		t.Fatalf("expected nil, got %d lines", len(lines))
	}
	if lines := log.Last(3); lines != nil {
		t.Fatalf("expected nil, got %d lines", len(lines))
	}
}

func TestEviction(t *testing.T) {
	log := New(3)
	for i := 1; i <= 5; i++ {
		log.Append("a", "b", fmt.Sprintf("m%d", i))
	}

	if log.Len() != 3 {
		t.Fatalf("expected 3 retained, got %d", log.Len())
	}
	lines := log.Since(0)
	if lines[0].Body != "m3" || lines[2].Body != "m5" {
		t.Fatalf("expected m3..m5, got %q..%q", lines[0].Body, lines[2].Body)
	}
	if lines[0].Seq != 3 {
		t.Fatalf("expected seq 3 after eviction, got %d", lines[0].Seq)
	}
}

func TestLast(t *testing.T) {
	log := New(10)
	for i := 1; i <= 4; i++ {
		log.Append("a", "b", fmt.Sprintf("m%d", i))
	}

	lines := log.Last(2)
	if len(lines) != 2 || lines[0].Body != "m3" || lines[1].Body != "m4" {
		t.Fatalf("expected m3,m4, got %+v", lines)
	}
	if got := len(log.Last(100)); got != 4 {
		t.Fatalf("expected all 4 lines, got %d", got)
	}
}

func TestDefaultCapacity(t *testing.T) {
	log := New(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		log.Append("a", "b", "x")
	}
	if log.Len() != DefaultCapacity {
		t.Fatalf("expected %d retained, got %d", DefaultCapacity, log.Len())
	}
}

func TestConcurrentAppend(t *testing.T) {
	log := New(1000)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				log.Append("a", "b", "x")
			}
		}()
	}
	wg.Wait()

	lines := log.Since(0)
	if len(lines) != 400 {
		t.Fatalf("expected 400 lines, got %d", len(lines))
	}
	for i, ln := range lines {
		if ln.Seq != uint64(i+1) {
			t.Fatalf("line %d has seq %d", i, ln.Seq)
		}
	}
}
