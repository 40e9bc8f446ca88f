package candle

import "testing"

func TestBufferOverwriteScenario(t *testing.T) {
	b := NewBuffer(100)
	seq := []Candle{
		{TsMillis: 1000, Confirm: true},
		{TsMillis: 2000, Confirm: true},
		{TsMillis: 3000, Confirm: false},
	}
	for _, c := range seq {
		if err := b.Append(c); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	if err := b.Append(Candle{TsMillis: 3000, Confirm: false, Close: 1}); err != nil {
		t.Fatalf("unconfirmed tail should be replaceable: %v", err)
	}
	if err := b.Append(Candle{TsMillis: 3000, Confirm: true, Close: 2}); err != nil {
		t.Fatalf("confirming the tail should succeed: %v", err)
	}
	if err := b.Append(Candle{TsMillis: 4000, Confirm: true}); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}

	if b.Len() != 4 {
		t.Fatalf("expected length 4, got %d", b.Len())
	}
	back, _ := b.Back()
	if back.TsMillis != 4000 {
		t.Fatalf("expected tail ts 4000, got %d", back.TsMillis)
	}

	if err := b.Append(Candle{TsMillis: 3000, Confirm: false}); err == nil {
		t.Fatal("expected rejection of stale ts after a later candle was appended")
	}
}

func TestBufferRejectsMonotonicityViolation(t *testing.T) {
	b := NewBuffer(10)
	if err := b.Append(Candle{TsMillis: 5000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Append(Candle{TsMillis: 4000}); err == nil {
		t.Fatal("expected monotonicity violation error")
	}
	if b.Len() != 1 {
		t.Fatalf("rejected append must not corrupt the buffer, got len %d", b.Len())
	}
}

func TestBufferRejectsOverwriteOfConfirmed(t *testing.T) {
	b := NewBuffer(10)
	if err := b.Append(Candle{TsMillis: 1000, Confirm: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Append(Candle{TsMillis: 1000, Confirm: false}); err == nil {
		t.Fatal("expected rejection of overwrite on a confirmed candle")
	}
}

func TestBufferEvictsFromFront(t *testing.T) {
	b := NewBuffer(3)
	for i := int64(1); i <= 5; i++ {
		if err := b.Append(Candle{TsMillis: i * 1000, Confirm: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if b.Len() != 3 {
		t.Fatalf("expected length bound to capacity 3, got %d", b.Len())
	}
	front, _ := b.Front()
	if front.TsMillis != 3000 {
		t.Fatalf("expected oldest retained ts 3000, got %d", front.TsMillis)
	}
}

func TestBufferSnapshotLastBeyondLength(t *testing.T) {
	b := NewBuffer(10)
	b.Append(Candle{TsMillis: 1000})
	b.Append(Candle{TsMillis: 2000})
	snap := b.SnapshotLast(50)
	if len(snap) != 2 {
		t.Fatalf("expected snapshot of 2 when requesting beyond length, got %d", len(snap))
	}
}
