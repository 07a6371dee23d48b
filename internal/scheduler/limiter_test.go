package scheduler

import "testing"

// TestLimiterGlobalCap tests the global concurrency ceiling.
func TestLimiterGlobalCap(t *testing.T) {
	l := NewConcurrencyLimiter(2, nil)

	t1, ok := l.TryAcquire("backend")
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	t2, ok := l.TryAcquire("frontend")
	if !ok {
		t.Fatal("second acquire should succeed")
	}

	if _, ok := l.TryAcquire("backend"); ok {
		t.Fatal("third acquire should hit the global cap")
	}

	l.Release(t1)
	t3, ok := l.TryAcquire("database")
	if !ok {
		t.Fatal("acquire after release should succeed")
	}

	l.Release(t2)
	l.Release(t3)
}

// TestLimiterClassCap tests per-class limits under a roomy global cap.
func TestLimiterClassCap(t *testing.T) {
	l := NewConcurrencyLimiter(10, map[string]int{"backend": 1})

	token, ok := l.TryAcquire("backend")
	if !ok {
		t.Fatal("first backend acquire should succeed")
	}
	if _, ok := l.TryAcquire("backend"); ok {
		t.Fatal("second backend acquire should hit the class cap")
	}

	// Other classes are unaffected.
	other, ok := l.TryAcquire("frontend")
	if !ok {
		t.Fatal("frontend acquire should succeed")
	}

	if got := l.InUse("backend"); got != 1 {
		t.Errorf("expected 1 backend slot in use, got %d", got)
	}

	l.Release(token)
	if got := l.InUse("backend"); got != 0 {
		t.Errorf("expected 0 backend slots in use, got %d", got)
	}
	if _, ok := l.TryAcquire("backend"); !ok {
		t.Error("backend acquire after release should succeed")
	}

	l.Release(other)
}

// TestLimiterUnboundedClass verifies classes without a limit only hit the
// global cap, and that non-positive class limits mean unbounded.
func TestLimiterUnboundedClass(t *testing.T) {
	l := NewConcurrencyLimiter(3, map[string]int{"backend": 0})

	for i := 0; i < 3; i++ {
		if _, ok := l.TryAcquire("backend"); !ok {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if _, ok := l.TryAcquire("backend"); ok {
		t.Error("fourth acquire should hit the global cap")
	}
}

// TestLimiterDefaults verifies the global cap fallback and nil token release.
func TestLimiterDefaults(t *testing.T) {
	l := NewConcurrencyLimiter(0, nil)

	tokens := make([]*SlotToken, 0, DefaultGlobalMaxConcurrent)
	for i := 0; i < DefaultGlobalMaxConcurrent; i++ {
		token, ok := l.TryAcquire("backend")
		if !ok {
			t.Fatalf("acquire %d should succeed under the default cap", i+1)
		}
		tokens = append(tokens, token)
	}
	if _, ok := l.TryAcquire("backend"); ok {
		t.Error("acquire beyond the default cap should fail")
	}

	l.Release(nil) // no-op

	for _, token := range tokens {
		l.Release(token)
	}
}

// TestSlotTokenWorkerClass verifies tokens remember their class.
func TestSlotTokenWorkerClass(t *testing.T) {
	l := NewConcurrencyLimiter(1, nil)
	token, ok := l.TryAcquire("testing")
	if !ok {
		t.Fatal("acquire failed")
	}
	if token.WorkerClass() != "testing" {
		t.Errorf("expected class testing, got %q", token.WorkerClass())
	}
	l.Release(token)
}
