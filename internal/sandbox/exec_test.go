package sandbox

import (
	"errors"
	"testing"
)

func TestProcessWaitRunsOnce(t *testing.T) {
	calls := 0
	proc := newProcess(func() (bool, error) {
		calls++
		return true, nil
	})

	for i := 0; i < 3; i++ {
		ok, err := proc.Wait()
		if err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("wait %d reported failure", i)
		}
	}
	if calls != 1 {
		t.Fatalf("wait function ran %d times, want 1", calls)
	}
}

func TestProcessWaitKeepsError(t *testing.T) {
	wantErr := errors.New("reap failed")
	proc := newProcess(func() (bool, error) {
		return false, wantErr
	})

	_, err := proc.Wait()
	if !errors.Is(err, wantErr) {
		t.Fatalf("first wait err = %v", err)
	}
	_, err = proc.Wait()
	if !errors.Is(err, wantErr) {
		t.Fatalf("second wait err = %v", err)
	}
}
