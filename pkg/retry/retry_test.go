package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestDo_SucceedsAfterFailures проверяет успех после нескольких неудач
func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}

	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	}, cfg)

	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestDo_ExhaustsRetries: после MaxRetries возвращается последняя ошибка
func TestDo_ExhaustsRetries(t *testing.T) {
	attempts := 0
	wantErr := errors.New("persistent failure")
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
	}

	err := Do(context.Background(), func() error {
		attempts++
		return wantErr
	}, cfg)

	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want %v", err, wantErr)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestDo_PermanentErrorStopsRetries: PermanentError прекращает попытки
func TestDo_PermanentErrorStopsRetries(t *testing.T) {
	attempts := 0
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		RetryIf:      IsRetryable,
	}

	err := Do(context.Background(), func() error {
		attempts++
		return Permanent(errors.New("bad request"))
	}, cfg)

	if err == nil {
		t.Fatal("Do() error = nil, want error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

// TestDo_ContextCancellation: отмена контекста прерывает ожидание
func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func() error {
		return errors.New("failure")
	}, Config{MaxRetries: 10, InitialDelay: time.Second})

	if err == nil {
		t.Fatal("Do() error = nil, want error after cancellation")
	}
}

// TestDoWithResult проверяет возврат значения после retry
func TestDoWithResult(t *testing.T) {
	attempts := 0
	cfg := Config{MaxRetries: 3, InitialDelay: time.Millisecond}

	got, err := DoWithResult(context.Background(), func() (float64, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("transient failure")
		}
		return 1000.0, nil
	}, cfg)

	if err != nil {
		t.Fatalf("DoWithResult() error = %v, want nil", err)
	}
	if got != 1000.0 {
		t.Errorf("DoWithResult() = %v, want 1000.0", got)
	}
}

// TestIsRetryable проверяет классификацию ошибок
func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) = true, want false")
	}
	if IsRetryable(Permanent(errors.New("x"))) {
		t.Error("IsRetryable(Permanent) = true, want false")
	}
	if !IsRetryable(Temporary(errors.New("x"))) {
		t.Error("IsRetryable(Temporary) = false, want true")
	}
	if !IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable(plain) = false, want true")
	}
}
