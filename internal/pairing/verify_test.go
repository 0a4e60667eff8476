package pairing

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func encodeJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return string(raw)
}

func TestVerifierConfirmsMatchingMessages(t *testing.T) {
	v := NewVerifier()
	msg := validVerification()
	if err := v.Confirm("device-1", msg, msg); err != nil {
		t.Fatalf("matching messages must confirm: %v", err)
	}
}

func TestVerifierRejectsMismatch(t *testing.T) {
	v := NewVerifier()
	other := strings.Repeat("w", VerificationMessageLength)
	if err := v.Confirm("device-1", validVerification(), other); !errors.Is(err, ErrVerificationMismatch) {
		t.Fatalf("expected ErrVerificationMismatch, got %v", err)
	}
}

func TestVerifierLengthGateBeforeAttempts(t *testing.T) {
	v := NewVerifier()
	if err := v.Confirm("device-1", "short", validVerification()); !errors.Is(err, ErrVerificationLength) {
		t.Fatalf("expected ErrVerificationLength, got %v", err)
	}
	if err := v.Confirm("device-1", validVerification(), validVerification()+"x"); !errors.Is(err, ErrVerificationLength) {
		t.Fatalf("expected ErrVerificationLength, got %v", err)
	}
	if err := v.Confirm("", validVerification(), validVerification()); !errors.Is(err, ErrDeviceIDRequired) {
		t.Fatalf("expected ErrDeviceIDRequired, got %v", err)
	}
}

func TestVerifierThrottlesRepeatedMismatches(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	v := newVerifierWithClock(func() time.Time { return now })

	wrong := strings.Repeat("w", VerificationMessageLength)
	local := validVerification()

	var throttled bool
	for i := 0; i < 10; i++ {
		err := v.Confirm("device-1", local, wrong)
		if errors.Is(err, ErrVerificationThrottled) {
			throttled = true
			break
		}
		if !errors.Is(err, ErrVerificationMismatch) {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
	}
	if !throttled {
		t.Fatal("repeated mismatches must eventually throttle")
	}

	// Another device is unaffected.
	if err := v.Confirm("device-2", local, local); err != nil {
		t.Fatalf("unrelated device must not be throttled: %v", err)
	}

	// Tokens refill with time.
	now = now.Add(time.Hour)
	if err := v.Confirm("device-1", local, local); err != nil {
		t.Fatalf("attempts must refill after backoff: %v", err)
	}
}
