package pairing

import (
	"crypto/subtle"
	"errors"
	"time"

	"nonmessenger/go-backend/internal/platform/ratelimiter"
)

var (
	ErrVerificationLength    = errors.New("verification message must be exactly 256 bytes")
	ErrVerificationMismatch  = errors.New("verification messages do not match")
	ErrVerificationThrottled = errors.New("too many verification attempts")
	ErrDeviceIDRequired      = errors.New("device id is required")
)

// Verifier confirms that two peers hold the same verification message.
// Comparison is constant time and attempts are throttled per device so
// the exchange cannot be brute forced through this path.
type Verifier struct {
	limiter *ratelimiter.AttemptLimiter
	now     func() time.Time
}

func NewVerifier() *Verifier {
	// Five immediate attempts, then one every 30 seconds.
	return NewVerifierWithPolicy(30*time.Second, 5)
}

// NewVerifierWithPolicy sets how often a device may retry (one attempt
// per interval after the burst is spent). Non-positive values fall back
// to the defaults.
func NewVerifierWithPolicy(interval time.Duration, burst int) *Verifier {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if burst <= 0 {
		burst = 5
	}
	return &Verifier{
		limiter: ratelimiter.New(1.0/interval.Seconds(), burst, time.Hour),
		now:     time.Now,
	}
}

func newVerifierWithClock(now func() time.Time) *Verifier {
	v := NewVerifier()
	v.now = now
	return v
}

// Confirm checks the locally computed message against the one the peer
// sent. Length failures are reported before an attempt is consumed;
// mismatches consume one.
func (v *Verifier) Confirm(deviceID, local, remote string) error {
	if deviceID == "" {
		return ErrDeviceIDRequired
	}
	if !ValidateVerificationMessage(local) || !ValidateVerificationMessage(remote) {
		return ErrVerificationLength
	}
	if !v.limiter.Allow(deviceID, v.now()) {
		return ErrVerificationThrottled
	}
	if subtle.ConstantTimeCompare([]byte(local), []byte(remote)) != 1 {
		return ErrVerificationMismatch
	}
	return nil
}
