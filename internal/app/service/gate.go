package service

import (
	"crypto/subtle"
	"time"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
)

// Decision is the outcome of an access check.
type Decision int

const (
	DecisionNotFound Decision = iota
	DecisionExpired
	DecisionPasscodeRequired
	DecisionPasscodeRejected
	DecisionGranted
)

func (d Decision) String() string {
	switch d {
	case DecisionNotFound:
		return "not_found"
	case DecisionExpired:
		return "expired"
	case DecisionPasscodeRequired:
		return "passcode_required"
	case DecisionPasscodeRejected:
		return "passcode_rejected"
	case DecisionGranted:
		return "granted"
	}
	return "unknown"
}

// Attempt carries what the requester presented. Passcode is nil when nothing
// was submitted; Granted is set once the caller has verified a grant token.
type Attempt struct {
	Passcode *string
	Granted  bool
}

// Evaluate decides whether a requester may access record at now. It performs
// no I/O and keeps no state between calls.
func Evaluate(record *model.Record, attempt Attempt, now time.Time) Decision {
	if record == nil {
		return DecisionNotFound
	}
	if exp := record.ExpiresAt(); exp != nil && now.After(*exp) {
		return DecisionExpired
	}

	stored := record.Passcode()
	if stored == "" {
		return DecisionGranted
	}
	if attempt.Granted {
		return DecisionGranted
	}
	if attempt.Passcode == nil {
		return DecisionPasscodeRequired
	}
	if subtle.ConstantTimeCompare([]byte(*attempt.Passcode), []byte(stored)) == 1 {
		return DecisionGranted
	}
	return DecisionPasscodeRejected
}
