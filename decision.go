package signbroker

import (
	"errors"
	"sync/atomic"

	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

// ErrDecisionUsed is returned when a Decision is passed to Decide twice.
var ErrDecisionUsed = errors.New("decision has already been used")

// Decision is a reviewer's verdict on one request. Decisions are single use:
// the secret of an approval is wiped once Decide returns.
type Decision struct {
	approve bool
	secret  []byte
	used    atomic.Bool
}

// Approve returns a decision that runs the privileged operation with secret.
func Approve(secret string) *Decision {
	return &Decision{approve: true, secret: []byte(secret)}
}

// Reject returns a decision that cancels the request.
func Reject() *Decision {
	return &Decision{}
}

// IsApproval reports whether the decision approves the request.
func (d *Decision) IsApproval() bool {
	return d.approve
}

func (d *Decision) claim() bool {
	return d.used.CompareAndSwap(false, true)
}

func (d *Decision) wipe() {
	crypto.Zero(d.secret)
	d.secret = nil
}
