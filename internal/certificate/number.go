package certificate

import (
	"fmt"
	"math/rand"
	"time"
)

// NewCertificateNo generates a human-readable certificate number in the form
// GC-YYMM### with a random three-digit suffix. Collisions are possible; the
// store's uniqueness constraint surfaces them to the caller, which may simply
// resubmit. No internal retry.
func NewCertificateNo(now time.Time) string {
	return fmt.Sprintf("GC-%s%03d", now.Format("0601"), rand.Intn(1000))
}
