package clock

import "time"

// Clock provides time to the application.
// Ledger timestamps and donor ages are computed against it, so tests can pin "now".
type Clock interface {
	Now() time.Time
}
