package fabric

import "time"

// TTLs applied to fabric keys per spec.md §4.1/§4.3.
const (
	publicStreamTTL = 10 * time.Minute
	// SalesKeyTTL is the TTL applied to sales:{t}:{asset} keys by the
	// pricing engine after each atomic increment (spec.md §4.3 step 6).
	SalesKeyTTL = 5 * time.Minute
)
