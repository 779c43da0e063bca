package reality

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewRecordID returns a new ULID for a record.
//
// IDs are lexically sortable by creation time. Within one millisecond the
// random component increases monotonically, so concurrent inserts for the
// same owner never collide.
func NewRecordID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}
