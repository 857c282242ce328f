package persist

import (
	"time"

	"github.com/google/uuid"
)

// Save stream layout, in order: magic, format version, session UUID,
// creation time, identifier table, composition table, entity count, one
// framed record per entity (saved ID + entity record), trailing xxhash64 of
// everything before it. All of it is forward-only; nothing is seekable.
const (
	saveMagic     = "WSV1"
	formatVersion = 1
)

// Metadata describes one save stream's header.
type Metadata struct {
	Session   uuid.UUID
	CreatedAt time.Time
	Entities  int
}
