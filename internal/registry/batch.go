package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode selects how a load batch treats the existing registry contents.
type Mode int

const (
	// ModeReplace deletes every existing row before inserting the batch.
	ModeReplace Mode = iota
	// ModeAppend keeps existing rows; duplicates with older timestamps survive.
	ModeAppend
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeReplace:
		return "replace"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Batch identifies one ingestion run. It is created once, when the load
// begins, and passed explicitly to the loader and the storage backend.
type Batch struct {
	ID        uuid.UUID
	StartedAt time.Time
	Mode      Mode

	// SourceFingerprint is the xxh3 digest of the raw file the batch was
	// built from. Empty when the batch did not come from a fetched file.
	SourceFingerprint string
}

// NewBatch returns a batch stamped with now, truncated to microseconds so the
// timestamp round-trips through every supported database unchanged.
func NewBatch(mode Mode, now time.Time, fingerprint string) Batch {
	return Batch{
		ID:                uuid.New(),
		StartedAt:         now.UTC().Truncate(time.Microsecond),
		Mode:              mode,
		SourceFingerprint: fingerprint,
	}
}

// Stamp sets LastUpdatedAt of every record to the batch timestamp.
func (b Batch) Stamp(recs []Record) {
	for i := range recs {
		recs[i].LastUpdatedAt = b.StartedAt
	}
}
