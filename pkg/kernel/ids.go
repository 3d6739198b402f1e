package kernel

import (
	"strconv"
	"strings"
)

// EntryID identifies a word entry (flashcard). It is owned by the entry
// store; the queue only carries it.
type EntryID int64

func (id EntryID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id EntryID) IsZero() bool   { return id == 0 }

// ParseEntryID parses a positive decimal id
func ParseEntryID(s string) (EntryID, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return EntryID(n), true
}
