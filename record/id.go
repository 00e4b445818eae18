package record

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idSuffixLen is the number of base36 characters after the timestamp.
const idSuffixLen = 7

// NewID returns a client-generated record id of the form
// "<unix-millis>-<7 base36 chars>". Collisions are not checked.
func NewID(now time.Time) string {
	u := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(suffix) < idSuffixLen {
		suffix = strings.Repeat("0", idSuffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix[:idSuffixLen])
}
