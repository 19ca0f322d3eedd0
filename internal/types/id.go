// README: Entity identifiers and human-readable booking/order codes.
package types

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// NewCode builds a short unique code like "SO-LX3K9Q2A-1F7Z": base36 of the creation
// millisecond followed by base36 random bits taken from a v4 uuid.
func NewCode(prefix string) string {
	return newCodeAt(prefix, time.Now())
}

func newCodeAt(prefix string, now time.Time) string {
	u := uuid.New()
	rnd := binary.BigEndian.Uint32(u[:4]) % (36 * 36 * 36 * 36)
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	r := strconv.FormatUint(uint64(rnd), 36)
	for len(r) < 4 {
		r = "0" + r
	}
	return strings.ToUpper(prefix + "-" + ts + "-" + r)
}
