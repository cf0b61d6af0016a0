package threadkit

import (
	"encoding/hex"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// client-side sdk for embedding threaded discussions
// the server is the single source of truth. the engine caches a comment tree,
// applies pushed deltas, and reconciles opportunistically on the next fetch.

// comment ids are opaque strings assigned by the server.
// `Id` is only used for identity generated locally,
// e.g. engine instances and tabs on the relay channel.

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func ParseId(idStr string) (Id, error) {
	return parseUuid(idStr)
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

func (self Id) String() string {
	return encodeUuid(self)
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		// assume invalid.
		return dst, fmt.Errorf("cannot parse id %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}
