package core

import (
	"math/big"
	"strings"

	"github.com/google/uuid"

	"datadiff/internal/errs"
)

// UUIDToBigInt parses a UUID-text key into the 128-bit integer the
// bisection engine partitions. It fails with ValueError for any value
// outside the UUID domain, detected during min/max discovery or
// mid-run.
func UUIDToBigInt(s string) (*big.Int, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, errs.Value("key value %q is not a well-formed UUID: %v", s, err)
	}
	v := new(big.Int).SetBytes(id[:]) // 16 bytes, big-endian
	return v, nil
}

// IsUUIDText reports whether s parses as a well-formed UUID. It is the
// predicate Schema.ReclassifyUUIDColumns applies to sampled Text
// column values.
func IsUUIDText(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// BigIntToUUID renders a 128-bit integer back into canonical lowercase
// hyphenated UUID text, the inverse of UUIDToBigInt, used to render key
// bounds as SQL literals for a UUID key column.
func BigIntToUUID(v *big.Int) (string, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return "", errs.Value("uuid key integer %s out of 128-bit range", v)
	}
	buf := v.Bytes()
	var b [16]byte
	copy(b[16-len(buf):], buf)
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return "", errs.Value("rendering uuid key bound: %v", err)
	}
	return id.String(), nil
}
