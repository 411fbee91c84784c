package password

import "errors"

// MinLength is the shortest password any hasher accepts.
const MinLength = 8

var (
	// ErrTooShort is returned by Hash for passwords under MinLength bytes.
	ErrTooShort = errors.New("password: too short")
	// ErrTooLong is returned by Hash for passwords over the hasher's limit.
	ErrTooLong = errors.New("password: too long")
)

// MaxBytes returns the longest password h accepts, or zero when h has no
// limit or is not a hasher from this package.
func MaxBytes(h any) int {
	if l, ok := h.(interface{ MaxBytes() int }); ok {
		return l.MaxBytes()
	}
	return 0
}

func checkLength(password string, max int) error {
	// Raw bytes, no Unicode normalization.
	if len(password) < MinLength {
		return ErrTooShort
	}
	if max > 0 && len(password) > max {
		return ErrTooLong
	}
	return nil
}
