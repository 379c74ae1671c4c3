package serial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedReference = errors.New("malformed log reference")
	ErrMalformedSerial    = errors.New("malformed serial")
)

const (
	seqStart  = 6
	seqEnd    = 13
	seqDigits = seqEnd - seqStart
	maxSeq    = 9999999
)

// DerivePosition returns the 0-based panel position encoded in the file name
// of a test log reference, e.g. `C:\logs\3-20240101-xyz.log` is position 2.
func DerivePosition(logRef string) (int, error) {
	segments := strings.FieldsFunc(logRef, func(r rune) bool { return r == '/' || r == '\\' })
	if len(segments) == 0 {
		return 0, fmt.Errorf("%w: empty reference", ErrMalformedReference)
	}
	name := segments[len(segments)-1]

	prefix, _, found := strings.Cut(name, "-")
	if !found {
		return 0, fmt.Errorf("%w: %q has no position prefix", ErrMalformedReference, name)
	}

	n, err := strconv.ParseUint(prefix, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: position prefix %q: %v", ErrMalformedReference, prefix, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: position prefix of %q is zero", ErrMalformedReference, name)
	}

	return int(n) - 1, nil
}

// Sequence returns the 7-digit sequence number stored in bytes [6,13) of a serial.
func Sequence(serial string) (int, error) {
	if len(serial) < seqEnd {
		return 0, fmt.Errorf("%w: %q is shorter than %d bytes", ErrMalformedSerial, serial, seqEnd)
	}
	n, err := strconv.ParseUint(serial[seqStart:seqEnd], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: sequence field %q: %v", ErrMalformedSerial, serial[seqStart:seqEnd], err)
	}
	return int(n), nil
}

// GenerateSiblings rebuilds the serial numbers of every board on the panel
// from one known serial and its position. The result is indexed by position.
func GenerateSiblings(serial string, position, panelSize int) ([]string, error) {
	if panelSize < 1 {
		return nil, fmt.Errorf("%w: panel size %d", ErrMalformedSerial, panelSize)
	}
	if position < 0 || position >= panelSize {
		return nil, fmt.Errorf("%w: position %d outside panel of %d", ErrMalformedSerial, position, panelSize)
	}

	seq, err := Sequence(serial)
	if err != nil {
		return nil, err
	}
	if seq < position {
		return nil, fmt.Errorf("%w: sequence %d is below position %d", ErrMalformedSerial, seq, position)
	}

	base := seq - position
	if base+panelSize-1 > maxSeq {
		return nil, fmt.Errorf("%w: sequence %d overflows %d digits", ErrMalformedSerial, base+panelSize-1, seqDigits)
	}

	serials := make([]string, 0, panelSize)
	for i := 0; i < panelSize; i++ {
		serials = append(serials, fmt.Sprintf("%s%0*d%s", serial[:seqStart], seqDigits, base+i, serial[seqEnd:]))
	}

	return serials, nil
}
