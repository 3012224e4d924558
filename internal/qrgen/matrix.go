package qrgen

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// MaxVersion is the largest QR version.
const MaxVersion = 40

// Matrix is the module grid of an encoded QR symbol, without quiet zone.
// Modules[y][x] is true for a dark module.
type Matrix struct {
	Version int
	Level   Level
	Modules [][]bool

	payload string
}

// Size returns the number of modules per side (17 + 4*Version).
func (m *Matrix) Size() int { return len(m.Modules) }

// At reports whether the module at column x, row y is dark. Coordinates
// outside the symbol are light, matching the quiet zone.
func (m *Matrix) At(x, y int) bool {
	if y < 0 || y >= len(m.Modules) || x < 0 || x >= len(m.Modules[y]) {
		return false
	}
	return m.Modules[y][x]
}

// Equal reports whether two matrices have identical modules.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.Size() != o.Size() {
		return false
	}
	for y := range m.Modules {
		for x := range m.Modules[y] {
			if m.Modules[y][x] != o.Modules[y][x] {
				return false
			}
		}
	}
	return true
}

// Terminal renders the symbol with its quiet zone using half-block
// characters, two module rows per text line. inverse swaps dark and light for
// terminals with light text on a dark background.
func (m *Matrix) Terminal(inverse bool) (string, error) {
	q, err := qrcode.NewWithForcedVersion(m.payload, m.Version, m.Level.recovery())
	if err != nil {
		return "", fmt.Errorf("re-encode for terminal: %w", err)
	}
	return q.ToSmallString(inverse), nil
}

// buildMatrix encodes payload. version 0 selects the smallest version that fits.
func buildMatrix(payload string, level Level, version, maxVersion int) (*Matrix, error) {
	capErr := func(err error) error {
		return &CapacityExceededError{
			Length: len(payload), Level: level, Version: version, MaxVersion: maxVersion, Err: err,
		}
	}

	var (
		q   *qrcode.QRCode
		err error
	)
	if version > 0 {
		q, err = qrcode.NewWithForcedVersion(payload, version, level.recovery())
	} else {
		q, err = qrcode.New(payload, level.recovery())
	}
	if err != nil {
		return nil, capErr(err)
	}
	if q.VersionNumber > maxVersion {
		return nil, capErr(nil)
	}

	q.DisableBorder = true
	bitmap := q.Bitmap()
	return &Matrix{
		Version: q.VersionNumber,
		Level:   level,
		Modules: trimQuietZone(bitmap, 17+4*q.VersionNumber),
		payload: payload,
	}, nil
}

// trimQuietZone crops bitmap to the centred size x size symbol when the
// encoder left a border around it.
func trimQuietZone(bitmap [][]bool, size int) [][]bool {
	if len(bitmap) <= size {
		return bitmap
	}
	off := (len(bitmap) - size) / 2
	out := make([][]bool, size)
	for y := range size {
		out[y] = append([]bool(nil), bitmap[y+off][off:off+size]...)
	}
	return out
}
