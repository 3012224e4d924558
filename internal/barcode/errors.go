package barcode

import "fmt"

// DecodeInputError reports image data the decoder cannot work with: a nil or
// empty image, an inconsistent raster, or bytes that are not an image.
type DecodeInputError struct {
	Reason string
	Err    error
}

func (e *DecodeInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode input: %s: %v", e.Reason, e.Err)
	}
	return "decode input: " + e.Reason
}

func (e *DecodeInputError) Unwrap() error { return e.Err }
