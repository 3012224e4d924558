package barcode

import (
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

var zxingFormats = map[gozxing.BarcodeFormat]Format{
	gozxing.BarcodeFormat_QR_CODE:     FormatQR,
	gozxing.BarcodeFormat_DATA_MATRIX: FormatDataMatrix,
	gozxing.BarcodeFormat_CODE_128:    FormatCode128,
	gozxing.BarcodeFormat_CODE_39:     FormatCode39,
	gozxing.BarcodeFormat_EAN_8:       FormatEAN8,
	gozxing.BarcodeFormat_EAN_13:      FormatEAN13,
	gozxing.BarcodeFormat_UPC_A:       FormatUPCA,
	gozxing.BarcodeFormat_UPC_E:       FormatUPCE,
	gozxing.BarcodeFormat_ITF:         FormatITF,
	gozxing.BarcodeFormat_CODABAR:     FormatCodabar,
}

func mapFormatFromZXing(f gozxing.BarcodeFormat) Format {
	if v, ok := zxingFormats[f]; ok {
		return v
	}
	return FormatUnknown
}

func readerFor(f Format) gozxing.Reader {
	switch f {
	case FormatQR:
		return qrcode.NewQRCodeReader()
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixReader()
	case FormatCode128:
		return oned.NewCode128Reader()
	case FormatCode39:
		return oned.NewCode39Reader()
	case FormatEAN8:
		return oned.NewEAN8Reader()
	case FormatEAN13:
		return oned.NewEAN13Reader()
	case FormatUPCA:
		return oned.NewUPCAReader()
	case FormatUPCE:
		return oned.NewUPCEReader()
	case FormatITF:
		return oned.NewITFReader()
	case FormatCodabar:
		return oned.NewCodaBarReader()
	default:
		return nil
	}
}

// multiFormatReader tries one reader per requested symbology and returns the
// first success. It satisfies gozxing.Reader so it can be handed to the
// multiple-barcode sweep.
type multiFormatReader struct {
	readers []gozxing.Reader
}

func newMultiFormatReader(formats []Format) *multiFormatReader {
	if len(formats) == 0 {
		formats = AllFormats()
	}
	m := &multiFormatReader{}
	seen := make(map[Format]bool, len(formats))
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true
		if r := readerFor(f); r != nil {
			m.readers = append(m.readers, r)
		}
	}
	return m
}

func (m *multiFormatReader) DecodeWithoutHints(bmp *gozxing.BinaryBitmap) (*gozxing.Result, error) {
	return m.Decode(bmp, nil)
}

func (m *multiFormatReader) Decode(
	bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{},
) (*gozxing.Result, error) {
	var firstErr error
	for _, r := range m.readers {
		res, err := r.Decode(bmp, hints)
		if err == nil {
			return res, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = gozxing.NewNotFoundException("no readers configured")
	}
	return nil, firstErr
}

func (m *multiFormatReader) Reset() {
	for _, r := range m.readers {
		r.Reset()
	}
}

func (o Options) hints() map[gozxing.DecodeHintType]interface{} {
	h := make(map[gozxing.DecodeHintType]interface{}, 2)
	if o.TryHarder {
		h[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if o.CharacterSet != "" {
		h[gozxing.DecodeHintType_CHARACTER_SET] = o.CharacterSet
	}
	return h
}
