package tesseract

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

// DefaultMaxImageSide bounds the longer side of an image handed to tesseract.
const DefaultMaxImageSide = 1024

// contrastBoost is the imaging percentage that doubles contrast around mid gray.
const contrastBoost = 50

// Preprocess shrinks the image to fit a maxSide square (it never enlarges),
// doubles its contrast, converts it to grayscale and re-encodes it as PNG.
func Preprocess(data []byte, maxSide int) ([]byte, error) {
	if maxSide <= 0 {
		maxSide = DefaultMaxImageSide
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ocr preprocess", fmt.Errorf("decode image: %w", err))
	}

	out := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	out = imaging.AdjustContrast(out, contrastBoost)
	out = imaging.Grayscale(out)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preprocessed image: %w", err)
	}
	return buf.Bytes(), nil
}
