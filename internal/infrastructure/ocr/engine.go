package ocr

import "context"

// Word is one recognized token. Confidence is in [0,1]; engines that cannot
// score a token report a non-positive value.
type Word struct {
	Text       string
	Confidence float64
}

// Recognition is the raw engine output for one page.
type Recognition struct {
	Text  string
	Words []Word
}

// Input is a single encoded page submitted for recognition.
type Input struct {
	// Image is the PNG-encoded page payload.
	Image []byte
	// Language selects the trained data, e.g. "eng".
	Language string
	// DPI carries the effective dots-per-inch; zero means unknown.
	DPI int
	// Variables passes engine-specific knobs (e.g. page segmentation mode)
	// without hard-coding them into the API surface.
	Variables map[string]string
}

// Engine is the OCR provider contract: one page in, one recognition out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Recognition, error)
}
