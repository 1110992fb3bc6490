package domain

import "context"

// Transcriber converts recorded audio into prompt text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer reads a piece of solution text aloud.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
