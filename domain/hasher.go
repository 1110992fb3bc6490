package domain

// Hasher fingerprints message content for the render cache. A message's
// hash changes exactly once, when visual aids attach.
type Hasher interface {
	Hash(data []byte) string
}
