package domain

import "context"

// SolveRequest carries one solve turn to the language-model backend.
// History must already be bounded by the caller (see BoundedHistory).
type SolveRequest struct {
	Prompt     string
	GradeLevel GradeLevel
	History    []Message
	Mode       Mode
	Pro        bool
	Media      *Media
}

// Solver abstracts the language-model backend. Solve never fails from the
// caller's point of view: backend errors come back as the fixed apology
// string, so rendering code never observes a network-layer error.
type Solver interface {
	Solve(ctx context.Context, req SolveRequest) string
}

// VisualAidGenerator produces one illustration per directive. An error means
// the aid is absent for that prompt; sibling prompts are unaffected.
type VisualAidGenerator interface {
	GenerateVisualAid(ctx context.Context, prompt string) (string, error)
}
