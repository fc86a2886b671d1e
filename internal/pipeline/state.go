package pipeline

import (
	"context"
	"fmt"
)

type State int

const (
	StateIdle State = iota
	StateExtracting
	StateTokenizing
	StateChunking
	StateSummarizing
	StateAggregating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateTokenizing:
		return "tokenizing"
	case StateChunking:
		return "chunking"
	case StateSummarizing:
		return "summarizing"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Event is emitted on every state transition of one summarization request.
type Event struct {
	Document string
	State    State
	// Chunk is the 1-based chunk being summarized in StateSummarizing.
	Chunk      int
	ChunkCount int
	TokenCount int
	Summary    string
	Err        error
}

type Observer interface {
	Observe(ctx context.Context, e Event)
}

type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) {
	f(ctx, e)
}
