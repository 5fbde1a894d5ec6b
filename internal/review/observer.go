// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"fmt"
	"io"

	"github.com/pdiddy/review-engine/pkg/types"
)

// Observer receives pipeline progress events. The core publishes to this
// interface; CLI and GUI collaborators subscribe without the core depending
// on any presentation layer.
type Observer interface {
	OnStageStart(stage types.ReviewStage)
	OnPaperProcessed(paperID, action string)
	OnCheckpoint(cp types.Checkpoint)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnStageStart(types.ReviewStage)  {}
func (NopObserver) OnPaperProcessed(string, string) {}
func (NopObserver) OnCheckpoint(types.Checkpoint)   {}

// WriterObserver prints one line per event, for CLI progress output.
type WriterObserver struct {
	W io.Writer
}

func (o WriterObserver) OnStageStart(stage types.ReviewStage) {
	fmt.Fprintf(o.W, "stage %s\n", stage)
}

func (o WriterObserver) OnPaperProcessed(paperID, action string) {
	fmt.Fprintf(o.W, "  %-10s %s\n", action, paperID)
}

func (o WriterObserver) OnCheckpoint(cp types.Checkpoint) {
	fmt.Fprintf(o.W, "checkpoint %d at %s\n", cp.Seq, cp.Stage)
}
