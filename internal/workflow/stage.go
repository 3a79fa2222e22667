// Package workflow defines the order fulfillment stages and the rules for
// moving an order between them. It is pure: no storage, no clock, no I/O.
package workflow

import (
	"fmt"
	"strings"
)

// Stage is one step of the production/shipping workflow.
type Stage string

const (
	StagePending    Stage = "pending"
	StageDesign     Stage = "design"
	StagePrinting   Stage = "printing"
	StageQC         Stage = "qc"
	StageProduction Stage = "production"
	StageReady      Stage = "ready"
	StageShipped    Stage = "shipped"
	StageDelivered  Stage = "delivered"
)

// canonical is the full ordering of every known stage. Shorter sequences are
// subsequences of it.
var canonical = []Stage{
	StagePending, StageDesign, StagePrinting, StageQC,
	StageProduction, StageReady, StageShipped, StageDelivered,
}

// ParseStage validates s against the known stages. The empty string is read
// as pending.
func ParseStage(s string) (Stage, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return StagePending, nil
	}
	for _, st := range canonical {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "fulfillmentStatus", Message: fmt.Sprintf("estado de producción desconocido: %q", s)}
}

// Normalize maps a stored status to a Stage, treating absent or unknown
// values as pending.
func Normalize(s string) Stage {
	st, err := ParseStage(s)
	if err != nil {
		return StagePending
	}
	return st
}

// RequiresGuide reports whether entering st needs a shipment guide or the
// local delivery flag.
func RequiresGuide(st Stage) bool {
	return st == StageShipped || st == StageDelivered
}

func canonicalRank(st Stage) int {
	for i, c := range canonical {
		if c == st {
			return i
		}
	}
	return -1
}

// Sequence is an ordered, linear list of stages. The first element is the
// initial stage of every order.
type Sequence struct {
	name   string
	stages []Stage
}

var (
	// FiveStage is the standard workflow.
	FiveStage = Sequence{name: "5", stages: []Stage{
		StagePending, StageProduction, StageReady, StageShipped, StageDelivered,
	}}
	// EightStage splits production into design, printing and quality control.
	EightStage = Sequence{name: "8", stages: []Stage{
		StagePending, StageDesign, StagePrinting, StageQC,
		StageProduction, StageReady, StageShipped, StageDelivered,
	}}
)

// SequenceByName returns the sequence configured as "5" or "8".
func SequenceByName(name string) (Sequence, error) {
	switch strings.TrimSpace(name) {
	case "", "5":
		return FiveStage, nil
	case "8":
		return EightStage, nil
	default:
		return Sequence{}, fmt.Errorf("workflow: unknown sequence %q (want 5 or 8)", name)
	}
}

// Name returns the configuration name of the sequence.
func (s Sequence) Name() string { return s.name }

// Stages returns a copy of the ordered stages.
func (s Sequence) Stages() []Stage { return append([]Stage(nil), s.stages...) }

// Len returns the number of stages.
func (s Sequence) Len() int { return len(s.stages) }

// First returns the initial stage.
func (s Sequence) First() Stage { return s.stages[0] }

// Last returns the terminal stage.
func (s Sequence) Last() Stage { return s.stages[len(s.stages)-1] }

// At returns the stage at position i, clamped to [0, Len-1].
func (s Sequence) At(i int) Stage {
	return s.stages[s.clamp(i)]
}

// Index returns the position of st in the sequence. A stage that is known but
// not part of this sequence (e.g. "design" under the 5-stage workflow) maps to
// the last stage of the sequence that precedes it canonically.
func (s Sequence) Index(st Stage) int {
	rank := canonicalRank(st)
	idx := 0
	for i, c := range s.stages {
		if c == st {
			return i
		}
		if canonicalRank(c) <= rank {
			idx = i
		}
	}
	return idx
}

// Contains reports whether st is part of the sequence.
func (s Sequence) Contains(st Stage) bool {
	for _, c := range s.stages {
		if c == st {
			return true
		}
	}
	return false
}

// Next returns the stage after st. At the last stage it returns st itself.
func (s Sequence) Next(st Stage) Stage {
	return s.At(s.Index(st) + 1)
}

// Prev returns the stage before st. At the first stage it returns st itself.
func (s Sequence) Prev(st Stage) Stage {
	return s.At(s.Index(st) - 1)
}

func (s Sequence) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i > len(s.stages)-1 {
		return len(s.stages) - 1
	}
	return i
}
