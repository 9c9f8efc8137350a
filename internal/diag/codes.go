package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Ownership inference and duplication insertion.
	OwnTraitMismatch        Code = 3001
	OwnTraitArity           Code = 3002
	OwnTraitUnknownMethod   Code = 3003
	OwnPartialMoveReuse     Code = 3004
	OwnMovedInLoop          Code = 3005
	OwnEscapingCaptureReuse Code = 3006
	OwnInferenceDiverged    Code = 3007
	OwnDuplicateDecl        Code = 3008
	OwnUnknownTrait         Code = 3009

	// Observability.
	ObsTimings Code = 5001
)

var codeDescription = map[Code]string{
	UnknownCode:             "Unknown error",
	OwnTraitMismatch:        "Body usage contradicts trait-mandated ownership",
	OwnTraitArity:           "Trait method arity mismatch",
	OwnTraitUnknownMethod:   "Method is not declared by the trait",
	OwnPartialMoveReuse:     "Use of partially moved value",
	OwnMovedInLoop:          "Value duplicated on every loop iteration",
	OwnEscapingCaptureReuse: "Value captured by escaping closure is used afterwards",
	OwnInferenceDiverged:    "Signature inference did not reach a fixed point",
	OwnDuplicateDecl:        "Duplicate declaration",
	OwnUnknownTrait:         "Implemented trait is not declared",
	ObsTimings:              "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("OWN%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
