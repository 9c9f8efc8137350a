package driver

import (
	"encoding/json"
	"fmt"

	"owninfer/internal/diag"
	"owninfer/internal/observ"
	"owninfer/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	RunID   string               `json:"run_id,omitempty"`
	Rounds  int                  `json:"rounds"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// appendTimingDiagnostic records the phase report as an info diagnostic
// whose note carries the JSON payload. It is added even when the bag is
// full.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "owninfer"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms in %d round(s)", payload.Kind, payload.TotalMS, payload.Rounds)

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	entry := diag.Diagnostic{
		Severity: diag.SevInfo,
		Code:     diag.ObsTimings,
		Message:  msg,
		Primary:  source.NoSpan,
		Notes: []diag.Note{
			{Span: source.NoSpan, Msg: string(data)},
		},
	}

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(bag.Len() + 1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
