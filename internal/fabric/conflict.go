package fabric

import (
	"encoding/json"
	"math"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/quantfab/market-gateway/internal/provenance"
)

// CheckPolicy configures one cross-checked field of a verified capability.
type CheckPolicy struct {
	// Field is the gjson path of the numeric field to compare.
	Field string

	// ThresholdPercent is the divergence tolerance. At or below it the two
	// values are averaged; above it the primary wins untouched.
	ThresholdPercent float64

	// Strategy overrides the threshold policy when set to
	// latest_timestamp or manual.
	Strategy provenance.Resolution
}

// CrossCheck compares one numeric field between the primary and secondary
// payloads and resolves any disagreement. The returned payload is the
// primary's, mutated only when the resolution picked a different value; the
// Conflict is nil when the field is absent on either side or the values
// agree exactly.
func (e *Engine) CrossCheck(primary, secondary *Result, p CheckPolicy) (json.RawMessage, *provenance.Conflict) {
	x := gjson.GetBytes(primary.Payload, p.Field)
	y := gjson.GetBytes(secondary.Payload, p.Field)
	if x.Type != gjson.Number || y.Type != gjson.Number {
		return primary.Payload, nil
	}

	xv, yv := x.Float(), y.Float()
	if xv == yv {
		return primary.Payload, nil
	}

	conflict := &provenance.Conflict{
		Field: p.Field,
		Values: map[string]any{
			primary.Meta.Provider:   xv,
			secondary.Meta.Provider: yv,
		},
	}
	diffAbs := math.Abs(xv - yv)
	conflict.DiffAbsolute = &diffAbs

	payload := primary.Payload
	switch p.Strategy {
	case provenance.ResolutionManual:
		conflict.Resolution = provenance.ResolutionManual
		conflict.FinalValue = xv

	case provenance.ResolutionLatestTimestamp:
		conflict.Resolution = provenance.ResolutionLatestTimestamp
		conflict.FinalValue = xv
		if secondary.Meta.AsOf().After(primary.Meta.AsOf()) {
			if out, err := sjson.SetBytes(payload, p.Field, yv); err == nil {
				payload = out
				conflict.FinalValue = yv
			}
		}

	default:
		// Percent divergence is relative to the primary. A zero primary
		// has no defined percent and always yields to it.
		if xv != 0 {
			pct := diffAbs / math.Abs(xv) * 100
			conflict.DiffPercent = &pct
			if pct <= p.ThresholdPercent {
				avg := (xv + yv) / 2
				if out, err := sjson.SetBytes(payload, p.Field, avg); err == nil {
					payload = out
					conflict.Resolution = provenance.ResolutionAverage
					conflict.FinalValue = avg
					break
				}
			}
		}
		conflict.Resolution = provenance.ResolutionPrimarySource
		conflict.FinalValue = xv
	}

	e.metrics.RecordConflict()
	return payload, conflict
}
