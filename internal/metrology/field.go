package metrology

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Field is a derived numeric value that is either provided by the caller or
// still to be derived. Making the distinction a type (rather than a nil
// check scattered across callers) keeps the recompute-only-if-absent contract
// explicit: Derive never touches a field that is already Valid.
type Field struct {
	Value float64
	Valid bool
}

// Provided marks a value as externally supplied.
func Provided(v float64) Field {
	return Field{Value: v, Valid: true}
}

func (f Field) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f.Value, 'f', -1, 64)), nil
}

func (f *Field) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = Field{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Field{Value: v, Valid: true}
	return nil
}

// Measurement is the raw input for one calibration row.
type Measurement struct {
	Standard            float64
	M1, M2, M3          float64
	Resolution          float64
	UncertaintyStandard float64
}

// Derived holds the computed values for one row.
type Derived struct {
	Mean                Field `json:"mean"`
	Error               Field `json:"error"`
	Repeatability       Field `json:"repeatability"`
	CombinedUncertainty Field `json:"combined_uncertainty"`
	ExpandedUncertainty Field `json:"expanded_uncertainty"`
}

// Derive fills in any absent derived fields from the raw measurement.
// Fields that arrived already Valid pass through unchanged, so re-running
// Derive is idempotent and never overwrites externally supplied results.
func Derive(in Measurement, existing Derived) Derived {
	out := existing
	mean := Mean(in.M1, in.M2, in.M3)
	if !out.Mean.Valid {
		out.Mean = Provided(mean)
	}
	if !out.Error.Valid {
		out.Error = Provided(SignedError(in.Standard, mean))
	}
	if !out.Repeatability.Valid {
		out.Repeatability = Provided(Repeatability(in.M1, in.M2, in.M3))
	}
	if !out.CombinedUncertainty.Valid {
		uRes := ResolutionUncertainty(in.Resolution)
		out.CombinedUncertainty = Provided(Combined(in.UncertaintyStandard, out.Repeatability.Value, uRes))
	}
	if !out.ExpandedUncertainty.Valid {
		out.ExpandedUncertainty = Provided(Expanded(out.CombinedUncertainty.Value))
	}
	return out
}
