package field

import (
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-formengine/pkg/model"
)

type numberInstance struct {
	def    model.Field
	raw    string
	number float64
	parsed bool
}

func newNumber(def model.Field, in Input) Instance {
	inst := &numberInstance{def: def}
	switch v := in.Value.(type) {
	case float64:
		inst.number, inst.parsed = v, true
	case int:
		inst.number, inst.parsed = float64(v), true
	case int64:
		inst.number, inst.parsed = float64(v), true
	default:
		inst.raw = strings.TrimSpace(scalar(in.Value))
		if inst.raw != "" {
			if n, err := strconv.ParseFloat(inst.raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
				inst.number, inst.parsed = n, true
			}
		}
	}
	return inst
}

func (n *numberInstance) Field() model.Field { return n.def }

// Value returns the parsed number, or nil for an empty submission.
func (n *numberInstance) Value() any {
	if !n.parsed {
		return nil
	}
	return n.number
}

func (n *numberInstance) Validate() []string {
	if !n.parsed && n.raw == "" {
		if n.def.Required {
			return []string{MessageRequired}
		}
		return nil
	}
	if !n.parsed {
		return []string{messageInvalidNumber}
	}

	var problems []string
	if n.def.Min != nil && n.number < *n.def.Min {
		problems = append(problems, messageBelowMin(*n.def.Min))
	}
	if n.def.Max != nil && n.number > *n.def.Max {
		problems = append(problems, messageAboveMax(*n.def.Max))
	}
	if n.def.Step != nil && *n.def.Step > 0 {
		base := 0.0
		if n.def.Min != nil {
			base = *n.def.Min
		}
		steps := (n.number - base) / *n.def.Step
		if math.Abs(steps-math.Round(steps)) > 1e-9 {
			problems = append(problems, messageStep(*n.def.Step))
		}
	}
	return problems
}
