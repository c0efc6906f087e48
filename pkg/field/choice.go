package field

import (
	"strings"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

type choiceMode int

const (
	choiceSingle choiceMode = iota
	choiceMulti
	choiceBoolean
)

type choiceInstance struct {
	def     model.Field
	mode    choiceMode
	values  []string
	checked bool
	// malformed marks a boolean input that is neither on nor off, or several
	// values for a single choice.
	malformed bool
}

func newChoice(def model.Field, in Input) Instance {
	inst := &choiceInstance{def: def}
	switch {
	case def.Type.Checkable() && len(def.Options) == 0:
		inst.mode = choiceBoolean
		if in.Present {
			checked, ok := parseBool(in.Value)
			inst.checked = checked
			inst.malformed = !ok
		}
	case def.MultiValued():
		inst.mode = choiceMulti
		inst.values = compact(visibility.List(in.Value))
	default:
		inst.mode = choiceSingle
		values := compact(visibility.List(in.Value))
		inst.malformed = len(values) > 1
		inst.values = values
	}
	return inst
}

func (c *choiceInstance) Field() model.Field { return c.def }

func (c *choiceInstance) Value() any {
	switch c.mode {
	case choiceBoolean:
		return c.checked
	case choiceMulti:
		if c.values == nil {
			return []string{}
		}
		return append([]string(nil), c.values...)
	default:
		if len(c.values) == 0 {
			return ""
		}
		return c.values[0]
	}
}

func (c *choiceInstance) Validate() []string {
	switch c.mode {
	case choiceBoolean:
		if c.malformed {
			return []string{messageInvalidBoolean}
		}
		if c.def.Required && !c.checked {
			return []string{MessageRequired}
		}
		return nil
	default:
		if len(c.values) == 0 {
			if c.def.Required {
				return []string{MessageRequired}
			}
			return nil
		}
		if c.malformed {
			return []string{messageSingleValue}
		}
		for _, value := range c.values {
			if !c.def.HasOption(value) {
				return []string{messageInvalidOption}
			}
		}
		return nil
	}
}

func compact(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// parseBool accepts the encodings checkboxes arrive in over the wire.
func parseBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	case float64:
		return v != 0, v == 0 || v == 1
	case int:
		return v != 0, v == 0 || v == 1
	}
	switch strings.ToLower(strings.TrimSpace(scalar(value))) {
	case "", "0", "false", "off", "no":
		return false, true
	case "1", "true", "on", "yes":
		return true, true
	default:
		return false, false
	}
}
