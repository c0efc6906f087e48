package field

import (
	"strings"
	"time"

	"github.com/goliatone/go-formengine/pkg/model"
)

// Canonical layouts stored for temporal fields; they mirror the HTML input
// wire formats.
const (
	LayoutDate     = "2006-01-02"
	LayoutTime     = "15:04"
	LayoutDateTime = "2006-01-02T15:04"
)

var temporalLayouts = map[model.FieldType][]string{
	model.FieldTypeDate:     {LayoutDate},
	model.FieldTypeTime:     {LayoutTime, "15:04:05"},
	model.FieldTypeDateTime: {LayoutDateTime, "2006-01-02T15:04:05", time.RFC3339, "2006-01-02 15:04"},
}

type temporalInstance struct {
	def       model.Field
	raw       string
	canonical string
	at        time.Time
	parsed    bool
}

func newTemporal(def model.Field, in Input) Instance {
	inst := &temporalInstance{def: def, raw: strings.TrimSpace(scalar(in.Value))}
	if t, ok := in.Value.(time.Time); ok {
		inst.raw = t.Format(canonicalLayout(def.Type))
	}
	if inst.raw == "" {
		return inst
	}
	for _, layout := range temporalLayouts[def.Type] {
		if at, err := time.Parse(layout, inst.raw); err == nil {
			inst.at = at
			inst.parsed = true
			inst.canonical = at.Format(canonicalLayout(def.Type))
			break
		}
	}
	return inst
}

func canonicalLayout(fieldType model.FieldType) string {
	switch fieldType {
	case model.FieldTypeTime:
		return LayoutTime
	case model.FieldTypeDateTime:
		return LayoutDateTime
	default:
		return LayoutDate
	}
}

func (t *temporalInstance) Field() model.Field { return t.def }

func (t *temporalInstance) Value() any {
	if !t.parsed {
		return t.raw
	}
	return t.canonical
}

func (t *temporalInstance) Validate() []string {
	if t.raw == "" {
		if t.def.Required {
			return []string{MessageRequired}
		}
		return nil
	}
	if !t.parsed {
		return []string{messageTemporal(humanLayout(t.def.Type))}
	}
	return nil
}

func humanLayout(fieldType model.FieldType) string {
	switch fieldType {
	case model.FieldTypeTime:
		return "HH:MM"
	case model.FieldTypeDateTime:
		return "YYYY-MM-DDTHH:MM"
	default:
		return "YYYY-MM-DD"
	}
}
