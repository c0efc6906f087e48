package loader

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formengine/pkg/builder"
	"github.com/goliatone/go-formengine/pkg/model"
)

// applyShowWhen attaches a visibility rule in one of three shapes:
//
//	showWhen: "enable && plan in [\"pro\"]"      # expression
//	showWhen: [{field: enable, operator: is_checked}]   # one AND group
//	showWhen: [[{field: a, ...}], [{field: b, ...}]]    # OR of AND groups
func applyShowWhen(handle *builder.FieldHandle, raw any) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) != "" {
			handle.ShowWhenExpr(v)
		}
		return nil
	case map[string]any:
		cond, err := parseCondition(v)
		if err != nil {
			return err
		}
		handle.ShowWhen(model.ConditionGroup{cond})
		return nil
	case []any:
		if len(v) == 0 {
			return nil
		}
		if _, nested := v[0].([]any); nested {
			for idx, item := range v {
				list, ok := item.([]any)
				if !ok {
					return fmt.Errorf("showWhen group %d must be a list of conditions", idx)
				}
				group, err := parseGroup(list)
				if err != nil {
					return err
				}
				handle.ShowWhen(group)
			}
			return nil
		}
		group, err := parseGroup(v)
		if err != nil {
			return err
		}
		handle.ShowWhen(group)
		return nil
	default:
		return fmt.Errorf("showWhen must be an expression or a list of conditions, got %T", raw)
	}
}

func parseGroup(items []any) (model.ConditionGroup, error) {
	group := make(model.ConditionGroup, 0, len(items))
	for idx, item := range items {
		values, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("showWhen condition %d must be an object", idx)
		}
		cond, err := parseCondition(values)
		if err != nil {
			return nil, err
		}
		group = append(group, cond)
	}
	return group, nil
}

func parseCondition(values map[string]any) (model.Condition, error) {
	name := scalarString(values["field"])
	if name == "" {
		return model.Condition{}, fmt.Errorf("showWhen condition needs a field")
	}
	op := model.Operator(scalarString(values["operator"]))
	if op == "" {
		op = model.OperatorIsChecked
		if _, ok := values["value"]; ok {
			op = model.OperatorEquals
		}
	}
	if !op.Valid() {
		return model.Condition{}, fmt.Errorf("showWhen condition on %q has unknown operator %q", name, op)
	}
	return model.Condition{Field: name, Operator: op, Value: values["value"]}, nil
}
