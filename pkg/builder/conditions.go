package builder

import "github.com/goliatone/go-formengine/pkg/model"

// All groups conditions that must all hold.
func All(conditions ...model.Condition) model.ConditionGroup {
	return append(model.ConditionGroup(nil), conditions...)
}

// Checked matches when the named field is checked.
func Checked(field string) model.Condition {
	return model.Condition{Field: field, Operator: model.OperatorIsChecked}
}

// NotChecked matches when the named field is not checked.
func NotChecked(field string) model.Condition {
	return model.Condition{Field: field, Operator: model.OperatorNotChecked}
}

// Equals matches when the named field equals value.
func Equals(field string, value any) model.Condition {
	return model.Condition{Field: field, Operator: model.OperatorEquals, Value: value}
}

// NotEquals matches when the named field differs from value.
func NotEquals(field string, value any) model.Condition {
	return model.Condition{Field: field, Operator: model.OperatorNotEquals, Value: value}
}

// In matches when the named field holds one of values.
func In(field string, values ...any) model.Condition {
	return model.Condition{Field: field, Operator: model.OperatorIn, Value: append([]any(nil), values...)}
}

// NotIn matches when the named field holds none of values.
func NotIn(field string, values ...any) model.Condition {
	return model.Condition{Field: field, Operator: model.OperatorNotIn, Value: append([]any(nil), values...)}
}
