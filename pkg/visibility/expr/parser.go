package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formengine/pkg/model"
)

// Parse compiles a textual visibility rule into OR-of-AND condition groups.
//
// Supported forms:
//   - `enabled` (is_checked) and `!enabled` (not_checked)
//   - comparisons: `plan == "pro"`, `count != 3`, `flag == true`
//   - membership: `plan in ["pro", "team"]`, `plan not in [free]`
//   - composition: `a && b == "x" || c`
//
// `&&` binds tighter than `||`. Parentheses are rejected because every rule
// must already be in OR-of-AND form. An empty rule compiles to nil, meaning
// always visible.
func Parse(rule string) (model.VisibilityRule, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	stream := &tokenStream{tokens: tokens}
	out, err := parseRule(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("visibility/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return out, nil
}

// MustParse panics when rule does not compile. Intended for static
// declarations and tests.
func MustParse(rule string) model.VisibilityRule {
	out, err := Parse(rule)
	if err != nil {
		panic(err)
	}
	return out
}

// Format renders a rule back into the textual syntax.
func Format(rule model.VisibilityRule) string {
	groups := make([]string, 0, len(rule))
	for _, group := range rule {
		conds := make([]string, 0, len(group))
		for _, cond := range group {
			conds = append(conds, formatCondition(cond))
		}
		groups = append(groups, strings.Join(conds, " && "))
	}
	return strings.Join(groups, " || ")
}

func formatCondition(cond model.Condition) string {
	switch cond.Operator {
	case model.OperatorIsChecked:
		return cond.Field
	case model.OperatorNotChecked:
		return "!" + cond.Field
	case model.OperatorEquals:
		return cond.Field + " == " + formatLiteral(cond.Value)
	case model.OperatorNotEquals:
		return cond.Field + " != " + formatLiteral(cond.Value)
	case model.OperatorIn, model.OperatorNotIn:
		items := []string{}
		switch values := cond.Value.(type) {
		case []any:
			for _, v := range values {
				items = append(items, formatLiteral(v))
			}
		case []string:
			for _, v := range values {
				items = append(items, formatLiteral(v))
			}
		default:
			items = append(items, formatLiteral(values))
		}
		op := " in "
		if cond.Operator == model.OperatorNotIn {
			op = " not in "
		}
		return cond.Field + op + "[" + strings.Join(items, ", ") + "]"
	default:
		return cond.Field
	}
}

func formatLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return strconv.Quote(fmt.Sprint(v))
	}
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenAnd
	tokenOr
	tokenNot
	tokenIn
	tokenNotKeyword
	tokenLBracket
	tokenRBracket
	tokenComma
)

type token struct {
	kind tokenKind
	raw  string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func() byte {
		if i >= len(input) {
			return 0
		}
		return input[i]
	}

	for i < len(input) {
		ch := input[i]
		switch ch {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		case '(', ')':
			return nil, errors.New("visibility/expr: parentheses are not supported; write the rule as groups joined by ||")
		case '[':
			i++
			tokens = append(tokens, token{kind: tokenLBracket, raw: "["})
			continue
		case ']':
			i++
			tokens = append(tokens, token{kind: tokenRBracket, raw: "]"})
			continue
		case ',':
			i++
			tokens = append(tokens, token{kind: tokenComma, raw: ","})
			continue
		case '!':
			i++
			if peek() == '=' {
				i++
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
			continue
		case '=':
			i++
			if peek() != '=' {
				return nil, errors.New("visibility/expr: unexpected '='; use '=='")
			}
			i++
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			continue
		case '&':
			i++
			if peek() != '&' {
				return nil, errors.New("visibility/expr: unexpected '&'; use '&&'")
			}
			i++
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			continue
		case '|':
			i++
			if peek() != '|' {
				return nil, errors.New("visibility/expr: unexpected '|'; use '||'")
			}
			i++
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			continue
		case '"', '\'':
			quote := ch
			i++
			start := i
			escaped := false
			closed := false
			for i < len(input) {
				c := input[i]
				i++
				if escaped {
					escaped = false
					continue
				}
				if c == '\\' {
					escaped = true
					continue
				}
				if c == quote {
					closed = true
					break
				}
			}
			if !closed {
				return nil, errors.New("visibility/expr: unterminated string literal")
			}
			body := input[start : i-1]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `\'`, `'`)
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return nil, fmt.Errorf("visibility/expr: invalid string literal: %w", err)
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			continue
		}

		start := i
		for i < len(input) && !isDelimiter(input[i]) {
			i++
		}
		raw := input[start:i]
		switch strings.ToLower(raw) {
		case "true", "false":
			tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
		case "null", "nil":
			tokens = append(tokens, token{kind: tokenNull, raw: "null"})
		case "in":
			tokens = append(tokens, token{kind: tokenIn, raw: "in"})
		case "not":
			tokens = append(tokens, token{kind: tokenNotKeyword, raw: "not"})
		default:
			if looksLikeNumber(raw) {
				tokens = append(tokens, token{kind: tokenNumber, raw: raw})
			} else {
				tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
			}
		}
	}

	return tokens, nil
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '[', ']', ',', '!', '=', '&', '|', '"', '\'':
		return true
	default:
		return false
	}
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+'
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseRule(stream *tokenStream) (model.VisibilityRule, error) {
	var rule model.VisibilityRule
	for {
		group, err := parseGroup(stream)
		if err != nil {
			return nil, err
		}
		rule = append(rule, group)
		if !stream.match(tokenOr) {
			return rule, nil
		}
	}
}

func parseGroup(stream *tokenStream) (model.ConditionGroup, error) {
	var group model.ConditionGroup
	for {
		cond, err := parseCondition(stream)
		if err != nil {
			return nil, err
		}
		group = append(group, cond)
		if !stream.match(tokenAnd) {
			return group, nil
		}
	}
}

func parseCondition(stream *tokenStream) (model.Condition, error) {
	if stream.match(tokenNot) {
		ident, ok := stream.consume(tokenIdentifier)
		if !ok {
			return model.Condition{}, errors.New("visibility/expr: expected field name after '!'")
		}
		return model.Condition{Field: ident.raw, Operator: model.OperatorNotChecked}, nil
	}

	ident, ok := stream.consume(tokenIdentifier)
	if !ok {
		if stream.pos >= len(stream.tokens) {
			return model.Condition{}, errors.New("visibility/expr: empty condition")
		}
		return model.Condition{}, fmt.Errorf("visibility/expr: expected field name, got %q", stream.tokens[stream.pos].raw)
	}

	switch {
	case stream.match(tokenEq):
		value, err := stream.consumeLiteral()
		if err != nil {
			return model.Condition{}, err
		}
		return model.Condition{Field: ident.raw, Operator: model.OperatorEquals, Value: value}, nil
	case stream.match(tokenNeq):
		value, err := stream.consumeLiteral()
		if err != nil {
			return model.Condition{}, err
		}
		return model.Condition{Field: ident.raw, Operator: model.OperatorNotEquals, Value: value}, nil
	case stream.match(tokenIn):
		values, err := stream.consumeList()
		if err != nil {
			return model.Condition{}, err
		}
		return model.Condition{Field: ident.raw, Operator: model.OperatorIn, Value: values}, nil
	case stream.match(tokenNotKeyword):
		if !stream.match(tokenIn) {
			return model.Condition{}, errors.New("visibility/expr: expected 'in' after 'not'")
		}
		values, err := stream.consumeList()
		if err != nil {
			return model.Condition{}, err
		}
		return model.Condition{Field: ident.raw, Operator: model.OperatorNotIn, Value: values}, nil
	}

	return model.Condition{Field: ident.raw, Operator: model.OperatorIsChecked}, nil
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) consume(kind tokenKind) (token, bool) {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return token{}, false
	}
	out := s.tokens[s.pos]
	s.pos++
	return out, true
}

func (s *tokenStream) consumeLiteral() (any, error) {
	if s.pos >= len(s.tokens) {
		return nil, errors.New("visibility/expr: missing literal")
	}
	tok := s.tokens[s.pos]
	s.pos++
	switch tok.kind {
	case tokenString, tokenIdentifier:
		// Bare identifiers are treated as strings to keep the syntax forgiving.
		return tok.raw, nil
	case tokenNumber:
		value, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("visibility/expr: invalid number literal %q", tok.raw)
		}
		return value, nil
	case tokenBool:
		return tok.raw == "true", nil
	case tokenNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("visibility/expr: expected literal, got %q", tok.raw)
	}
}

func (s *tokenStream) consumeList() ([]any, error) {
	if !s.match(tokenLBracket) {
		return nil, errors.New("visibility/expr: expected '[' to open a value list")
	}
	var values []any
	if s.match(tokenRBracket) {
		return values, nil
	}
	for {
		value, err := s.consumeLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		if s.match(tokenComma) {
			continue
		}
		if s.match(tokenRBracket) {
			return values, nil
		}
		return nil, errors.New("visibility/expr: expected ',' or ']' in value list")
	}
}
