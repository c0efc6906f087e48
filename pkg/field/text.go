package field

import (
	"html"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-f]{3}|[0-9a-f]{6})$`)

type textInstance struct {
	def   model.Field
	value string
	// raw values skip sanitising (passwords and secrets).
	raw bool
}

func (r *Registry) newText(def model.Field, in Input) Instance {
	value := strings.TrimSpace(sanitizePlain(r.strict, scalar(in.Value)))
	switch def.Type {
	case model.FieldTypeEmail:
		value = strings.ToLower(value)
	case model.FieldTypeColor:
		value = strings.ToLower(value)
	}
	return &textInstance{def: def, value: value}
}

func (r *Registry) newRichText(def model.Field, in Input) Instance {
	return &textInstance{def: def, value: strings.TrimSpace(r.rich.Sanitize(scalar(in.Value)))}
}

func newSecret(def model.Field, in Input) Instance {
	return &textInstance{def: def, value: scalar(in.Value), raw: true}
}

func (t *textInstance) Field() model.Field { return t.def }

func (t *textInstance) Value() any { return t.value }

func (t *textInstance) Validate() []string {
	if t.empty() {
		if t.def.Required {
			return []string{MessageRequired}
		}
		return nil
	}

	var problems []string
	length := utf8.RuneCountInString(t.value)
	if t.def.MinLength > 0 && length < t.def.MinLength {
		problems = append(problems, messageTooShort(t.def.MinLength))
	}
	if t.def.MaxLength > 0 && length > t.def.MaxLength {
		problems = append(problems, messageTooLong(t.def.MaxLength))
	}

	switch t.def.Type {
	case model.FieldTypeEmail:
		if !validEmail(t.value) {
			problems = append(problems, messageInvalidEmail)
		}
	case model.FieldTypeURL:
		if !validURL(t.value) {
			problems = append(problems, messageInvalidURL)
		}
	case model.FieldTypeColor:
		if !hexColor.MatchString(t.value) {
			problems = append(problems, messageInvalidColor)
		}
	}

	if t.def.Pattern != "" {
		if !matchesPattern(t.def.Pattern, t.value) {
			problems = append(problems, messagePatternMismatch)
		}
	}
	return problems
}

func (t *textInstance) empty() bool {
	if t.raw {
		return t.value == ""
	}
	return strings.TrimSpace(t.value) == ""
}

// matchesPattern applies HTML pattern semantics: the expression must match
// the whole value.
func matchesPattern(pattern, value string) bool {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	return strings.EqualFold(addr.Address, value)
}

func validURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed.Host != ""
	default:
		return false
	}
}

// maxSanitizePasses bounds how many layers of entity encoding are peeled.
const maxSanitizePasses = 8

// sanitizePlain strips markup and decodes entities, repeating until the value
// is stable so encoded markup cannot survive as live markup. A value that
// keeps changing is returned in its escaped form.
func sanitizePlain(policy *bluemonday.Policy, raw string) string {
	value := raw
	for range maxSanitizePasses {
		if value == "" {
			return ""
		}
		next := html.UnescapeString(policy.Sanitize(value))
		if next == value {
			return value
		}
		value = next
	}
	return policy.Sanitize(value)
}

// scalar reduces a submitted value to a single string. Lists contribute
// their first element.
func scalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) == 0 {
			return ""
		}
		return v[0]
	case []any:
		if len(v) == 0 {
			return ""
		}
		return visibility.Normalize(v[0])
	default:
		return visibility.Normalize(value)
	}
}
