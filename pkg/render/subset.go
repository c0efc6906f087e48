package render

import (
	"strings"
)

// Metadata keys read by subset filtering.
const (
	GroupMeta = "group"
	TagsMeta  = "tags"
)

// FieldSubset selects fields by group, tag or explicit name. A field matches
// when any filter matches; an empty subset keeps every field.
type FieldSubset struct {
	Groups []string
	Tags   []string
	Names  []string
}

// Empty reports whether no filter is set.
func (s FieldSubset) Empty() bool {
	return len(s.Groups) == 0 && len(s.Tags) == 0 && len(s.Names) == 0
}

// ApplySubset marks fields outside subset as not visible. Fields are kept in
// the view so hidden values stay addressable; only drawing is affected.
func ApplySubset(view View, subset FieldSubset) View {
	if subset.Empty() {
		return view
	}
	matcher := newSubsetMatcher(subset)
	out := view.Clone()
	for idx := range out.Fields {
		if !matcher.matches(out.Fields[idx]) {
			out.Fields[idx].Visible = false
		}
	}
	return out
}

type subsetMatcher struct {
	groups map[string]struct{}
	tags   map[string]struct{}
	names  map[string]struct{}
}

func newSubsetMatcher(subset FieldSubset) subsetMatcher {
	return subsetMatcher{
		groups: normaliseTokens(subset.Groups),
		tags:   normaliseTokens(subset.Tags),
		names:  normaliseTokens(subset.Names),
	}
}

func (m subsetMatcher) matches(view FieldView) bool {
	field := view.Field
	if _, ok := m.names[normaliseToken(field.Name)]; ok {
		return true
	}
	if group := normaliseToken(field.Metadata[GroupMeta]); group != "" {
		if _, ok := m.groups[group]; ok {
			return true
		}
	}
	for _, tag := range parseTokenList(field.Metadata[TagsMeta]) {
		if _, ok := m.tags[tag]; ok {
			return true
		}
	}
	return false
}

func normaliseTokens(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		if token := normaliseToken(value); token != "" {
			out[token] = struct{}{}
		}
	}
	return out
}

func normaliseToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func parseTokenList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if token := normaliseToken(part); token != "" {
			out = append(out, token)
		}
	}
	return out
}
