package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// PromptKind selects the terminal control used to collect an answer.
type PromptKind int

const (
	// PromptText collects a single line.
	PromptText PromptKind = iota
	// PromptSecret collects a single line without echo. Secrets never carry
	// a default.
	PromptSecret
	// PromptLong collects multi-line text.
	PromptLong
	// PromptToggle asks yes or no.
	PromptToggle
	// PromptChoice picks one of Options.
	PromptChoice
	// PromptMulti picks any of Options.
	PromptMulti
)

// Prompt is one question derived from a visible field.
type Prompt struct {
	Kind    PromptKind
	Field   string
	Message string
	Help    string
	// Default is the current value as text for PromptText and PromptLong.
	Default string
	// Toggled is the current state for PromptToggle.
	Toggled bool
	Options []string
	// Selected holds the indices into Options currently chosen.
	Selected []int
	// Check rejects a typed answer before it is returned. Only single-line
	// prompts use it; the renderer re-asks the others itself.
	Check func(string) error
}

// Answer carries the reply matching the prompt kind.
type Answer struct {
	Text    string
	Toggled bool
	Chosen  []int
}

// PromptDriver abstracts the terminal so sessions can be scripted in tests.
type PromptDriver interface {
	Ask(ctx context.Context, prompt Prompt) (Answer, error)
	Notify(ctx context.Context, message string) error
}

type surveyDriver struct {
	out io.Writer
}

// NewSurveyDriver returns the interactive terminal driver.
func NewSurveyDriver(out io.Writer) PromptDriver {
	if out == nil {
		out = os.Stdout
	}
	return &surveyDriver{out: out}
}

func (d *surveyDriver) Ask(ctx context.Context, p Prompt) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	var opts []survey.AskOpt
	if p.Check != nil && (p.Kind == PromptText || p.Kind == PromptSecret) {
		check := p.Check
		opts = append(opts, survey.WithValidator(func(ans any) error {
			s, _ := ans.(string)
			return check(s)
		}))
	}

	var answer Answer
	var err error
	switch p.Kind {
	case PromptToggle:
		err = survey.AskOne(&survey.Confirm{Message: p.Message, Help: p.Help, Default: p.Toggled}, &answer.Toggled)
	case PromptChoice:
		prompt := &survey.Select{Message: p.Message, Help: p.Help, Options: p.Options}
		if len(p.Selected) > 0 && p.Selected[0] >= 0 && p.Selected[0] < len(p.Options) {
			prompt.Default = p.Options[p.Selected[0]]
		}
		var picked string
		if err = survey.AskOne(prompt, &picked); err == nil {
			answer.Chosen = []int{indexOf(p.Options, picked)}
		}
	case PromptMulti:
		prompt := &survey.MultiSelect{Message: p.Message, Help: p.Help, Options: p.Options}
		if len(p.Selected) > 0 {
			prompt.Default = pick(p.Options, p.Selected)
		}
		var picked []string
		if err = survey.AskOne(prompt, &picked); err == nil {
			answer.Chosen = indicesOf(p.Options, picked)
		}
	case PromptLong:
		err = survey.AskOne(&survey.Multiline{Message: p.Message, Help: p.Help, Default: p.Default}, &answer.Text)
	case PromptSecret:
		err = survey.AskOne(&survey.Password{Message: p.Message, Help: p.Help}, &answer.Text, opts...)
	default:
		err = survey.AskOne(&survey.Input{Message: p.Message, Help: p.Help, Default: p.Default}, &answer.Text, opts...)
	}
	if errors.Is(err, terminal.InterruptErr) {
		return Answer{}, ErrAborted
	}
	if err != nil {
		return Answer{}, fmt.Errorf("tui: ask %q: %w", p.Field, err)
	}
	return answer, nil
}

func (d *surveyDriver) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, message)
	return err
}

func indexOf(options []string, value string) int {
	for i, option := range options {
		if option == value {
			return i
		}
	}
	return -1
}

func indicesOf(options, values []string) []int {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		seen[v] = true
	}
	var out []int
	for i, option := range options {
		if seen[option] {
			out = append(out, i)
		}
	}
	return out
}

// pick returns the entries of values at indices, skipping out of range ones.
func pick(values []string, indices []int) []string {
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(values) {
			out = append(out, values[idx])
		}
	}
	return out
}
