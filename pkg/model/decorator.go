package model

// Decorator enriches a form definition after it has been built, for example to
// apply labels or options sourced from somewhere other than the declaration.
type Decorator interface {
	Decorate(*Form) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*Form) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(form *Form) error {
	return fn(form)
}

// ApplyDecorators runs decorators in order, stopping at the first error.
func ApplyDecorators(form *Form, decorators ...Decorator) error {
	if form == nil {
		return nil
	}
	for _, decorator := range decorators {
		if decorator == nil {
			continue
		}
		if err := decorator.Decorate(form); err != nil {
			return err
		}
	}
	return nil
}
