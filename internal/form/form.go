package form

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"
)

// SubmitFunc получает снимок значений формы.
type SubmitFunc func(ctx context.Context, values map[string]string) error

// Form — состояние формы: значения, ошибки, отметки touched и флаг отправки.
// Ошибки хранятся только для полей, у которых есть правила.
type Form struct {
	initial map[string]string
	rules   map[string][]Rule
	logger  *zap.Logger

	mu         sync.Mutex
	values     map[string]string
	errors     map[string]string
	touched    map[string]bool
	submitting bool
}

func New(initial map[string]string, rules map[string][]Rule, logger *zap.Logger) *Form {
	f := &Form{
		initial: maps.Clone(initial),
		rules:   rules,
		logger:  logger.Named("form"),
	}
	f.resetLocked()
	return f
}

func (f *Form) resetLocked() {
	f.values = maps.Clone(f.initial)
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.errors = make(map[string]string)
	f.touched = make(map[string]bool)
	f.submitting = false
}

// HandleChange меняет значение. Поле перепроверяется, только если уже было touched.
func (f *Form) HandleChange(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[field] = value
	if f.touched[field] {
		f.validateLocked(field)
	}
}

func (f *Form) HandleBlur(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[field] = true
	f.validateLocked(field)
}

// ValidateField возвращает ошибку первого сработавшего правила или "".
func (f *Form) ValidateField(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked(field)
}

func (f *Form) validateLocked(field string) string {
	rules, ok := f.rules[field]
	if !ok {
		return ""
	}
	value := f.values[field]
	for _, r := range rules {
		if msg := r.check(value, f.values); msg != "" {
			f.errors[field] = msg
			return msg
		}
	}
	f.errors[field] = ""
	return ""
}

// ValidateAll проверяет все поля с правилами, без короткого замыкания.
func (f *Form) ValidateAll() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateAllLocked()
}

func (f *Form) validateAllLocked() bool {
	valid := true
	for field := range f.rules {
		if f.validateLocked(field) != "" {
			valid = false
		}
	}
	return valid
}

// HandleSubmit помечает все поля touched и вызывает submit, если форма валидна.
// Ошибка submit логируется, вызывающий получает false.
func (f *Form) HandleSubmit(ctx context.Context, submit SubmitFunc) bool {
	f.mu.Lock()
	for field := range f.rules {
		f.touched[field] = true
	}
	if !f.validateAllLocked() {
		f.mu.Unlock()
		return false
	}
	f.submitting = true
	values := maps.Clone(f.values)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	if err := submit(ctx, values); err != nil {
		f.logger.Error("form submission error", zap.Error(err))
		return false
	}
	return true
}

func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

// IsValid — нет ни одной записанной ошибки. До первой проверки форма валидна.
func (f *Form) IsValid() bool {
	return !f.HasErrors()
}

func (f *Form) HasErrors() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.errors {
		if msg != "" {
			return true
		}
	}
	return false
}

func (f *Form) Value(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[field]
}

func (f *Form) Values() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.values)
}

// Errors — только непустые ошибки.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errors))
	for field, msg := range f.errors {
		if msg != "" {
			out[field] = msg
		}
	}
	return out
}

func (f *Form) Touched(field string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched[field]
}

func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}
