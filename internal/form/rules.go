package form

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

type ruleKind int

const (
	ruleRequired ruleKind = iota
	ruleEmail
	rulePhone
	ruleMinLength
	ruleMaxLength
	ruleCustom
)

// CustomFunc возвращает текст ошибки или "" если значение корректно.
// values — снимок всех полей формы.
type CustomFunc func(value string, values map[string]string) string

// Rule — одно правило проверки поля.
type Rule struct {
	kind ruleKind
	n    int
	fn   CustomFunc
}

func Required() Rule { return Rule{kind: ruleRequired} }
func Email() Rule { return Rule{kind: ruleEmail} }
func Phone() Rule { return Rule{kind: rulePhone} }
func MinLength(n int) Rule { return Rule{kind: ruleMinLength, n: n} }
func MaxLength(n int) Rule { return Rule{kind: ruleMaxLength, n: n} }
func Custom(fn CustomFunc) Rule { return Rule{kind: ruleCustom, fn: fn} }

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^01[0-9]-?[0-9]{3,4}-?[0-9]{4}$`)
)

// check — пустое значение проходит все правила, кроме Required и Custom.
func (r Rule) check(value string, values map[string]string) string {
	switch r.kind {
	case ruleRequired:
		if strings.TrimSpace(value) == "" {
			return "필수 입력 항목입니다"
		}
	case ruleEmail:
		if value != "" && !emailRe.MatchString(value) {
			return "올바른 이메일 형식이 아닙니다"
		}
	case rulePhone:
		if value != "" && !phoneRe.MatchString(strings.ReplaceAll(value, "-", "")) {
			return "올바른 전화번호 형식이 아닙니다 (예: 010-1234-5678)"
		}
	case ruleMinLength:
		if value != "" && utf8.RuneCountInString(value) < r.n {
			return fmt.Sprintf("최소 %d자 이상 입력해주세요", r.n)
		}
	case ruleMaxLength:
		if value != "" && utf8.RuneCountInString(value) > r.n {
			return fmt.Sprintf("최대 %d자까지 입력 가능합니다", r.n)
		}
	case ruleCustom:
		if r.fn != nil {
			return r.fn(value, values)
		}
	}
	return ""
}
