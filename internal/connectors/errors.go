package connectors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Коды классифицированных ошибок
const (
	CodeNetworkError    = "NETWORK_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeHTTPError       = "HTTP_ERROR"
	CodeUnknownError    = "UNKNOWN_ERROR"
)

// errorMessages — локализованные сообщения для известных кодов бэкенда.
var errorMessages = map[string]string{
	"UNAUTHORIZED":        "인증이 필요합니다. 다시 로그인해주세요.",
	"FORBIDDEN":           "이 작업을 수행할 권한이 없습니다.",
	"INVALID_CREDENTIALS": "아이디 또는 비밀번호가 올바르지 않습니다.",

	"EVENT_NOT_FOUND":      "이벤트를 찾을 수 없습니다.",
	"INCIDENT_NOT_FOUND":   "인시던트를 찾을 수 없습니다.",
	"ASSET_NOT_FOUND":      "자산을 찾을 수 없습니다.",
	"ALERT_RULE_NOT_FOUND": "알림 규칙을 찾을 수 없습니다.",
	"USER_NOT_FOUND":       "사용자를 찾을 수 없습니다.",

	CodeValidationError: "입력값이 올바르지 않습니다.",

	"INTERNAL_SERVER_ERROR": "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요.",
	CodeNetworkError:        "네트워크 연결을 확인해주세요.",

	CodeUnknownError: "알 수 없는 오류가 발생했습니다.",
}

// LocalizedMessage возвращает сообщение для кода или "" если код неизвестен.
func LocalizedMessage(code string) string {
	return errorMessages[code]
}

// HTTPError — бэкенд ответил не-2xx статусом.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// NetworkError — ответа не было вообще (сеть, таймаут, открытый предохранитель).
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: no response: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError — нормализованное описание неудачного вызова.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Status  int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// ValidationIssue — элемент списка ошибок валидации полей.
type ValidationIssue struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type,omitempty"`
}

type errorBody struct {
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// Classify нормализует ошибку удаленного вызова. Порядок правил важен.
func Classify(err error) *APIError {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return &APIError{
			Code:    CodeNetworkError,
			Message: errorMessages[CodeNetworkError],
			Status:  0,
		}
	}

	status := httpErr.Status
	var body errorBody
	if len(httpErr.Body) == 0 || json.Unmarshal(httpErr.Body, &body) != nil {
		return unknown(status)
	}

	// 1. Стандартный формат {error: {code, message, details}}
	if body.Error != nil {
		code := codeString(body.Error.Code)
		msg := errorMessages[code]
		if code == "" {
			code = CodeUnknownError
		}
		if msg == "" {
			msg = body.Error.Message
		}
		if msg == "" {
			msg = errorMessages[CodeUnknownError]
		}
		return &APIError{Code: code, Message: msg, Details: body.Error.Details, Status: status}
	}

	detail := strings.TrimSpace(string(body.Detail))

	// 2. Список ошибок валидации полей
	if strings.HasPrefix(detail, "[") {
		var issues []ValidationIssue
		if err := json.Unmarshal(body.Detail, &issues); err == nil {
			parts := make([]string, 0, len(issues))
			for _, is := range issues {
				parts = append(parts, fmt.Sprintf("%s: %s", joinLoc(is.Loc), is.Msg))
			}
			return &APIError{
				Code:    CodeValidationError,
				Message: strings.Join(parts, ", "),
				Details: issues,
				Status:  status,
			}
		}
	}

	// 3. Простой текст в detail
	var text string
	if strings.HasPrefix(detail, `"`) && json.Unmarshal(body.Detail, &text) == nil && text != "" {
		return &APIError{Code: CodeHTTPError, Message: text, Status: status}
	}

	return unknown(status)
}

func unknown(status int) *APIError {
	return &APIError{
		Code:    CodeUnknownError,
		Message: errorMessages[CodeUnknownError],
		Status:  status,
	}
}

func joinLoc(loc []any) string {
	parts := make([]string, 0, len(loc))
	for _, p := range loc {
		switch v := p.(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, fmt.Sprintf("%g", v))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ".")
}

// ErrorMessage — человекочитаемое сообщение для UI.
func ErrorMessage(err error) string {
	return Classify(err).Message
}

// StatusOf возвращает HTTP статус ответа или 0, если ответа не было.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

func IsAuthError(err error) bool       { return StatusOf(err) == http.StatusUnauthorized }
func IsPermissionError(err error) bool { return StatusOf(err) == http.StatusForbidden }
func IsNotFoundError(err error) bool   { return StatusOf(err) == http.StatusNotFound }
func IsValidationError(err error) bool { return StatusOf(err) == http.StatusUnprocessableEntity }
func IsServerError(err error) bool     { return StatusOf(err) >= http.StatusInternalServerError }

func IsNetworkError(err error) bool {
	var httpErr *HTTPError
	return err != nil && !errors.As(err, &httpErr)
}

// codeString приводит code к строке: сервер иногда шлет число.
func codeString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return ""
	}
}
