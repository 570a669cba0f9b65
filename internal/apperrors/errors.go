// Package apperrors описывает типизированные ошибки, которые сервис отдаёт вызывающему коду.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind классифицирует ошибку для вызывающего кода.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindPartialFailure Kind = "PARTIAL_FAILURE"
	KindTransport      Kind = "TRANSPORT_ERROR"
)

var statusByKind = map[Kind]int{
	KindValidation:     http.StatusBadRequest,
	KindNotFound:       http.StatusNotFound,
	KindConflict:       http.StatusConflict,
	KindPartialFailure: http.StatusInternalServerError,
	KindTransport:      http.StatusServiceUnavailable,
}

// Сигнальные значения для errors.Is.
var (
	ErrValidation     = &Error{kind: KindValidation}
	ErrNotFound       = &Error{kind: KindNotFound}
	ErrConflict       = &Error{kind: KindConflict}
	ErrPartialFailure = &Error{kind: KindPartialFailure}
	ErrTransport      = &Error{kind: KindTransport}
)

// Error описывает ошибку с видом, сообщением и исходной причиной.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New создаёт ошибку указанного вида.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap создаёт ошибку указанного вида поверх причины.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{kind: kind, message: message, cause: err}
}

// Validation создаёт ошибку вида KindValidation с форматированным сообщением.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// NotFound создаёт ошибку вида KindNotFound.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Conflict создаёт ошибку вида KindConflict.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// Kind возвращает вид ошибки.
func (e *Error) Kind() Kind {
	if e == nil {
		return ""
	}
	return e.kind
}

// Message возвращает сообщение без причины, пригодное для ответа клиенту.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap возвращает причину ошибки.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is сравнивает по виду, если target является сигнальным значением без сообщения.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.message == "" && t.cause == nil {
		return e.kind == t.kind
	}
	return e == t
}

// PartialFailureError возвращается, когда основное изменение уже применено,
// а зависимый шаг завершился ошибкой. Применённое изменение не откатывается.
type PartialFailureError struct {
	PurchaseID string
	Applied    string
	Cause      error
}

// Error реализует интерфейс error.
func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: purchase %s %s but refund failed: %v", KindPartialFailure, e.PurchaseID, e.Applied, e.Cause)
}

// Unwrap возвращает ошибку возврата средств.
func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

// Is сопоставляет ошибку с ErrPartialFailure.
func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

// KindOf возвращает вид ошибки или пустую строку для нетипизированных ошибок.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var partial *PartialFailureError
	if errors.As(err, &partial) {
		return KindPartialFailure
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.kind
	}
	return ""
}

// HTTPStatus возвращает HTTP-код для вида ошибки.
func HTTPStatus(kind Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Message возвращает сообщение, пригодное для ответа клиенту.
func Message(err error) string {
	var partial *PartialFailureError
	if errors.As(err, &partial) {
		return fmt.Sprintf("purchase %s is %s but the refund was not applied; reconcile manually", partial.PurchaseID, partial.Applied)
	}
	var typed *Error
	if errors.As(err, &typed) {
		if typed.kind == KindTransport {
			return "store unavailable, re-check current state"
		}
		return typed.message
	}
	return http.StatusText(http.StatusInternalServerError)
}
