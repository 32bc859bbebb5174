// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderResponseInvalid Code = "provider.response.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderRateLimited     Code = "provider.upstream.rate_limited"
	CodeProviderModelUnknown    Code = "provider.model.not_found"

	CodeEngineInvalidInput   Code = "engine.chat.invalid_input"
	CodeEngineTurnFailure    Code = "engine.chat.failure"
	CodeEngineTurnTimeout    Code = "engine.turn.timeout"
	CodeEngineSessionClosed  Code = "engine.session.closed"
	CodeEngineContractRepair Code = "engine.contract.failure"

	CodeToolNotFound         Code = "tool.registry.not_found"
	CodeToolInvalidArgument  Code = "tool.args.invalid_input"
	CodeToolExecutionFailure Code = "tool.execute.failure"
	CodeToolBlocked          Code = "tool.trust.denied"
	CodeToolBudgetExceeded   Code = "tool.budget.exceeded"

	CodeStoreNotFound        Code = "store.entity.not_found"
	CodeStoreInvalidInput    Code = "store.invalid_input"
	CodeStoreConflict        Code = "store.conflict"
	CodeStoreDatabaseFailure Code = "store.database.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSessionKey(value string) Attr {
	return Field("session_key", value)
}

func FieldUserID(value string) Attr {
	return Field("user_id", value)
}

func FieldTool(value string) Attr {
	return Field("tool", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

// FieldStatus attaches an HTTP-like status carried by a provider error.
// The retry wrapper reads it back via StatusOf.
func FieldStatus(status int) Attr {
	return Field("status", status)
}

// coded pins the code applied at a wrapping site. oops resolves Code()
// to the deepest coded error in the chain, which makes a code applied
// by Wrap over an already-coded error invisible; CodeOf looks for the
// outermost coded wrapper first so the latest classification wins.
type coded struct {
	code Code
	err  error
}

func (e *coded) Error() string { return e.err.Error() }

func (e *coded) Unwrap() error { return e.err }

func New(code Code, msg string, fields ...Attr) error {
	return &coded{code: code, err: oops.Code(code).With(flatten(fields)...).New(msg)}
}

func Errorf(code Code, format string, args ...any) error {
	return &coded{code: code, err: oops.Code(code).Errorf(format, args...)}
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return &coded{code: code, err: oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)}
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return &coded{code: code, err: oops.Code(code).Wrapf(err, format, args...)}
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeEngineTurnFailure
	}

	return &coded{code: code, err: oops.Code(code).With(flatten(fields)...).Wrap(err)}
}

func CodeOf(err error) Code {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if c, ok := e.(*coded); ok {
			return c.code
		}
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := oopsErr.Code().(type) {
	case nil:
		return ""
	case Code:
		return code
	case string:
		return Code(code)
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// StatusOf returns the HTTP-like status attached to err via FieldStatus,
// or 0 when none is present.
func StatusOf(err error) int {
	fields := FieldsOf(err)
	if fields == nil {
		return 0
	}

	switch v := fields["status"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsDenied(err error) bool {
	return reason(CodeOf(err)) == "denied"
}

func IsBudgetExceeded(err error) bool {
	r := reason(CodeOf(err))
	return r == "exceeded" || r == "budget_exceeded"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream")
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}

	return &coded{code: CodeEngineTurnFailure, err: oops.Code(CodeEngineTurnFailure).Wrap(joined)}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
