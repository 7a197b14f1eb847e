// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeProviderUnreachable     Code = "provider.request.unreachable"
	CodeProviderTimeout         Code = "provider.request.timeout"
	CodeProviderRateLimited     Code = "provider.request.rate_limited"
	CodeProviderUnauthorized    Code = "provider.auth.unauthorized"
	CodeProviderMalformed       Code = "provider.response.malformed"
	CodeProviderKeyInvalid      Code = "provider.key.invalid"
	CodeProviderKeyCheckFailed  Code = "provider.key.check_failed"
	CodeProviderModeUnsupported Code = "provider.mode.unsupported"

	CodeCatalogSourceMissing    Code = "catalog.source.missing"
	CodeCatalogSourceUnreadable Code = "catalog.source.unreadable"
	CodeCatalogCaptionsInvalid  Code = "catalog.captions.invalid"
	CodeCatalogRecordNotFound   Code = "catalog.record.not_found"

	CodeConfigLoadReadFailure      Code = "config.load.read_failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigPatternInvalid       Code = "config.pattern.invalid"

	CodeStoreOpenFailure        Code = "store.open.failure"
	CodeStoreQueryFailure       Code = "store.query.failure"
	CodeStoreWriteFailure       Code = "store.write.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreVectorMalformed    Code = "store.vector.malformed"

	CodeSecretNotFound     Code = "secret.get.not_found"
	CodeSecretStoreFailure Code = "secret.store.failure"
	CodeSecretInputInvalid Code = "secret.input.invalid"
	CodeSecretURIInvalid   Code = "secret.uri.invalid"

	CodeServerRequestInvalid    Code = "server.request.invalid"
	CodeServerEntityNotFound    Code = "server.entity.not_found"
	CodeServerInternalFailure   Code = "server.internal.failure"
	CodeServerStartFailure      Code = "server.start.failure"
	CodeServerShutdownFailure   Code = "server.shutdown.failure"
	CodeServerRateLimitExceeded Code = "server.ratelimit.rate_limited"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
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

func FieldIdentifier(value string) Attr {
	return Field("identifier", value)
}

func FieldSource(value string) Attr {
	return Field("source", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
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

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsRateLimited(err error) bool {
	return reason(CodeOf(err)) == "rate_limited"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsProviderFailure reports whether the error originated at the embedding
// provider boundary, whatever the specific reason.
func IsProviderFailure(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "provider.")
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsRateLimited(err):
		return http.StatusTooManyRequests
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsProviderFailure(err):
		return http.StatusBadGateway
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Join merges errs into one error carrying the code of the first coded
// member, so a batch of collected domain errors still classifies as its
// domain. Uncoded members fall back to an internal-failure code.
func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}

	code := CodeServerInternalFailure
	for _, err := range errs {
		if err == nil {
			continue
		}
		if c := CodeOf(err); c != "" {
			code = c
			break
		}
	}

	return oops.Code(code).Wrap(joined)
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
