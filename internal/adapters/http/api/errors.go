package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/b24stats/internal/adapters/bitrix"
	service "github.com/okian/b24stats/internal/app"
	"github.com/okian/b24stats/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeNotConfigured    = "webhook_not_configured"
	codePermissionDenied = "permission_denied"
	codeUpstream         = "upstream_error"
	codeUpstreamTimeout  = "upstream_timeout"
	codeInternal         = "internal_error"
)

// NewKind returns kind tagged with op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// Wrap prefixes err with op, keeping it matchable with errors.Is.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidPeriod):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, service.ErrWebhookNotConfigured):
		return http.StatusServiceUnavailable, codeNotConfigured
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeUpstreamTimeout
	case errors.Is(err, bitrix.ErrPermission):
		return http.StatusForbidden, codePermissionDenied
	case errors.Is(err, bitrix.ErrTransport):
		return http.StatusBadGateway, codeUpstream
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
