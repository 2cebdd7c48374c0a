package bitrix

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel kinds. Every error returned by Client matches exactly one of
// ErrTransport or ErrPermission through errors.Is.
var (
	ErrTransport    = errors.New("bitrix transport error")
	ErrPermission   = errors.New("bitrix permission denied")
	ErrTooManyPages = errors.New("bitrix result exceeds page limit")
	ErrBadWebhook   = errors.New("invalid bitrix webhook url")
)

// permissionCodes are remote error codes that mean "the webhook may not
// read this resource" rather than a broken call.
var permissionCodes = map[string]struct{}{
	"insufficient_scope":  {},
	"access_denied":       {},
	"invalid_credentials": {},
	"no_auth_found":       {},
	"authorization_error": {},
	"wrong_auth_type":     {},
	"expired_token":       {},
	"invalid_token":       {},
}

// Error describes a failed remote call.
type Error struct {
	Op          string // e.g. "bitrix.fetch_deals"
	Method      string // remote method, e.g. "crm.deal.list"
	Kind        error  // ErrTransport or ErrPermission
	Status      int    // HTTP status, 0 when no response was received
	Code        string // remote error code, if any
	Description string // remote error_description, if any
	Err         error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s)", e.Method)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": http %d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
		if e.Description != "" {
			fmt.Fprintf(&b, " - %s", e.Description)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindLabel is a short metric/log label for err: "permission", "transport"
// or "unknown".
func KindLabel(err error) string {
	switch {
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// classify picks the kind for a remote failure from the HTTP status and
// the remote error code.
func classify(status int, code string) error {
	if _, ok := permissionCodes[strings.ToLower(code)]; ok {
		return ErrPermission
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return ErrPermission
	}
	return ErrTransport
}
