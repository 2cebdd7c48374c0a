package service

import "errors"

// ErrWebhookNotConfigured is returned when the service has no fetcher,
// i.e. no webhook URL was configured.
var ErrWebhookNotConfigured = errors.New("bitrix webhook is not configured")
