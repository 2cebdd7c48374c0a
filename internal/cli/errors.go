package cli

import "errors"

// ErrUnknownOutput is returned for an --output value other than table, json or csv.
var ErrUnknownOutput = errors.New("unknown output format")
