package market

import "errors"

// ErrNotFound means no provider had data for the given address or symbol.
// Any other error from a lookup is an upstream failure (HTTP, network,
// malformed payload) and is reported to the user generically.
var ErrNotFound = errors.New("token not found")
