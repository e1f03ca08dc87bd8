package api

import "errors"

// ErrBackpressure means the ingest queue refused the event; clients should
// retry with backoff.
var ErrBackpressure = errors.New("backpressure")
