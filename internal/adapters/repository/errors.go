package repository

import "errors"

// Sentinel errors for the event store.
var (
	ErrConnect = errors.New("failed to connect to postgres")
	ErrQuery   = errors.New("event query failed")
	ErrInsert  = errors.New("event insert failed")
)
