package data

import "errors"

// Store-level sentinels. Stores report storage facts (missing record,
// violated unique index); callers translate them into domain errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)
