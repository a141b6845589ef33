package app

import "errors"

var (
	ErrPartnerNotFound = errors.New("chat partner not found")
	ErrEmptyMessage    = errors.New("message text required")
)
