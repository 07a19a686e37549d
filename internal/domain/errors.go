package domain

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidBlock     = errors.New("blocker and blocked user must be distinct non-empty ids")
	ErrUnknownTrack     = errors.New("unknown moderation track")
	ErrInvalidField     = errors.New("invalid document field name")
)
