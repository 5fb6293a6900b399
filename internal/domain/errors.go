package domain

import "errors"

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrHandleTaken            = errors.New("handle already taken")
	ErrSelfMessage            = errors.New("cannot send message to yourself")
	ErrPersistenceUnavailable = errors.New("message was not saved")
	ErrUnsupportedLanguage    = errors.New("unsupported language")
)
