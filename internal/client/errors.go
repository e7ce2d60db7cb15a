package client

import "errors"

var (
	ErrRLVerifier   = errors.New("rl verifier error")
	ErrConnection   = wrap("connection error")
	ErrTimeout      = wrap("request timed out")
	ErrValidation   = wrap("invalid request data")
	ErrVerification = wrap("verification failed")
	ErrServer       = wrap("server error")
)

type clientError struct {
	msg string
}

func (e *clientError) Error() string {
	return e.msg
}

func (e *clientError) Unwrap() error {
	return ErrRLVerifier
}

func wrap(msg string) error {
	return &clientError{msg: msg}
}
