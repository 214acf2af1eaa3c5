package entities

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type ValidationError struct {
	Err error
}

func (v ValidationError) Error() string {
	return "validation failed: " + v.Err.Error()
}

func (v ValidationError) Unwrap() error {
	return v.Err
}

// PermanentError marks a failure that will not go away on redelivery.
type PermanentError struct {
	Err error
}

func (p PermanentError) Error() string {
	return p.Err.Error()
}

func (p PermanentError) Unwrap() error {
	return p.Err
}

func (p PermanentError) IsPermanent() bool {
	return true
}

func IsPermanent(err error) bool {
	var permanent interface{ IsPermanent() bool }
	return errors.As(err, &permanent) && permanent.IsPermanent()
}
