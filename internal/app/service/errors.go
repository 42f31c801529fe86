package service

import "errors"

var (
	ErrInvalidProduct  = errors.New("product id is required")
	ErrIdentityUnknown = errors.New("identity not resolved yet")
	ErrMergeFailed     = errors.New("guest merge failed")
)
