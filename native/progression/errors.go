package progression

import "errors"

var (
	ErrUnauthorized   = errors.New("progression: unauthorized")
	ErrGranterBound   = errors.New("progression: reward granter already bound")
	ErrInvalidGranter = errors.New("progression: invalid reward granter")
	ErrPointsOverflow = errors.New("progression: points overflow")
	ErrInvalidParams  = errors.New("progression: invalid params")
	ErrNilState       = errors.New("progression: nil state")
)
