package course

import "errors"

var (
	ErrCourseTypeNotFound = errors.New("course type not found")
	ErrGroupNotFound      = errors.New("student group not found for batch")
	ErrFractionalPrice    = errors.New("course type price must be in whole currency units")
)
