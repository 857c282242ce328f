package ecs

import "errors"

// Core storage errors
var (
	ErrUnknownEntity    = errors.New("unknown entity")
	ErrUnregisteredType = errors.New("component type not registered")
	ErrTagTaken         = errors.New("tag already registered to another entity")
)
