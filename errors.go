package kventity

import "errors"

// ErrNotFound is returned when a requested entity, component, metadata row,
// or filter match is absent and the operation requires it.
var ErrNotFound = errors.New("kventity: not found")

// ErrInvalidEntityID is returned when a user-supplied id contains '/', or
// when a stored or scanned value cannot be parsed back into an entity id;
// the latter indicates corruption or a foreign writer.
var ErrInvalidEntityID = errors.New("kventity: invalid entity id")

// ErrInvalidUTF8 is returned when a scanned key is not valid UTF-8.
// All keys written by this package are UTF-8 by construction.
var ErrInvalidUTF8 = errors.New("kventity: key is not valid utf-8")
