package payment

import "errors"

// ErrNoTag is returned by TagReader.Request when no card is in the field.
var ErrNoTag = errors.New("no tag present")

// TagReader is the card-reader peripheral collaborator. Request checks for
// a tag in the field; Anticoll reads its UID. Implementations wrap the
// physical reader process; tests and the mock daemon substitute their own.
type TagReader interface {
	Request() error
	Anticoll() ([]byte, error)
}
