package objectstore

import "fmt"

// Error records the storage operation that failed and the object it
// targeted.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("objectstore.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("objectstore.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newObjectError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}
