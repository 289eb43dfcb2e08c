package mailbox

import (
	"errors"
	"fmt"
)

// ErrStorage marks mailbox filesystem failures. These surface to the caller
// so a message stuck in pending can be re-driven once storage recovers;
// swallowing them is how duplicate deliveries happen.
var ErrStorage = errors.New("mailbox: storage error")

// StorageError reports a failed filesystem operation against a mailbox.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("mailbox: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
