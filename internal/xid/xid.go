package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random identifier with a readable prefix, e.g. "line-3f2c...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// UUID returns a bare random UUID string for records whose identity is owned
// by the persistence layer.
func UUID() string {
	return uuid.NewString()
}
