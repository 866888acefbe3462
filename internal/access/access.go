// Package access carries the opaque accountability context and the
// permission-check contract. Authorization decisions live outside this
// codebase; the default implementation allows everything.
package access

// Accountability identifies the caller. The field service passes it through
// without interpreting it.
type Accountability struct {
	User string
	Role string
	IP   string
}

// Permissions is the external authorization collaborator. A negative answer
// on a read path is indistinguishable from "not found" to API callers.
type Permissions interface {
	CanRead(acc *Accountability, collection, field string) bool
	CanWrite(acc *Accountability, collection, field string) bool
}

// AllowAll grants every check. Used until a real policy engine is plugged in.
type AllowAll struct{}

func (AllowAll) CanRead(*Accountability, string, string) bool  { return true }
func (AllowAll) CanWrite(*Accountability, string, string) bool { return true }
