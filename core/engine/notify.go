package engine

import (
	"sync"
	"unsafe"

	"modernc.org/libc"
	sqlite3 "modernc.org/sqlite/lib"
)

// An unlock wait is one-shot: a fresh notification object per wait, never
// reused, so a stale callback can never wake a later wait. Go pointers must
// not cross the engine boundary, so each wait registers under an opaque
// token and the callback resolves tokens through this registry.
type unlockNote struct {
	once sync.Once
	done chan struct{}
}

func (n *unlockNote) fire() {
	n.once.Do(func() { close(n.done) })
}

var notifyReg = struct {
	sync.Mutex
	next  uintptr
	notes map[uintptr]*unlockNote
}{notes: make(map[uintptr]*unlockNote)}

func registerNote(n *unlockNote) uintptr {
	notifyReg.Lock()
	defer notifyReg.Unlock()
	notifyReg.next++
	tok := notifyReg.next
	notifyReg.notes[tok] = n
	return tok
}

func dropNote(tok uintptr) {
	notifyReg.Lock()
	defer notifyReg.Unlock()
	delete(notifyReg.notes, tok)
}

// unlockNotifyCallback is invoked by the engine, on whatever connection's
// call stack releases the blocking lock, with the array of registered
// tokens. It only touches Go-side state.
func unlockNotifyCallback(tls *libc.TLS, apArg uintptr, nArg int32) {
	const ptrSize = unsafe.Sizeof(uintptr(0))
	for i := int32(0); i < nArg; i++ {
		tok := *(*uintptr)(unsafe.Pointer(apArg + uintptr(i)*ptrSize))
		notifyReg.Lock()
		n := notifyReg.notes[tok]
		notifyReg.Unlock()
		if n != nil {
			n.fire()
		}
	}
}

// cFuncPointer converts a Go function into a function pointer the transpiled
// engine can call, the same way the modernc driver registers its hooks.
func cFuncPointer[T any](f T) uintptr {
	return *(*uintptr)(unsafe.Pointer(&struct{ f T }{f}))
}

// WaitForUnlock assumes the most recent call on conn just returned
// SQLITE_LOCKED. It registers for an unlock-notify callback and blocks the
// calling goroutine until the lock holder lets go, then returns Ok and the
// caller retries the failed call.
//
// If registration reports that blocking would deadlock the system,
// WaitForUnlock returns Locked immediately. The caller must not retry; it
// should roll back the enclosing transaction.
//
// There is no timeout: a long-held lock means a long wait. Genuine deadlock
// is the only condition the engine detects, and it detects it synchronously
// at registration.
func WaitForUnlock(conn *Conn) Code {
	note := &unlockNote{done: make(chan struct{})}
	tok := registerNote(note)
	defer dropNote(tok)

	rc := Code(sqlite3.Xsqlite3_unlock_notify(conn.tls, conn.db,
		cFuncPointer(unlockNotifyCallback), tok))
	if rc != Ok {
		// Deadlock detected; the registration did not take effect.
		return rc
	}
	<-note.done
	return Ok
}
