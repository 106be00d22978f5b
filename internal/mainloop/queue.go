//go:build !debug

package mainloop

// newQueue returns the loop's task queue. Production builds buffer up to
// size tasks.
func newQueue(size int) chan func() {
	return make(chan func(), size)
}
