//go:build debug

package mainloop

// newQueue returns the loop's task queue. Debug builds ignore size and hand
// each task over synchronously, which surfaces ordering bugs early.
func newQueue(int) chan func() {
	return make(chan func())
}
