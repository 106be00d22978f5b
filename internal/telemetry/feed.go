package telemetry

import "context"

// Feed is a transport that delivers raw messages until ctx is cancelled or
// the connection fails. Run calls deliver from its own goroutine.
type Feed interface {
	Run(ctx context.Context, deliver func(Message)) error
}
