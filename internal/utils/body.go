package utils

import "io"

// maxDrain bounds how much of an unread body is discarded before closing.
const maxDrain = 64 << 10

// DrainAndClose discards what is left of a response body (up to a bound)
// and closes it, so the underlying connection can be reused.
func DrainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxDrain))
	_ = rc.Close()
}
