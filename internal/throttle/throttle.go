// Package throttle caps the aggregate egress bandwidth of content streams.
package throttle

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// DefaultChunkSize is used when a non-positive chunk size is configured.
const DefaultChunkSize = 64 * 1024

// Group shares one token bucket between every stream copied through it.
// Each stream waits for tokens per chunk, so concurrent streams split the
// ceiling between themselves as they come and go.
type Group struct {
	limiter *rate.Limiter
	chunk   int
	active  atomic.Int64
}

// NewGroup creates a throttle group limited to bytesPerSecond.
// A non-positive bytesPerSecond disables throttling.
func NewGroup(bytesPerSecond int64, chunkSize int) *Group {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	g := &Group{chunk: chunkSize}
	if bytesPerSecond > 0 {
		if bytesPerSecond < int64(chunkSize) {
			g.chunk = int(bytesPerSecond)
		}
		g.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), g.chunk)
	}
	return g
}

// Unlimited reports whether the group passes data through without waiting.
func (g *Group) Unlimited() bool {
	return g.limiter == nil
}

// Active returns the number of streams currently copying.
func (g *Group) Active() int64 {
	return g.active.Load()
}

// Copy copies src to dst, waiting for bandwidth before each chunk.
// It stops with ctx.Err() as soon as ctx is done. When dst is an
// http.Flusher each chunk is flushed to the client.
func (g *Group) Copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	g.active.Add(1)
	defer g.active.Add(-1)

	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, g.chunk)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if g.limiter != nil {
				if err := g.limiter.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn != n {
				return written, io.ErrShortWrite
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
