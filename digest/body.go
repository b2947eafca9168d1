package digest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/valyala/bytebufferpool"
)

// chunkSize is the size of a single body read.
const chunkSize = 32 << 10

var bodyPool bytebufferpool.Pool

// Materialize drains the request body into one in-memory buffer and replaces
// r.Body (and r.GetBody) with a replayable reader over it. The returned slice
// is owned by the caller and must not be modified.
//
// Chunks are read strictly in order and the next chunk is only requested
// once the current one has been appended. When ctx is done before the body
// is exhausted the partial buffer is discarded, the body is closed and
// ctx.Err() is returned. A read failure discards the buffer and returns an
// error wrapping ErrBodyOperation.
func Materialize(ctx context.Context, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		replaceBody(r, nil)
		return nil, nil
	}

	buf := bodyPool.Get()
	defer bodyPool.Put(buf)

	chunk := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			r.Body.Close()
			return nil, err
		}

		n, err := r.Body.Read(chunk)
		buf.Write(chunk[:n])

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			r.Body.Close()
			return nil, bodyError(err)
		}
	}

	// Freeze: the pooled buffer is reused once returned.
	body := bytes.Clone(buf.B)

	r.Body.Close()
	replaceBody(r, body)

	return body, nil
}

func replaceBody(r *http.Request, body []byte) {
	r.ContentLength = int64(len(body))

	if len(body) == 0 {
		r.Body = http.NoBody
		r.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }

		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}
