package digest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read error") }
func (errReader) Close() error             { return nil }

// chunkReader returns its chunks one Read at a time, then err (io.EOF when
// nil).
type chunkReader struct {
	chunks []string
	err    error
	reads  int
	closed bool
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.reads >= len(c.chunks) {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}

	n := copy(p, c.chunks[c.reads])
	c.reads++

	return n, nil
}

func (c *chunkReader) Close() error {
	c.closed = true
	return nil
}

// cancelReader cancels the context after its first Read.
type cancelReader struct {
	chunkReader
	cancel context.CancelFunc
}

func (c *cancelReader) Read(p []byte) (int, error) {
	defer c.cancel()
	return c.chunkReader.Read(p)
}

func TestMaterialize(t *testing.T) {
	t.Run("replaces body with replayable reader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))

		body, err := Materialize(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))
		assert.Equal(t, int64(5), req.ContentLength)

		got, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))

		require.NotNil(t, req.GetBody)
		again, err := req.GetBody()
		require.NoError(t, err)
		got, err = io.ReadAll(again)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))
	})

	t.Run("chunks are appended in order", func(t *testing.T) {
		src := &chunkReader{chunks: []string{"he", "l", "", "lo"}}
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", nil)
		req.Body = src

		body, err := Materialize(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))
		assert.True(t, src.closed)
	})

	t.Run("large body", func(t *testing.T) {
		data := strings.Repeat("0123456789", chunkSize/5)
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader(data))

		body, err := Materialize(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, data, string(body))
	})

	t.Run("nil body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
		req.Body = nil

		body, err := Materialize(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, body)
		assert.Equal(t, http.NoBody, req.Body)
		assert.Equal(t, int64(0), req.ContentLength)
	})

	t.Run("read failure", func(t *testing.T) {
		src := &chunkReader{chunks: []string{"partial"}, err: errors.New("connection reset")}
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", nil)
		req.Body = src

		body, err := Materialize(context.Background(), req)
		assert.ErrorIs(t, err, ErrBodyOperation)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Nil(t, body)
		assert.True(t, src.closed)
		assert.Same(t, src, req.Body)
	})

	t.Run("max bytes error is preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("too long"))
		req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, 3)

		_, err := Materialize(context.Background(), req)
		assert.ErrorIs(t, err, ErrBodyOperation)

		var maxErr *http.MaxBytesError
		assert.ErrorAs(t, err, &maxErr)
	})

	t.Run("canceled before reading", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		src := &chunkReader{chunks: []string{"hello"}}
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", nil)
		req.Body = src

		_, err := Materialize(ctx, req)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrBodyOperation)
		assert.Equal(t, 0, src.reads)
	})

	t.Run("canceled between chunks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := &cancelReader{chunkReader: chunkReader{chunks: []string{"he", "llo"}}, cancel: cancel}
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", nil)
		req.Body = src

		body, err := Materialize(ctx, req)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, body)
		assert.Equal(t, 1, src.reads)
		assert.True(t, src.closed)
	})
}
