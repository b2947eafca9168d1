package digest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("single algorithm", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))

		err := SignRequest(ctx, req, []Algorithm{AlgorithmSHA256}, false)
		require.NoError(t, err)
		assert.Equal(t, "sha-256="+helloSHA256, req.Header.Get(HeaderName))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))
	})

	t.Run("entries follow algorithm order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))

		err := SignRequest(ctx, req, []Algorithm{AlgorithmCRC32C, AlgorithmSHA256}, false)
		require.NoError(t, err)
		assert.Equal(t, "crc32c="+helloCRC32C+",sha-256="+helloSHA256, req.Header.Get(HeaderName))

		req = httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))

		err = SignRequest(ctx, req, []Algorithm{AlgorithmSHA256, AlgorithmCRC32C}, false)
		require.NoError(t, err)
		assert.Equal(t, "sha-256="+helloSHA256+",crc32c="+helloCRC32C, req.Header.Get(HeaderName))
	})

	t.Run("existing header kept without overwrite", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))
		req.Header.Set(HeaderName, "md5=whatever")

		err := SignRequest(ctx, req, []Algorithm{AlgorithmSHA256}, false)
		require.NoError(t, err)
		assert.Equal(t, "md5=whatever", req.Header.Get(HeaderName))

		// Body is materialized regardless.
		require.NotNil(t, req.GetBody)
		assert.Equal(t, int64(5), req.ContentLength)
	})

	t.Run("signing twice is idempotent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))

		require.NoError(t, SignRequest(ctx, req, []Algorithm{AlgorithmSHA256}, false))
		first := req.Header.Get(HeaderName)

		require.NoError(t, SignRequest(ctx, req, []Algorithm{AlgorithmCRC32C}, false))
		assert.Equal(t, first, req.Header.Get(HeaderName))
	})

	t.Run("overwrite replaces existing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))
		req.Header.Add(HeaderName, "md5=a")
		req.Header.Add(HeaderName, "md5=b")

		err := SignRequest(ctx, req, []Algorithm{AlgorithmCRC32C}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"crc32c=" + helloCRC32C}, req.Header.Values(HeaderName))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(ctx, req, []Algorithm{AlgorithmUnixCksum}, false)
		require.NoError(t, err)
		assert.Equal(t, "unixcksum=4294967295", req.Header.Get(HeaderName))
	})

	t.Run("broken body reader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", errReader{})

		err := SignRequest(ctx, req, []Algorithm{AlgorithmSHA256}, false)
		assert.ErrorIs(t, err, ErrBodyOperation)
		assert.Empty(t, req.Header.Get(HeaderName))
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("hello"))

		err := SignRequest(ctx, req, []Algorithm{AlgorithmSHA256, AlgorithmUnknown}, true)
		assert.ErrorIs(t, err, ErrUnsupportedDigest)
		assert.Empty(t, req.Header.Get(HeaderName))
	})
}

func TestComputeHeader(t *testing.T) {
	t.Run("hello", func(t *testing.T) {
		got, err := ComputeHeader([]byte("hello"), []Algorithm{AlgorithmCRC32C, AlgorithmSHA256})
		require.NoError(t, err)
		assert.Equal(t, "crc32c=2591144780,sha-256=LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ=", got)
	})

	t.Run("duplicate algorithms", func(t *testing.T) {
		got, err := ComputeHeader([]byte("hello"), []Algorithm{AlgorithmUnixSum, AlgorithmUnixSum})
		require.NoError(t, err)
		assert.Equal(t, "unixsum=8403,unixsum=8403", got)
	})
}
