package digest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoRouter(t *testing.T, mw *Middleware) *mux.Router {
	t.Helper()
	t.Cleanup(mw.Close)

	r := mux.NewRouter()
	r.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		w.Header().Set("X-Received-Digest", r.Header.Get(HeaderName))
		w.WriteHeader(http.StatusOK)
		w.Write(body) //nolint:errcheck
	}).Methods(http.MethodPost)
	r.Use(mw.Func())

	return r
}

func TestVerifyMiddleware(t *testing.T) {
	mw, err := VerifyMiddleware(MiddlewareConfig{})
	require.NoError(t, err)

	router := newEchoRouter(t, mw)

	t.Run("negative queue size", func(t *testing.T) {
		_, err := VerifyMiddleware(MiddlewareConfig{QueueSize: -1})
		assert.ErrorIs(t, err, ErrInvalidQueueSize)
	})

	t.Run("valid digest passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hello"))
		req.Header.Set(HeaderName, "crc32c="+helloCRC32C+",sha-256="+helloSHA256)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
	})

	t.Run("missing header returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hello"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("tampered body returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hellO"))
		req.Header.Set(HeaderName, "sha-256="+helloSHA256)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("body over limit returns 413", func(t *testing.T) {
		limited := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.Body = http.MaxBytesReader(w, r.Body, 2)
				next.ServeHTTP(w, r)
			})
		}

		r := mux.NewRouter()
		r.Handle("/api/upload", limited(mw.Middleware(http.NotFoundHandler())))

		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hello"))
		req.Header.Set(HeaderName, "sha-256="+helloSHA256)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("client gone while reading body returns 499", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/api/upload", nil)
		req.Header.Set(HeaderName, "sha-256="+helloSHA256)
		req.Body = &cancelReader{chunkReader: chunkReader{chunks: []string{"he", "llo"}}, cancel: cancel}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, StatusClientClosedRequest, w.Code)
	})

	t.Run("custom error handler", func(t *testing.T) {
		var capturedErr error
		mw, err := VerifyMiddleware(MiddlewareConfig{
			OnError: func(w http.ResponseWriter, _ *http.Request, err error) {
				capturedErr = err
				w.WriteHeader(http.StatusUnauthorized)
			},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hello"))
		req.Header.Set(HeaderName, "foo=bar")

		w := httptest.NewRecorder()
		newEchoRouter(t, mw).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.ErrorIs(t, capturedErr, ErrUnsupportedDigest)
	})

	t.Run("handlers are never invoked concurrently", func(t *testing.T) {
		mw, err := VerifyMiddleware(MiddlewareConfig{QueueSize: 2})
		require.NoError(t, err)
		defer mw.Close()

		var active, maxActive, served atomic.Int32
		handler := func(w http.ResponseWriter, _ *http.Request) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			served.Add(1)
			w.WriteHeader(http.StatusNoContent)
		}

		r := mux.NewRouter()
		r.HandleFunc("/a", handler).Methods(http.MethodPost)
		r.HandleFunc("/b", handler).Methods(http.MethodPost)
		r.Use(mw.Func())

		before := runtime.NumGoroutine()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				path := "/a"
				if i%2 == 1 {
					path = "/b"
				}

				req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("hello"))
				req.Header.Set(HeaderName, "sha-256="+helloSHA256)

				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				assert.Equal(t, http.StatusNoContent, w.Code)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(20), served.Load())
		assert.Equal(t, int32(1), maxActive.Load())
		// One worker per Middleware, not per request.
		assert.Eventually(t, func() bool {
			return runtime.NumGoroutine() <= before
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("closed middleware returns 503", func(t *testing.T) {
		mw, err := VerifyMiddleware(MiddlewareConfig{})
		require.NoError(t, err)

		router := newEchoRouter(t, mw)
		assert.NoError(t, mw.Ready())

		mw.Close()

		err = mw.Ready()
		assert.ErrorIs(t, err, ErrInnerService)
		assert.ErrorIs(t, err, ErrGuardClosed)

		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hello"))
		req.Header.Set(HeaderName, "sha-256="+helloSHA256)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSignMiddleware(t *testing.T) {
	t.Run("config validation", func(t *testing.T) {
		_, err := SignMiddleware(MiddlewareConfig{})
		assert.ErrorIs(t, err, ErrNoAlgorithms)

		_, err = SignMiddleware(MiddlewareConfig{Algorithms: []Algorithm{AlgorithmSHA1}, Registry: NewRegistry(RegistryConfig{})})
		assert.ErrorIs(t, err, ErrUnsupportedDigest)

		_, err = SignMiddleware(MiddlewareConfig{Algorithms: []Algorithm{AlgorithmSHA256}, QueueSize: -1})
		assert.ErrorIs(t, err, ErrInvalidQueueSize)
	})

	t.Run("sets digest before handler", func(t *testing.T) {
		mw, err := SignMiddleware(MiddlewareConfig{Algorithms: []Algorithm{AlgorithmCRC32C, AlgorithmSHA256}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hello"))

		w := httptest.NewRecorder()
		newEchoRouter(t, mw).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
		assert.Equal(t, "crc32c="+helloCRC32C+",sha-256="+helloSHA256, w.Header().Get("X-Received-Digest"))
	})

	t.Run("overwrite", func(t *testing.T) {
		for _, tt := range []struct {
			overwrite bool
			want      string
		}{
			{overwrite: false, want: "md5=client"},
			{overwrite: true, want: "sha-256=" + helloSHA256},
		} {
			mw, err := SignMiddleware(MiddlewareConfig{Algorithms: []Algorithm{AlgorithmSHA256}, Overwrite: tt.overwrite})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("hello"))
			req.Header.Set(HeaderName, "md5=client")

			w := httptest.NewRecorder()
			newEchoRouter(t, mw).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Header().Get("X-Received-Digest"))
		}
	})

	t.Run("broken body returns 400", func(t *testing.T) {
		mw, err := SignMiddleware(MiddlewareConfig{Algorithms: []Algorithm{AlgorithmSHA256}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/upload", errReader{})

		w := httptest.NewRecorder()
		newEchoRouter(t, mw).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
