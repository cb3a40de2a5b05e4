package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"househunt/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","code":"INTERNAL_ERROR"}`, w.Body.String())
}

func TestRequestLogging_AssignsRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(RequestIDHeader, "given-id")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "given-id", seen)
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(logger.Discard())(okHandler())

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{name: "json post", method: http.MethodPost, body: `{}`, contentType: "application/json; charset=utf-8", want: http.StatusOK},
		{name: "form post", method: http.MethodPost, body: `a=b`, contentType: "application/x-www-form-urlencoded", want: http.StatusUnsupportedMediaType},
		{name: "missing header", method: http.MethodPatch, body: `{}`, want: http.StatusUnsupportedMediaType},
		{name: "get ignored", method: http.MethodGet, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/bookings/request", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	var readErr error
	h := MaxRequestSize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"too long"}`))
	r.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Error(t, readErr)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/properties", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	r = httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	r.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	h := CORS([]string{"*"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	r.Header.Set("Origin", "http://anything.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientRateLimiter_Allow(t *testing.T) {
	rl := NewClientRateLimiter(2, time.Minute, nil, logger.Discard())
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per client")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "window slides")
}

func TestRateLimit_Rejects(t *testing.T) {
	rl := NewClientRateLimiter(1, time.Minute, nil, logger.Discard())
	defer rl.Stop()
	h := RateLimit(rl)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	r.RemoteAddr = "192.0.2.7:5555"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestClientIP_IgnoresForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.7", ClientIP(r))
}

func TestRateLimit_SpoofedForwardedForSharesLimit(t *testing.T) {
	rl := NewClientRateLimiter(1, time.Minute, nil, logger.Discard())
	defer rl.Stop()
	h := RateLimit(rl)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
		r.RemoteAddr = "192.0.2.7:5555"
		r.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Len(t, rl.requests, 1)
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "::ffff:198.51.100.1", "2001:db8::/32"})
	require.NoError(t, err)
	require.Len(t, prefixes, 4)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.10/32", prefixes[1].String())
	assert.Equal(t, "198.51.100.1/32", prefixes[2].String())

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestTrustedProxyClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	keyFunc := TrustedProxyClientIP(proxies)

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  []string
		want       string
	}{
		{name: "untrusted peer ignores header", remoteAddr: "192.0.2.7:5555", forwarded: []string{"203.0.113.9"}, want: "192.0.2.7"},
		{name: "trusted peer uses appended hop", remoteAddr: "10.0.0.2:443", forwarded: []string{"203.0.113.9"}, want: "203.0.113.9"},
		{name: "client-supplied prefix is skipped", remoteAddr: "10.0.0.2:443", forwarded: []string{"198.51.100.66, 203.0.113.9"}, want: "203.0.113.9"},
		{name: "chained trusted proxies are skipped", remoteAddr: "10.0.0.2:443", forwarded: []string{"203.0.113.9, 10.1.1.1"}, want: "203.0.113.9"},
		{name: "multiple header lines", remoteAddr: "10.0.0.2:443", forwarded: []string{"198.51.100.66", "203.0.113.9"}, want: "203.0.113.9"},
		{name: "garbage hop falls back to peer", remoteAddr: "10.0.0.2:443", forwarded: []string{"not-an-ip"}, want: "10.0.0.2"},
		{name: "no header", remoteAddr: "10.0.0.2:443", want: "10.0.0.2"},
		{name: "only trusted hops", remoteAddr: "10.0.0.2:443", forwarded: []string{"10.9.9.9"}, want: "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for _, value := range tt.forwarded {
				r.Header.Add("X-Forwarded-For", value)
			}
			assert.Equal(t, tt.want, keyFunc(r))
		})
	}
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "", logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/bookings/request", strings.NewReader(`{}`))
		r.Header.Set(DefaultIdempotencyHeader, "key-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	first := send()
	second := send()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "", logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(`{}`))
		r.Header.Set(DefaultIdempotencyHeader, "key-2")
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	assert.Equal(t, int32(2), calls.Load())
}

func TestInMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Millisecond)
	defer store.Stop()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", &CachedResponse{StatusCode: http.StatusOK}))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotency_RejectsKeyReusedWithDifferentBody(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "", logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))

	send := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/bookings/request", strings.NewReader(body))
		r.Header.Set(DefaultIdempotencyHeader, "key-4")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	first := send(`{"message":"first"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, `{"message":"first"}`, first.Body.String(), "handler still sees the body")

	second := send(`{"message":"second"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.JSONEq(t, `{"error":"Idempotency key was already used with a different request body","code":"IDEMPOTENCY_KEY_REUSED"}`, second.Body.String())
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotency_SkipsExemptPaths(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "", logger.Discard(), "/api/users/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(`{}`))
		r.Header.Set(DefaultIdempotencyHeader, "key-5")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Idempotent-Replay"))
	}

	assert.Equal(t, int32(2), calls.Load())
	_, found, err := store.Get(context.Background(), "POST /api/users/login key-5")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotency_ConcurrentDuplicateRunsHandlerOnce(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var calls atomic.Int32
	h := Idempotency(store, "", logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
			<-proceed
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"b-1"}`))
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/bookings/request", strings.NewReader(`{}`))
		r.Header.Set(DefaultIdempotencyHeader, "key-6")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() { firstDone <- send() }()
	<-entered

	inFlight := send()
	assert.Equal(t, http.StatusConflict, inFlight.Code)
	assert.Contains(t, inFlight.Body.String(), "IDEMPOTENCY_IN_PROGRESS")

	close(proceed)
	first := <-firstDone
	require.Equal(t, http.StatusCreated, first.Code)

	replay := send()
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestInMemoryIdempotencyStore_Reserve(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, err := store.Reserve(ctx, "k", &CachedResponse{RequestHash: "h"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "k", &CachedResponse{RequestHash: "h"})
	require.NoError(t, err)
	assert.False(t, ok, "second reservation loses")

	cached, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, cached.Pending())

	require.NoError(t, store.Release(ctx, "k"))
	ok, err = store.Reserve(ctx, "k", &CachedResponse{RequestHash: "h"})
	require.NoError(t, err)
	assert.True(t, ok, "released key can be reserved again")

	now = now.Add(pendingTTL + time.Second)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "abandoned reservation expires before the full ttl")

	require.NoError(t, store.Set(ctx, "k", &CachedResponse{StatusCode: http.StatusCreated, RequestHash: "h"}))
	now = now.Add(pendingTTL + time.Second)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found, "completed response keeps the full ttl")
}

func TestIdempotency_FallsThroughWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	store := NewRedisIdempotencyStore(client, time.Hour)

	var calls atomic.Int32
	h := Idempotency(store, "", logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/properties/add", strings.NewReader(`{}`))
	r.Header.Set(DefaultIdempotencyHeader, "key-3")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Request timeout")
}
