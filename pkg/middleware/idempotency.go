package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"househunt/pkg/logger"
)

const DefaultIdempotencyHeader = "Idempotency-Key"

// pendingTTL bounds how long a reservation blocks its key when the request
// that made it never completes.
const pendingTTL = time.Minute

// IdempotencyStore holds one entry per key. An entry is either a reservation
// taken before the handler runs or the completed 2xx response.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	// Reserve stores the placeholder only if the key is free and reports
	// whether it did.
	Reserve(ctx context.Context, key string, placeholder *CachedResponse) (bool, error)
	// Set replaces the entry for key, including a reservation.
	Set(ctx context.Context, key string, response *CachedResponse) error
	Release(ctx context.Context, key string) error
	Stop()
}

type CachedResponse struct {
	StatusCode  int         `json:"status_code"`
	Headers     http.Header `json:"headers"`
	Body        []byte      `json:"body"`
	RequestHash string      `json:"request_hash"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Pending reports whether the entry is a reservation without a response yet.
func (c *CachedResponse) Pending() bool {
	return c.StatusCode == 0
}

func (c *CachedResponse) lifetime(ttl time.Duration) time.Duration {
	if c.Pending() && pendingTTL < ttl {
		return pendingTTL
	}
	return ttl
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	store    map[string]*CachedResponse
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:  make(map[string]*CachedResponse),
		ttl:    ttl,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}

	go store.cleanup()

	return store
}

// live returns the unexpired entry for key. Callers hold s.mu.
func (s *InMemoryIdempotencyStore) live(key string) (*CachedResponse, bool) {
	response, exists := s.store[key]
	if !exists {
		return nil, false
	}
	if s.now().Sub(response.CreatedAt) > response.lifetime(s.ttl) {
		delete(s.store, key)
		return nil, false
	}
	return response, true
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, found := s.live(key)
	return response, found, nil
}

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string, placeholder *CachedResponse) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.live(key); taken {
		return false, nil
	}
	placeholder.CreatedAt = s.now()
	s.store[key] = placeholder
	return true, nil
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = s.now()
	s.store[key] = response
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.store, key)
	return nil
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key := range s.store {
				s.live(key)
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored 2xx response for a repeated POST, PUT or
// PATCH carrying the same key and body on the same route. A key reused with
// a different body gets 422, and a key whose first request is still running
// gets 409. Paths listed in exempt are never cached. Store failures fall
// through to the handler.
func Idempotency(store IdempotencyStore, headerName string, log *logger.Logger, exempt ...string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = DefaultIdempotencyHeader
	}
	skip := make(map[string]bool, len(exempt))
	for _, path := range exempt {
		skip[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(headerName)
			if header == "" || !isMutating(r.Method) || skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			hash, err := hashRequestBody(r)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large", "INVALID_INPUT")
					return
				}
				writeJSONError(w, http.StatusBadRequest, "Could not read request body", "INVALID_INPUT")
				return
			}

			key := r.Method + " " + r.URL.Path + " " + header
			storeCtx := context.WithoutCancel(r.Context())

			cached, found, err := store.Get(r.Context(), key)
			if err != nil {
				log.Warn("idempotency lookup failed",
					"request_id", RequestID(r.Context()),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if found {
				respondToExisting(w, cached, hash)
				return
			}

			reserved, err := store.Reserve(r.Context(), key, &CachedResponse{RequestHash: hash})
			if err != nil {
				log.Warn("idempotency reservation failed",
					"request_id", RequestID(r.Context()),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				writeJSONError(w, http.StatusConflict, "A request with this idempotency key is in progress", "IDEMPOTENCY_IN_PROGRESS")
				return
			}

			completed := false
			defer func() {
				if completed {
					return
				}
				if err := store.Release(storeCtx, key); err != nil {
					log.Warn("idempotency release failed",
						"request_id", RequestID(r.Context()),
						"error", err,
					)
				}
			}()

			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}

			response := &CachedResponse{
				StatusCode:  capture.statusCode,
				Headers:     w.Header().Clone(),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			}
			if err := store.Set(storeCtx, key, response); err != nil {
				log.Warn("idempotency store failed",
					"request_id", RequestID(r.Context()),
					"error", err,
				)
				return
			}
			completed = true
		})
	}
}

func isMutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPatch || method == http.MethodPut
}

// hashRequestBody digests the body and leaves an unread copy on r.
func hashRequestBody(r *http.Request) (string, error) {
	if r.Body == nil {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}

	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func respondToExisting(w http.ResponseWriter, cached *CachedResponse, hash string) {
	switch {
	case cached.RequestHash != hash:
		writeJSONError(w, http.StatusUnprocessableEntity, "Idempotency key was already used with a different request body", "IDEMPOTENCY_KEY_REUSED")
	case cached.Pending():
		writeJSONError(w, http.StatusConflict, "A request with this idempotency key is in progress", "IDEMPOTENCY_IN_PROGRESS")
	default:
		replayCachedResponse(w, cached)
	}
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
