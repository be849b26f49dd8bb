package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"apar/internal/transport/http/api"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// StoredResponse is the first successful response recorded for a key.
type StoredResponse struct {
	Status int
	Body   json.RawMessage
}

type IdempotencyStore interface {
	Check(ctx context.Context, tenantID, userID, endpoint, key, requestHash string) (StoredResponse, bool, error)
	Save(ctx context.Context, tenantID, userID, endpoint, key, requestHash string, response StoredResponse) error
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type PGIdempotencyStore struct {
	db *pgxpool.Pool
}

func NewPGIdempotencyStore(db *pgxpool.Pool) *PGIdempotencyStore {
	return &PGIdempotencyStore{db: db}
}

func (s *PGIdempotencyStore) Check(ctx context.Context, tenantID, userID, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	if s == nil || s.db == nil {
		return StoredResponse{}, false, nil
	}
	var storedHash string
	var stored StoredResponse
	var body []byte
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_status, response_json
    FROM idempotency_keys
    WHERE tenant_id = $1 AND user_id = $2 AND key = $3 AND endpoint = $4
  `, tenantID, userID, key, endpoint).Scan(&storedHash, &stored.Status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredResponse{}, false, nil
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	if storedHash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	stored.Body = body
	return stored, true, nil
}

func (s *PGIdempotencyStore) Save(ctx context.Context, tenantID, userID, endpoint, key, requestHash string, response StoredResponse) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (tenant_id, user_id, key, endpoint, request_hash, response_status, response_json)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (tenant_id, user_id, key, endpoint)
    DO UPDATE SET response_status = EXCLUDED.response_status, response_json = EXCLUDED.response_json
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
  `, tenantID, userID, key, endpoint, requestHash, response.Status, []byte(response.Body))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

type idempotencyEntry struct {
	hash     string
	response StoredResponse
}

type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: map[string]idempotencyEntry{}}
}

func idempotencyKey(tenantID, userID, endpoint, key string) string {
	return tenantID + "\x00" + userID + "\x00" + endpoint + "\x00" + key
}

func (s *MemoryIdempotencyStore) Check(_ context.Context, tenantID, userID, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[idempotencyKey(tenantID, userID, endpoint, key)]
	if !ok {
		return StoredResponse{}, false, nil
	}
	if entry.hash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	return entry.response, true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, tenantID, userID, endpoint, key, requestHash string, response StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idempotencyKey(tenantID, userID, endpoint, key)
	if entry, ok := s.entries[k]; ok && entry.hash != requestHash {
		return ErrIdempotencyConflict
	}
	response.Body = append(json.RawMessage(nil), response.Body...)
	s.entries[k] = idempotencyEntry{hash: requestHash, response: response}
	return nil
}

type bufferedResponse struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

// Idempotent replays the first successful response, status included, for a
// repeated Idempotency-Key on the same endpoint. Requests without the header run
// normally. Reusing a key with a different body is a 409.
func Idempotent(endpoint string, store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			user, ok := GetUser(r.Context())
			if key == "" || !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			var body []byte
			if r.Body != nil {
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					api.Fail(w, http.StatusBadRequest, "invalid_body", "failed to read request body", GetRequestID(r.Context()))
					return
				}
				body = raw
				r.Body = io.NopCloser(bytes.NewReader(raw))
			}
			hash := RequestHash(append([]byte(r.URL.Path+"\n"), body...))

			stored, found, err := store.Check(r.Context(), user.TenantID, user.UserID, endpoint, key, hash)
			if errors.Is(err, ErrIdempotencyConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), GetRequestID(r.Context()))
				return
			}
			if err != nil {
				slog.Warn("idempotency check failed", "endpoint", endpoint, "err", err)
			}
			if found {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				status := stored.Status
				if status == 0 {
					status = http.StatusOK
				}
				w.WriteHeader(status)
				if _, err := w.Write(stored.Body); err != nil {
					slog.Warn("idempotent replay write failed", "err", err)
				}
				return
			}

			buf := &bufferedResponse{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(buf, r)
			if buf.status < 200 || buf.status >= 300 || buf.body.Len() == 0 {
				return
			}
			saved := StoredResponse{Status: buf.status, Body: buf.body.Bytes()}
			if err := store.Save(r.Context(), user.TenantID, user.UserID, endpoint, key, hash, saved); err != nil {
				slog.Warn("idempotency save failed", "endpoint", endpoint, "err", err)
			}
		})
	}
}
