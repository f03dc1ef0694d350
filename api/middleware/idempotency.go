package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haatbazaar/marketplace-backend/api/responses"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	pkgredis "github.com/haatbazaar/marketplace-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the replay store.
	ReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128
	shortReplayWindow    = 24 * time.Hour
	settlementWindow     = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed handler can hold a key.
	inFlightTTL = 2 * time.Minute
)

const (
	replyPending = "pending"
	replyDone    = "done"
)

// replayRule matches a method and a path shape; "*" stands for one segment.
type replayRule struct {
	method string
	shape  []string
	window time.Duration
}

func replayOn(method, shape string, window time.Duration) replayRule {
	return replayRule{method: method, shape: pathSegments(shape), window: window}
}

// Mutations that move money or order state keep their replies for a week.
var replayRules = []replayRule{
	replayOn(http.MethodPost, "/api/v1/orders", settlementWindow),
	replayOn(http.MethodPost, "/api/v1/orders/*/cancel", settlementWindow),
	replayOn(http.MethodPatch, "/api/v1/orders/*/status", settlementWindow),
	replayOn(http.MethodPatch, "/api/v1/sub-orders/*/status", settlementWindow),
	replayOn(http.MethodPost, "/api/v1/payments/orders", shortReplayWindow),
	replayOn(http.MethodPost, "/api/v1/addresses", shortReplayWindow),
	replayOn(http.MethodPost, "/api/v1/notifications/*/read", shortReplayWindow),
	replayOn(http.MethodPost, "/api/v1/notifications/read-all", shortReplayWindow),
}

func (rr replayRule) matches(method string, segs []string) bool {
	if rr.method != method || len(rr.shape) != len(segs) {
		return false
	}
	for i, want := range rr.shape {
		if want != "*" && want != segs[i] {
			return false
		}
	}
	return true
}

func replayWindowFor(method, path string) (time.Duration, bool) {
	segs := pathSegments(path)
	for _, rr := range replayRules {
		if rr.matches(method, segs) {
			return rr.window, true
		}
	}
	return 0, false
}

func pathSegments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// storedReply is the JSON value kept under an idempotency key. A pending
// reply is the claim taken before the handler runs.
type storedReply struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes the mutating routes safe to retry. The first request
// with a key claims it, runs, and stores its reply; later requests with the
// same key and body get that reply back without reaching the handler.
// Server errors release the claim so the client can try again.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window, ok := replayWindowFor(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" too long").
					WithDetails(map[string]any{"max_length": maxIdempotencyKeyLen}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintOf(r, body)
			key := store.IdempotencyKey(callerKey(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			claim, _ := json.Marshal(storedReply{State: replyPending, Fingerprint: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(claim), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, logg, w, store, key, fingerprint)
				return
			}

			capture := &replyCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// The reply is persisted even when the client has gone away.
			persistCtx := context.WithoutCancel(ctx)
			if capture.statusCode() >= http.StatusInternalServerError {
				if delErr := store.Del(persistCtx, key); delErr != nil {
					logError(ctx, logg, "release idempotency claim", delErr)
				}
				return
			}
			done, err := json.Marshal(storedReply{
				State:       replyDone,
				Fingerprint: fingerprint,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				logError(ctx, logg, "encode idempotency reply", err)
				return
			}
			if setErr := store.Set(persistCtx, key, string(done), window); setErr != nil {
				logError(ctx, logg, "persist idempotency reply", setErr)
			}
		})
	}
}

func replayExisting(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// claim expired between SetNX and Get
		responses.WriteError(ctx, logg, w, inProgress())
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency reply"))
		return
	}
	var reply storedReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency reply"))
		return
	}
	if reply.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if reply.State != replyDone {
		responses.WriteError(ctx, logg, w, inProgress())
		return
	}

	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}

func inProgress() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress").
		WithDetails(map[string]any{"state": "in_progress"})
}

func fingerprintOf(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type replyCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *replyCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *replyCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *replyCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
