package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bumpsafe/bumpsafe/pkg/audit"
	"github.com/bumpsafe/bumpsafe/pkg/cache"
	"github.com/bumpsafe/bumpsafe/pkg/config"
	"github.com/bumpsafe/bumpsafe/pkg/models"
	"github.com/bumpsafe/bumpsafe/pkg/quota"
	"github.com/bumpsafe/bumpsafe/pkg/reasoner"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

// fallbackResult is served when the reasoning service is unavailable.
// The client UI must always receive a structured payload, never a 5xx.
const fallbackResult = "Caution: we couldn't fully verify this item right now. " +
	"Please double-check with your doctor or midwife before consuming or using it."

// caller is the resolved identity for one request: either an
// authenticated user or an anonymous fingerprint on the trial tier.
type caller struct {
	user        *models.User
	fingerprint string
}

func (c caller) identity() string {
	if c.user != nil {
		return c.user.ID
	}
	return c.fingerprint
}

// provider selects the quota backend for this caller: durable for
// verified users, process-local for anonymous fingerprints.
func (s *Server) provider(c caller) quota.Provider {
	if c.user != nil {
		return s.users
	}
	return s.trial
}

// resolveCaller authenticates the bearer token if one is present,
// otherwise derives an anonymous fingerprint from the session header or
// client IP. A present-but-unknown token is an auth failure, not an
// anonymous fallback.
func (s *Server) resolveCaller(r *http.Request) (caller, error) {
	token := extractToken(r)
	if token != "" {
		u, err := s.store.UserByToken(r.Context(), token)
		if err != nil {
			return caller{}, err
		}
		return caller{user: &u}, nil
	}
	return caller{fingerprint: fingerprint(r)}, nil
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func fingerprint(r *http.Request) string {
	if sid := r.Header.Get("X-Session-ID"); sid != "" {
		return sid
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	c, err := s.resolveCaller(r)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_token", "unknown access token")
			return
		}
		log.Printf("resolve caller: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
		return
	}

	switch {
	case req.Image != "":
		s.checkImage(w, r, c, req.Image)
	case strings.TrimSpace(req.Item) != "":
		s.checkItem(w, r, c, req.Item)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "item or image required")
	}
}

// checkItem runs a text safety check. On a cache hit the quota is still
// verified and debited and history appended, exactly as on a miss; the
// only thing a hit skips is the reasoner call.
func (s *Server) checkItem(w http.ResponseWriter, r *http.Request, c caller, item string) {
	start := time.Now()
	key := cache.Normalize(item)

	if s.cache != nil {
		if a, ok := s.cache.Get(key); ok {
			if !s.settle(w, r, c, a, false) {
				return
			}
			s.logCheck(r, c, a, true, false, false, start)
			writeJSON(w, http.StatusOK, a.Response())
			return
		}
	}

	a, err := s.reasoner.Assess(r.Context(), item)
	degraded := false
	if err != nil {
		log.Printf("reasoner assess %q: %v", key, err)
		a = fallbackAssessment(item)
		degraded = true
	} else if s.cache != nil {
		s.cache.Put(key, a)
	}

	if !s.settle(w, r, c, a, false) {
		return
	}
	s.logCheck(r, c, a, false, degraded, false, start)
	writeJSON(w, http.StatusOK, a.Response())
}

// checkImage runs a photo safety check. Images bypass the response cache
// but share the quota and history sequencing with text checks.
func (s *Server) checkImage(w http.ResponseWriter, r *http.Request, c caller, image string) {
	start := time.Now()

	if len(image) > config.MaxImageBytes {
		writeError(w, http.StatusBadRequest, "bad_request", "image too large")
		return
	}
	if _, err := base64.StdEncoding.DecodeString(image); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "image must be base64")
		return
	}

	a, err := s.reasoner.AssessImage(r.Context(), image)
	degraded := false
	if err != nil {
		log.Printf("reasoner assess image: %v", err)
		a = fallbackAssessment("photo")
		degraded = true
	}

	if !s.settle(w, r, c, a, true) {
		return
	}
	s.logCheck(r, c, a, false, degraded, true, start)
	writeJSON(w, http.StatusOK, a.Response())
}

// settle runs the per-check side effects in their required order: verify
// the quota allows one more check, debit it, then append to the user's
// history. It writes the error response and returns false if any step
// fails; quota errors fail the whole request even when the answer came
// from the cache.
func (s *Server) settle(w http.ResponseWriter, r *http.Request, c caller, a models.Assessment, isImage bool) bool {
	ctx := r.Context()
	p := s.provider(c)
	id := c.identity()

	if err := p.CheckDailyLimit(ctx, id); err != nil {
		s.writeQuotaError(w, err)
		return false
	}
	if err := p.Increment(ctx, id); err != nil {
		log.Printf("quota increment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
		return false
	}
	if c.user != nil {
		if err := s.store.AddToHistory(ctx, c.user.ID, a.Item, a.RiskScore, isImage); err != nil {
			log.Printf("history append: %v", err)
			writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
			return false
		}
	}
	return true
}

func (s *Server) writeQuotaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quota.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, "quota_exceeded",
			"daily check limit reached, upgrade for unlimited checks")
	case errors.Is(err, quota.ErrTrialExhausted):
		writeError(w, http.StatusTooManyRequests, "trial_exhausted",
			"trial limit reached, sign up to keep checking")
	default:
		// Fail closed: a broken quota store denies the check.
		log.Printf("quota check: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
	}
}

func fallbackAssessment(item string) models.Assessment {
	return models.Assessment{
		Item:      item,
		Result:    fallbackResult,
		RiskScore: reasoner.FallbackScore,
	}
}

func (s *Server) logCheck(r *http.Request, c caller, a models.Assessment, cached, degraded, isImage bool, start time.Time) {
	if s.auditor == nil {
		return
	}
	hash, prefix := audit.HashIdentity(c.identity())
	rec := models.CheckRecord{
		RequestID:      middleware.GetReqID(r.Context()),
		IdentityHash:   hash,
		IdentityPrefix: prefix,
		Item:           a.Item,
		RiskScore:      a.RiskScore,
		IsImage:        isImage,
		Cached:         cached,
		Degraded:       degraded,
		LatencyMs:      time.Since(start).Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	go func() {
		if err := s.auditor.Log(context.Background(), rec); err != nil {
			log.Printf("audit log: %v", err)
		}
	}()
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	c, err := s.resolveCaller(r)
	if err != nil || c.user == nil {
		writeError(w, http.StatusUnauthorized, "invalid_token", "sign in to view history")
		return
	}

	entries, err := s.store.History(r.Context(), c.user.ID, 0)
	if err != nil {
		log.Printf("history query: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	c, err := s.resolveCaller(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token", "unknown access token")
		return
	}

	if c.user != nil {
		st, err := s.users.Status(r.Context(), c.user.ID)
		if err != nil {
			log.Printf("quota status: %v", err)
			writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	writeJSON(w, http.StatusOK, models.QuotaStatus{
		Tier:      models.TierFree,
		Limit:     s.trial.Limit(),
		Used:      s.trial.Limit() - s.trial.Remaining(c.fingerprint),
		Remaining: s.trial.Remaining(c.fingerprint),
	})
}
