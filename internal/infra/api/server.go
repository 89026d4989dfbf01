package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"license-authority/internal/domain"
	"license-authority/internal/domain/model"
	"license-authority/internal/infra/logging"
	"license-authority/internal/infra/metrics"
	red "license-authority/internal/infra/redis"
	"license-authority/internal/usecase"
)

// Server exposes the license lifecycle over HTTP. Request bodies are
// strictly typed and validated here; malformed shapes never reach the
// use case.
type Server struct {
	licUC           *usecase.LicenseUseCase
	limiter         *red.RateLimiter
	verifyPerMinute int
	apiKey          string
	timeout         time.Duration
	log             *zerolog.Logger
}

func NewServer(licUC *usecase.LicenseUseCase, limiter *red.RateLimiter, verifyPerMinute int, apiKey string, timeout time.Duration, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		licUC:           licUC,
		limiter:         limiter,
		verifyPerMinute: verifyPerMinute,
		apiKey:          apiKey,
		timeout:         timeout,
		log:             &l,
	}
}

// Router builds the chi routing tree with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return Chain(next, TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.timeout)) })

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit).Post("/licenses/verify", s.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler { return AdminAuth(s.apiKey, s.log)(next) })
			r.Post("/licenses", s.handleIssue)
			r.Delete("/licenses/{id}", s.handleRevoke)
			r.Get("/licenses/{id}/activations", s.handleActivations)
		})
	})
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.verifyPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ok, err := s.limiter.Allow(r.Context(), red.VerifyKey(host), s.verifyPerMinute, time.Minute)
		if err != nil {
			// Limiter outage must not take verification down with it.
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type issueRequest struct {
	Subject     string `json:"subject"`
	Tier        string `json:"tier"`
	DeviceLimit int    `json:"device_limit"`
	PeriodDays  int    `json:"period_days"`
}

type issueResponse struct {
	LicenseID string    `json:"license_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request")
		return
	}
	if req.Subject == "" || req.Tier == "" || req.DeviceLimit < 1 || req.PeriodDays < 1 {
		writeError(w, http.StatusBadRequest, "invalid_field")
		return
	}

	res, err := s.licUC.Issue(r.Context(), req.Subject, model.Tier(req.Tier), req.DeviceLimit, time.Duration(req.PeriodDays)*24*time.Hour)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncLicenseIssued(model.Tier(req.Tier))
	writeJSON(w, http.StatusCreated, issueResponse{
		LicenseID: res.LicenseID,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

type verifyRequest struct {
	Token       string `json:"token"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type verifyResponse struct {
	Valid               bool      `json:"valid"`
	Tier                string    `json:"tier,omitempty"`
	ExpiresAt           time.Time `json:"expires_at,omitempty"`
	DeviceLimit         int       `json:"device_limit,omitempty"`
	BoundDeviceCount    int       `json:"bound_device_count"`
	DeviceLimitExceeded bool      `json:"device_limit_exceeded"`
	Error               string    `json:"error,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "invalid_field")
		return
	}

	res, err := s.licUC.Verify(r.Context(), req.Token, req.Fingerprint)
	if err != nil {
		kind, status := classify(err)
		metrics.IncVerification(kind)
		writeJSON(w, status, verifyResponse{Valid: false, Error: kind})
		return
	}

	metrics.IncVerification("valid")
	if res.Outcome != "" {
		metrics.IncDeviceAdmission(res.Outcome)
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Valid:               true,
		Tier:                string(res.Tier),
		ExpiresAt:           res.ExpiresAt,
		DeviceLimit:         res.DeviceLimit,
		BoundDeviceCount:    res.BoundDeviceCount,
		DeviceLimitExceeded: res.DeviceLimitExceeded,
	})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = r.WithContext(logging.WithLicenseID(r.Context(), id))
	if err := s.licUC.Revoke(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncLicenseRevoked()
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

type activationResponse struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Outcome     string    `json:"outcome"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (s *Server) handleActivations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = r.WithContext(logging.WithLicenseID(r.Context(), id))
	events, err := s.licUC.Activations(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]activationResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, activationResponse{
			ID:          ev.ID,
			Fingerprint: ev.Fingerprint,
			Outcome:     string(ev.Outcome),
			OccurredAt:  ev.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// classify maps a domain error kind to its wire name and HTTP status.
// The boundary translates, it never invents semantics.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_field", http.StatusBadRequest
	case errors.Is(err, domain.ErrFingerprintEmpty), errors.Is(err, domain.ErrFingerprintTooShort):
		return "bad_fingerprint", http.StatusBadRequest
	case errors.Is(err, domain.ErrTokenMalformed):
		return "malformed_token", http.StatusBadRequest
	case errors.Is(err, domain.ErrBadSignature):
		return "bad_signature", http.StatusUnauthorized
	case errors.Is(err, domain.ErrIssuerMismatch):
		return "issuer_mismatch", http.StatusUnauthorized
	case errors.Is(err, domain.ErrAudienceMismatch):
		return "audience_mismatch", http.StatusUnauthorized
	case errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrLicenseExpired):
		return "expired", http.StatusForbidden
	case errors.Is(err, domain.ErrLicenseRevoked):
		return "revoked", http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRevoked):
		return "already_revoked", http.StatusConflict
	case errors.Is(err, domain.ErrDuplicateActive):
		return "duplicate_active", http.StatusConflict
	case errors.Is(err, domain.ErrVersionConflict):
		return "conflict_retry", http.StatusConflict
	case errors.Is(err, domain.ErrSigningKeyInvalid):
		return "signing_unavailable", http.StatusInternalServerError
	default:
		return "storage_unavailable", http.StatusServiceUnavailable
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classify(err)
	if status >= 500 {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
	}
	writeError(w, status, kind)
}

func decodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]string{"error": kind})
}
