package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"signals/internal/platform/middleware"
	"signals/internal/sigmax/service"
	"signals/internal/sigmax/stuf"
	"signals/pkg/requestcontext"
)

// SOAPPath is the single inbound endpoint CityControl posts to.
const SOAPPath = "/signals/sigmax/soap"

const (
	maxBodyBytes    = 1 << 20
	contentTypeSOAP = "text/xml; charset=utf-8"
)

// Service handles the one inbound action CityControl sends.
type Service interface {
	HandleStatusUpdate(ctx context.Context, body []byte) service.Reply
}

// Handler dispatches inbound SOAP calls on the SOAPAction header.
type Handler struct {
	logger       *slog.Logger
	service      Service
	builder      *stuf.Builder
	jwtValidator middleware.JWTValidator
	extra        []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithMiddleware appends mws after authentication, e.g. a per-caller rate limit.
func WithMiddleware(mws ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.extra = append(h.extra, mws...)
	}
}

// New creates the handler. A nil jwtValidator leaves the endpoint
// unauthenticated, which is only meant for local development.
func New(svc Service, builder *stuf.Builder, logger *slog.Logger, jwtValidator middleware.JWTValidator, opts ...Option) *Handler {
	if builder == nil {
		builder = stuf.NewBuilder()
	}
	h := &Handler{
		logger:       logger,
		service:      svc,
		builder:      builder,
		jwtValidator: jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the SOAP endpoint on r.
func (h *Handler) Register(r chi.Router) {
	r.Route(SOAPPath, func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.Logger(h.logger))
		if h.jwtValidator != nil {
			r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		}
		r.Use(h.extra...)
		r.Post("/", h.handleSOAP)
		r.Options("/", h.handleOptions)
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, OPTIONS")
			w.WriteHeader(http.StatusMethodNotAllowed)
		})
	})
}

func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleSOAP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	actions := r.Header.Values("SOAPAction")
	if len(actions) == 0 {
		h.logger.WarnContext(ctx, "SOAPAction header not set", "request_id", requestID)
		h.writeFault(w, r, "SOAPAction header not set")
		return
	}
	if action := actions[0]; action != stuf.ActionActualiseerZaakstatus {
		msg := "SOAPAction: " + action + " is not supported"
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "soap_action", action)
		h.writeFault(w, r, msg)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		msg := "Bericht kon niet gelezen worden"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "Bericht is te groot"
		}
		h.logger.WarnContext(ctx, "failed to read SOAP body", "request_id", requestID, "error", err)
		h.writeFault(w, r, msg)
		return
	}

	reply := h.service.HandleStatusUpdate(ctx, body)
	if !reply.OK() {
		h.writeFault(w, r, reply.Fault)
		return
	}

	out, err := h.builder.BuildBv03(reply.CaseID, reply.CrossRef, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build Bv03", "request_id", requestID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.logger.InfoContext(ctx, "sigmax status update accepted",
		"request_id", requestID,
		"case_id", reply.CaseID.String(),
	)
	writeXML(w, http.StatusOK, out)
}

func (h *Handler) writeFault(w http.ResponseWriter, r *http.Request, msg string) {
	out, err := h.builder.BuildFo03(msg, requestcontext.Now(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build Fo03", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeXML(w, http.StatusInternalServerError, out)
}

func writeXML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", contentTypeSOAP)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
