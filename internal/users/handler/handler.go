package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"usermgmt/internal/users/models"
	id "usermgmt/pkg/domain"
	dErrors "usermgmt/pkg/domain-errors"
	"usermgmt/pkg/platform/httputil"
	"usermgmt/pkg/platform/middleware/device"
	"usermgmt/pkg/requestcontext"
)

// Service defines the directory operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.UserView, error)
	GetProfile(ctx context.Context, userID id.UserID, actor models.Actor) (*models.UserView, error)
	UpdateProfile(ctx context.Context, req models.UpdateProfileRequest, actor models.Actor) (*models.UserView, error)
	ChangePassword(ctx context.Context, req models.ChangePasswordRequest, actor models.Actor) error
	UpdateStatus(ctx context.Context, req models.UpdateStatusRequest, actor models.Actor) error
	AssignRole(ctx context.Context, req models.AssignRoleRequest, actor models.Actor) error
	VerifyEmail(ctx context.Context, userID id.UserID, actor models.Actor) error
	Search(ctx context.Context, req models.SearchRequest, actor models.Actor) (*models.PagedResult, error)
}

// Handler wires user directory endpoints to the directory service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the user directory endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users/register", h.HandleRegister)
	r.Get("/users", h.HandleSearch)
	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGetProfile)
		r.Put("/", h.HandleUpdateProfile)
		r.Post("/change-password", h.HandleChangePassword)
		r.Post("/status", h.HandleUpdateStatus)
		r.Post("/role", h.HandleAssignRole)
		r.Post("/verify-email", h.HandleVerifyEmail)
	})
}

// HandleRegister handles POST /users/register. Registration is public.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Register(ctx, req.ToModel(requestcontext.ClientIP(ctx), device.GetDeviceName(ctx)))
	if err != nil {
		h.writeError(ctx, w, err, "registration failed")
		return
	}

	h.logger.InfoContext(ctx, "user registered",
		"request_id", requestID,
		"user_id", view.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromView(view))
}

// HandleGetProfile handles GET /users/{id}.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetProfile(ctx, userID, actorFrom(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "get profile failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleUpdateProfile handles PUT /users/{id}.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.parsedID != userID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "id in path does not match id in body"))
		return
	}

	view, err := h.service.UpdateProfile(ctx, models.UpdateProfileRequest{
		UserID:   userID,
		FullName: req.FullName,
		Version:  req.Version,
	}, actorFrom(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "update profile failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleChangePassword handles POST /users/{id}/change-password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ChangePasswordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.ChangePassword(ctx, models.ChangePasswordRequest{
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}, actorFrom(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "change password failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateStatus handles POST /users/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.UpdateStatus(ctx, models.UpdateStatusRequest{
		UserID:   userID,
		IsActive: req.IsActive,
		Reason:   req.Reason,
	}, actorFrom(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "update status failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAssignRole handles POST /users/{id}/role.
func (h *Handler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AssignRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.AssignRole(ctx, models.AssignRoleRequest{
		UserID:  userID,
		NewRole: req.NewRole,
	}, actorFrom(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "assign role failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVerifyEmail handles POST /users/{id}/verify-email.
func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.VerifyEmail(ctx, userID, actorFrom(ctx)); err != nil {
		h.writeError(ctx, w, err, "verify email failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSearch handles GET /users?page=&page_size=&search_term=&role=&status=.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, err := queryInt(q.Get("page"), "page")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pageSize, err := queryInt(q.Get("page_size"), "page_size")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Search(ctx, models.SearchRequest{
		Page:       page,
		PageSize:   pageSize,
		SearchTerm: q.Get("search_term"),
		Role:       q.Get("role"),
		Status:     q.Get("status"),
	}, actorFrom(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "search failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPagedResult(res))
}

func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, false
	}
	return userID, true
}

// writeError logs client errors at warn and everything else at error, then
// writes the envelope.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}

func actorFrom(ctx context.Context) models.Actor {
	return models.Actor{
		ID:   requestcontext.UserID(ctx),
		Role: requestcontext.ActorRole(ctx),
	}
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be an integer")
	}
	return n, nil
}
