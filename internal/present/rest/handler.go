package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/internal/present/rest/middleware"
	"github.com/docshield/docshield/internal/present/rest/presenter"
	"github.com/docshield/docshield/internal/usecase"
	"github.com/docshield/docshield/policy"
)

// Realtimer bridges a client's channel subscriptions to the event
// stream. It must return when ctx is cancelled.
type Realtimer interface {
	Realtime(ctx context.Context, input <-chan []string, output chan<- docshield.Event)
}

type Handler struct {
	role     *usecase.RoleUsecase
	request  *usecase.RequestUsecase
	document *usecase.DocumentUsecase
	view     *usecase.ViewUsecase
	signal   Realtimer
}

func NewHandler(
	role *usecase.RoleUsecase,
	request *usecase.RequestUsecase,
	document *usecase.DocumentUsecase,
	view *usecase.ViewUsecase,
	signal Realtimer,
) *Handler {
	return &Handler{
		role:     role,
		request:  request,
		document: document,
		view:     view,
		signal:   signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/roles", h.handleRoleList)
	e.GET("/api/v1/roles/:address", h.handleRoleLookup)
	e.POST("/api/v1/roles", h.handleRoleAssign)
	e.DELETE("/api/v1/roles/:address", h.handleRoleRemove)
	e.GET("/api/v1/owner", h.handleOwner)
	e.POST("/api/v1/owner/claim", h.handleOwnerClaim)
	e.POST("/api/v1/requests", h.handleRequestSubmit)
	e.GET("/api/v1/requests/pending", h.handleRequestsPending)
	e.GET("/api/v1/requests/:address/status", h.handleRequestStatus)
	e.POST("/api/v1/requests/:id/approve", h.handleRequestApprove)
	e.POST("/api/v1/requests/:id/decline", h.handleRequestDecline)
	e.GET("/api/v1/documents", h.handleDocumentList)
	e.POST("/api/v1/documents", h.handleDocumentCreate)
	e.PUT("/api/v1/documents/:id", h.handleDocumentUpdate)
	e.DELETE("/api/v1/documents/:id", h.handleDocumentDelete)
	e.PUT("/api/v1/documents/:id/rules", h.handleDocumentSetRule)
	e.GET("/api/v1/view", h.handleView)
	e.POST("/api/v1/view/:field/unmask", h.handleUnmask)
	e.GET("/realtime", h.handleRealtime)
}

// present maps domain errors onto the HTTP surface. Permission
// failures are 403, conflicts 409, absent records 404.
func present(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return presenter.Forbidden(c, err)
	case errors.Is(err, domain.ErrConflict):
		return presenter.Conflict(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	default:
		return presenter.InternalError(c, err)
	}
}

func (h *Handler) handleRoleList(c echo.Context) error {
	ctx := c.Request().Context()

	records, err := h.role.List(ctx)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, records)
}

// handleRoleLookup resolves a wallet's role record. A wallet asking
// about itself goes through Connect, so the first wallet to ever look
// itself up claims ownership.
func (h *Handler) handleRoleLookup(c echo.Context) error {
	ctx := c.Request().Context()
	address := c.Param("address")

	if !docshield.IsAddress(address) {
		return presenter.BadRequestMessage(c, "invalid wallet address")
	}

	normalized, err := docshield.NormalizeAddress(address)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var record docshield.WalletRole
	if middleware.Requester(ctx) == normalized {
		record, err = h.role.Connect(ctx, normalized)
	} else {
		record, err = h.role.Lookup(ctx, normalized)
	}
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, record)
}

type assignRoleRequest struct {
	Address string  `json:"address"`
	Role    string  `json:"role"`
	Name    *string `json:"name,omitempty"`
}

func (h *Handler) handleRoleAssign(c echo.Context) error {
	ctx := c.Request().Context()

	var req assignRoleRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !docshield.IsAddress(req.Address) {
		return presenter.BadRequestMessage(c, "invalid wallet address")
	}
	role, ok := docshield.ParseRole(req.Role)
	if !ok {
		return presenter.BadRequestMessage(c, fmt.Sprintf("unknown role: %s", req.Role))
	}

	err := h.role.Assign(ctx, middleware.Requester(ctx), req.Address, role, req.Name)
	if err != nil {
		return present(c, err)
	}

	record, err := h.role.Lookup(ctx, req.Address)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, record)
}

func (h *Handler) handleRoleRemove(c echo.Context) error {
	ctx := c.Request().Context()
	address := c.Param("address")

	if !docshield.IsAddress(address) {
		return presenter.BadRequestMessage(c, "invalid wallet address")
	}

	err := h.role.Remove(ctx, middleware.Requester(ctx), address)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleOwner(c echo.Context) error {
	ctx := c.Request().Context()

	owner, err := h.role.Owner(ctx)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{"address": owner.Address})
}

type claimOwnerRequest struct {
	Address string `json:"address"`
}

func (h *Handler) handleOwnerClaim(c echo.Context) error {
	ctx := c.Request().Context()

	var req claimOwnerRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !docshield.IsAddress(req.Address) {
		return presenter.BadRequestMessage(c, "invalid wallet address")
	}

	claimed, err := h.role.ClaimOwnership(ctx, req.Address)
	if err != nil {
		return present(c, err)
	}

	owner, err := h.role.Owner(ctx)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{
		"claimed": claimed,
		"owner":   owner.Address,
	})
}

type submitRequestRequest struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	RequestedRole string `json:"requestedRole"`
}

func (h *Handler) handleRequestSubmit(c echo.Context) error {
	ctx := c.Request().Context()

	var req submitRequestRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !docshield.IsAddress(req.Address) {
		return presenter.BadRequestMessage(c, "invalid wallet address")
	}
	role, ok := docshield.ParseRole(req.RequestedRole)
	if !ok {
		return presenter.BadRequestMessage(c, fmt.Sprintf("unknown role: %s", req.RequestedRole))
	}

	request, err := h.request.Submit(ctx, req.Address, req.Name, role)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, request)
}

func (h *Handler) handleRequestsPending(c echo.Context) error {
	ctx := c.Request().Context()

	requests, err := h.request.ListPending(ctx, middleware.Requester(ctx))
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, requests)
}

func (h *Handler) handleRequestStatus(c echo.Context) error {
	ctx := c.Request().Context()
	address := c.Param("address")

	if !docshield.IsAddress(address) {
		return presenter.BadRequestMessage(c, "invalid wallet address")
	}

	request, err := h.request.Status(ctx, address)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, request)
}

type approveRequestRequest struct {
	Role *string `json:"role,omitempty"`
}

func (h *Handler) handleRequestApprove(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req approveRequestRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	var override *docshield.Role
	if req.Role != nil {
		role, ok := docshield.ParseRole(*req.Role)
		if !ok {
			return presenter.BadRequestMessage(c, fmt.Sprintf("unknown role: %s", *req.Role))
		}
		override = &role
	}

	approved, err := h.request.Approve(ctx, middleware.Requester(ctx), id, override)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, approved)
}

func (h *Handler) handleRequestDecline(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	declined, err := h.request.Decline(ctx, middleware.Requester(ctx), id)
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, declined)
}

func (h *Handler) handleDocumentList(c echo.Context) error {
	ctx := c.Request().Context()

	fields, err := h.document.ListWithRules(ctx, middleware.Requester(ctx))
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, fields)
}

type fieldRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	Sensitivity string `json:"sensitivity"`
}

func (f fieldRequest) toField() docshield.Field {
	return docshield.Field{
		ID:          docshield.FieldID(f.ID),
		Name:        f.Name,
		Value:       f.Value,
		Sensitivity: docshield.Sensitivity(f.Sensitivity),
	}
}

func (h *Handler) handleDocumentCreate(c echo.Context) error {
	ctx := c.Request().Context()

	var req fieldRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	err := h.document.Create(ctx, middleware.Requester(ctx), req.toField())
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleDocumentUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	var req fieldRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	req.ID = c.Param("id")

	err := h.document.Update(ctx, middleware.Requester(ctx), req.toField())
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleDocumentDelete(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.document.Delete(ctx, middleware.Requester(ctx), docshield.FieldID(c.Param("id")))
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type setRuleRequest struct {
	Role    string `json:"role"`
	CanView bool   `json:"canView"`
	Mask    string `json:"mask"`
}

func policyRule(req setRuleRequest) policy.Rule {
	return policy.Rule{
		CanView: req.CanView,
		Mask:    docshield.MaskKind(req.Mask),
	}
}

func (h *Handler) handleDocumentSetRule(c echo.Context) error {
	ctx := c.Request().Context()

	var req setRuleRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	role, ok := docshield.ParseRole(req.Role)
	if !ok {
		return presenter.BadRequestMessage(c, fmt.Sprintf("unknown role: %s", req.Role))
	}
	if req.Mask == "" {
		req.Mask = string(docshield.MaskNone)
	}
	switch docshield.MaskKind(req.Mask) {
	case docshield.MaskNone, docshield.MaskPartial, docshield.MaskSemantic:
	default:
		return presenter.BadRequestMessage(c, fmt.Sprintf("unknown mask: %s", req.Mask))
	}

	err := h.document.SetRule(ctx, middleware.Requester(ctx), docshield.FieldID(c.Param("id")), role, policyRule(req))
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// handleView renders the document through the requester's role. The
// wallet must be connected and assigned; anonymous viewers get nothing.
func (h *Handler) handleView(c echo.Context) error {
	ctx := c.Request().Context()

	requester := middleware.Requester(ctx)
	if requester == "" {
		return presenter.Forbidden(c, domain.PermissionDeniedError{Operation: "view document"})
	}

	record, err := h.role.Lookup(ctx, requester)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.Forbidden(c, domain.PermissionDeniedError{Operation: "view document"})
		}
		return present(c, err)
	}

	views, err := h.view.Render(ctx, record.Role.AccessProfile())
	if err != nil {
		return present(c, err)
	}
	return presenter.OK(c, echo.Map{
		"role":   record.Role,
		"fields": views,
	})
}

func (h *Handler) handleUnmask(c echo.Context) error {
	ctx := c.Request().Context()

	requester := middleware.Requester(ctx)
	if requester == "" {
		return presenter.Forbidden(c, domain.PermissionDeniedError{Operation: "semantic unmask"})
	}

	record, err := h.role.Lookup(ctx, requester)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.Forbidden(c, domain.PermissionDeniedError{Operation: "semantic unmask"})
		}
		return present(c, err)
	}

	id := docshield.FieldID(c.Param("field"))
	masked, err := h.view.Unmask(ctx, record.Role.AccessProfile(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			return presenter.Forbidden(c, err)
		case errors.Is(err, domain.ErrNotFound):
			return presenter.NotFound(c, err.Error())
		default:
			// The rewrite service is upstream of us; its failures are
			// retryable by the caller.
			return presenter.BadGateway(c, err)
		}
	}
	return presenter.OK(c, echo.Map{
		"field":  id,
		"masked": masked,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	// Cancellation is the only shutdown signal: the bridge and the
	// read loop both watch ctx, so the channels are never closed while
	// a sender may be blocked on them.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan docshield.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Channels:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Channels),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
