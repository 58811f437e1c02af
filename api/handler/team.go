package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/pkg/httpcontext"
	teamUC "github.com/taskflow/backend/usecase/team"
)

type TeamHandler struct {
	baseHandler
	uc *teamUC.UseCase
}

func NewTeamHandler(uc *teamUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List my teams
// @Tags teams
// @Router /api/v1/teams [get]
func (h *TeamHandler) List(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	teams, err := h.uc.ListTeams(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, teams)
}

// @Summary Create team
// @Tags teams
// @Router /api/v1/teams [post]
func (h *TeamHandler) Create(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	var req transport.TeamRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	team, err := h.uc.CreateTeam(stdCtx, userID, req.Name)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, team)
}

// @Summary List team memberships
// @Tags teams
// @Router /api/v1/teams/{id}/memberships [get]
func (h *TeamHandler) Members(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	teamID := h.pathParam(ctx, "id")
	if teamID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	members, err := h.uc.ListMembers(stdCtx, userID, teamID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, members)
}

// @Summary Invite by email
// @Tags teams
// @Router /api/v1/teams/{id}/memberships [post]
func (h *TeamHandler) Invite(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	teamID := h.pathParam(ctx, "id")
	if teamID == "" {
		return
	}
	var req transport.InviteRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	membership, err := h.uc.Invite(stdCtx, userID, teamID, req.Email, req.Role)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, membership)
}

// @Summary Change a member's role
// @Tags teams
// @Router /api/v1/teams/{id}/memberships/{membershipId} [patch]
func (h *TeamHandler) UpdateRole(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	teamID := h.pathParam(ctx, "id")
	if teamID == "" {
		return
	}
	membershipID := h.pathParam(ctx, "membershipId")
	if membershipID == "" {
		return
	}
	var req transport.RoleRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	membership, err := h.uc.UpdateRole(stdCtx, userID, teamID, membershipID, req.Value())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, membership)
}

// @Summary Remove a member or leave
// @Tags teams
// @Router /api/v1/teams/{id}/memberships/{membershipId} [delete]
func (h *TeamHandler) Remove(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	teamID := h.pathParam(ctx, "id")
	if teamID == "" {
		return
	}
	membershipID := h.pathParam(ctx, "membershipId")
	if membershipID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.RemoveMember(stdCtx, userID, teamID, membershipID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"id": membershipID})
}
