package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/id"
)

type moderationRequest struct {
	Feedback string `json:"feedback"`
	Reason   string `json:"reason"`
	Notes    string `json:"notes"`
}

func (h *handler) adminDeals(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	deals, err := h.Deals.ListByStatus(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals})
}

func (h *handler) adminDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	d, err := h.Deals.Get(c.Request.Context(), dealID)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) approveDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	var req moderationRequest
	if !bindJSON(c, &req, true) {
		return
	}
	d, err := h.Moderation.ApproveDeal(c.Request.Context(), currentUserID(c), dealID, req.Feedback)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) rejectDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	var req moderationRequest
	if !bindJSON(c, &req, true) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Feedback
	}
	d, err := h.Moderation.RejectDeal(c.Request.Context(), currentUserID(c), dealID, reason)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) requestRevision(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	var req moderationRequest
	if !bindJSON(c, &req, true) {
		return
	}
	notes := req.Notes
	if notes == "" {
		notes = req.Feedback
	}
	d, err := h.Moderation.RequestRevision(c.Request.Context(), currentUserID(c), dealID, notes)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) deleteDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	if err := h.Deals.Delete(c.Request.Context(), currentUserID(c), dealID); err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) adminBusinesses(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	list, err := h.Businesses.List(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"businesses": list})
}

func (h *handler) verifyBusiness(c *gin.Context) {
	bizID, ok := pathID(c, id.ParseBusinessID)
	if !ok {
		return
	}
	var req moderationRequest
	if !bindJSON(c, &req, true) {
		return
	}
	b, err := h.Moderation.VerifyBusiness(c.Request.Context(), currentUserID(c), bizID, req.Feedback)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) rejectBusiness(c *gin.Context) {
	bizID, ok := pathID(c, id.ParseBusinessID)
	if !ok {
		return
	}
	var req moderationRequest
	if !bindJSON(c, &req, true) {
		return
	}
	feedback := req.Feedback
	if feedback == "" {
		feedback = req.Reason
	}
	b, err := h.Moderation.RejectBusiness(c.Request.Context(), currentUserID(c), bizID, feedback)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) adminUsers(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	users, err := h.Admin.ListUsers(c.Request.Context(), page)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type userTypeRequest struct {
	UserType string `json:"user_type" binding:"required"`
}

func (h *handler) setUserType(c *gin.Context) {
	userID, ok := pathID(c, id.ParseUserID)
	if !ok {
		return
	}
	var req userTypeRequest
	if !bindJSON(c, &req, false) {
		return
	}
	u, err := h.Admin.SetUserType(c.Request.Context(), currentUserID(c), userID, req.UserType)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) stats(c *gin.Context) {
	s, err := h.Admin.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) auditTrail(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	events, err := h.Admin.Audit(c.Request.Context(), c.Query("resource_id"), limit)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
