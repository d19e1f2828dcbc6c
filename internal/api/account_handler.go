package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/service"
)

type signupBusinessRequest struct {
	service.SignupInput
	Business service.BusinessInput `json:"business"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) signup(c *gin.Context) {
	var req service.SignupInput
	if !bindJSON(c, &req, false) {
		return
	}
	s, err := h.Auth.Signup(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *handler) signupBusiness(c *gin.Context) {
	var req signupBusinessRequest
	if !bindJSON(c, &req, false) {
		return
	}
	s, err := h.Auth.SignupBusiness(c.Request.Context(), req.SignupInput, req.Business)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, false) {
		return
	}
	s, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": model.Categories})
}

func (h *handler) me(c *gin.Context) {
	u, _ := c.Get(ctxUser)
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *handler) preferences(c *gin.Context) {
	p, err := h.Notifications.Preferences(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) updatePreferences(c *gin.Context) {
	var req service.PreferencesInput
	if !bindJSON(c, &req, false) {
		return
	}
	p, err := h.Notifications.UpdatePreferences(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) notifications(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	unread := c.Query("unread") == "true"
	list, err := h.Notifications.List(c.Request.Context(), currentUserID(c), unread, limit)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *handler) markRead(c *gin.Context) {
	nid, ok := pathID(c, id.ParseNotificationID)
	if !ok {
		return
	}
	if err := h.Notifications.MarkRead(c.Request.Context(), currentUserID(c), nid); err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) favorites(c *gin.Context) {
	list, err := h.Favorites.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": list})
}

func (h *handler) addFavorite(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	added, err := h.Favorites.Add(c.Request.Context(), currentUserID(c), dealID)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"deal_id": dealID, "saved": true})
}

func (h *handler) removeFavorite(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	if _, err := h.Favorites.Remove(c.Request.Context(), currentUserID(c), dealID); err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) redeem(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	receipt, err := h.Redemptions.Redeem(c.Request.Context(), currentUserID(c), dealID)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *handler) myRedemptions(c *gin.Context) {
	list, err := h.Redemptions.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redemptions": list})
}

func (h *handler) cancelRedemption(c *gin.Context) {
	rid, ok := pathID(c, id.ParseRedemptionID)
	if !ok {
		return
	}
	r, err := h.Redemptions.Cancel(c.Request.Context(), currentUserID(c), rid)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) rateRedemption(c *gin.Context) {
	rid, ok := pathID(c, id.ParseRedemptionID)
	if !ok {
		return
	}
	var req service.RatingInput
	if !bindJSON(c, &req, false) {
		return
	}
	rating, err := h.Redemptions.Rate(c.Request.Context(), currentUserID(c), rid, req)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}
