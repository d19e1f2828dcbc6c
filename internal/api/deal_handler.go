package api

import (
	"errors"
	"image"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/imaging"
	"github.com/pinnity/pinnity/internal/service"
)

func (h *handler) listDeals(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	deals, err := h.Deals.ListPublic(c.Request.Context(), service.DealQuery{
		Category: c.Query("category"),
		Query:    c.Query("q"),
		Page:     page,
	})
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals})
}

func (h *handler) getDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	d, err := h.Deals.GetPublic(c.Request.Context(), dealID)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) dealRatings(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	ratings, err := h.Deals.Ratings(c.Request.Context(), dealID)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": ratings})
}

// Vendor

func (h *handler) myBusiness(c *gin.Context) {
	b, err := h.Businesses.ForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) updateBusiness(c *gin.Context) {
	var req service.BusinessInput
	if !bindJSON(c, &req, false) {
		return
	}
	b, err := h.Businesses.UpdateProfile(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) resubmitBusiness(c *gin.Context) {
	b, err := h.Businesses.Resubmit(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) vendorDeals(c *gin.Context) {
	deals, err := h.Deals.ListForVendor(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals})
}

func (h *handler) createDeal(c *gin.Context) {
	var req service.DealInput
	if !bindJSON(c, &req, false) {
		return
	}
	d, err := h.Deals.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *handler) updateDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	var req service.DealInput
	if !bindJSON(c, &req, false) {
		return
	}
	d, err := h.Deals.Update(c.Request.Context(), currentUserID(c), dealID, req)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) submitDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	d, err := h.Deals.Submit(c.Request.Context(), currentUserID(c), dealID)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) resubmitDeal(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	d, err := h.Deals.Resubmit(c.Request.Context(), currentUserID(c), dealID)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// cropFromForm reads crop_x, crop_y, crop_width, crop_height and rotation.
// A missing crop keeps the whole image.
func cropFromForm(c *gin.Context) (imaging.Options, error) {
	var opts imaging.Options
	read := func(key string) (int, error) {
		raw := c.PostForm(key)
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, errors.New(key + " must be an integer")
		}
		return n, nil
	}

	var vals [5]int
	for i, key := range []string{"crop_x", "crop_y", "crop_width", "crop_height", "rotation"} {
		n, err := read(key)
		if err != nil {
			return opts, err
		}
		vals[i] = n
	}
	if vals[2] < 0 || vals[3] < 0 {
		return opts, errors.New("crop size must not be negative")
	}
	if vals[2] > 0 && vals[3] > 0 {
		opts.Crop = image.Rect(vals[0], vals[1], vals[0]+vals[2], vals[1]+vals[3])
	}
	opts.Rotation = vals[4]
	return opts, nil
}

func (h *handler) uploadDealImage(c *gin.Context) {
	dealID, ok := pathID(c, id.ParseDealID)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	defer file.Close()

	src, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "image exceeds the upload limit")
		return
	}
	opts, err := cropFromForm(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	progress := func(p imaging.Progress) {
		h.Logger.DebugContext(ctx, "image compression",
			"deal_id", dealID, "attempt", p.Attempt, "quality", p.Quality, "bytes", p.Size)
	}
	d, res, err := h.Deals.UploadImage(ctx, currentUserID(c), dealID, src, opts, progress)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deal": d,
		"image": gin.H{
			"url":          d.ImageURL,
			"width":        res.Width,
			"height":       res.Height,
			"bytes":        len(res.Data),
			"quality":      res.Quality,
			"attempts":     res.Attempts,
			"within_limit": res.WithinLimit,
		},
	})
}

type completeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *handler) completeRedemption(c *gin.Context) {
	rid, ok := pathID(c, id.ParseRedemptionID)
	if !ok {
		return
	}
	var req completeRequest
	if !bindJSON(c, &req, false) {
		return
	}
	r, err := h.Redemptions.Complete(c.Request.Context(), currentUserID(c), rid, req.Code)
	if err != nil {
		abortWithError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
