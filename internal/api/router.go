// Package api serves the Pinnity REST API with gin.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
	"github.com/pinnity/pinnity/internal/service"
	"github.com/pinnity/pinnity/internal/storage"
)

// Deps wires the router to the services.
type Deps struct {
	Store  repository.Store
	Tokens *auth.TokenManager
	Logger *slog.Logger

	Auth          *service.AuthService
	Businesses    *service.BusinessService
	Deals         *service.DealService
	Moderation    *service.ModerationService
	Redemptions   *service.RedemptionService
	Favorites     *service.FavoriteService
	Notifications *service.NotificationService
	Admin         *service.AdminService

	// Images is set when deal images live in process and must be served
	// from /images.
	Images *storage.MemoryStore

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with every route mounted under /api/v1
// and again under /api for older clients.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(d.Logger), Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", h.health)
	r.GET("/health/db", h.healthDB)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.Images != nil {
		r.GET("/images/*key", h.serveImage)
	}

	limited := RateLimit(d.RateLimitRPS, d.RateLimitBurst)
	h.mount(r.Group("/api/v1", limited))
	h.mount(r.Group("/api", limited))
	return r
}

func (h *handler) mount(g *gin.RouterGroup) {
	g.POST("/auth/signup", h.signup)
	g.POST("/auth/signup/business", h.signupBusiness)
	g.POST("/auth/login", h.login)
	g.GET("/categories", h.categories)
	g.GET("/deals", h.listDeals)
	g.GET("/deals/:id", h.getDeal)
	g.GET("/deals/:id/ratings", h.dealRatings)

	authed := g.Group("", Authenticate(h.Tokens, h.Auth, h.Logger))
	{
		authed.GET("/me", h.me)
		authed.GET("/me/notification-preferences", h.preferences)
		authed.PUT("/me/notification-preferences", h.updatePreferences)
		authed.GET("/me/notifications", h.notifications)
		authed.POST("/me/notifications/:id/read", h.markRead)
		authed.GET("/me/favorites", h.favorites)
		authed.POST("/deals/:id/favorite", h.addFavorite)
		authed.DELETE("/deals/:id/favorite", h.removeFavorite)
		authed.POST("/deals/:id/redeem", h.redeem)
		authed.GET("/me/redemptions", h.myRedemptions)
		authed.POST("/redemptions/:id/cancel", h.cancelRedemption)
		authed.POST("/redemptions/:id/rating", h.rateRedemption)
	}

	vendor := authed.Group("/vendor", RequireRole(model.UserBusiness))
	{
		vendor.GET("/business", h.myBusiness)
		vendor.PUT("/business", h.updateBusiness)
		vendor.POST("/business/resubmit", h.resubmitBusiness)
		vendor.GET("/deals", h.vendorDeals)
		vendor.POST("/deals", h.createDeal)
		vendor.PUT("/deals/:id", h.updateDeal)
		vendor.POST("/deals/:id/submit", h.submitDeal)
		vendor.POST("/deals/:id/resubmit", h.resubmitDeal)
		vendor.POST("/deals/:id/image", h.uploadDealImage)
		vendor.POST("/redemptions/:id/complete", h.completeRedemption)
	}

	admin := authed.Group("/admin", RequireRole(model.UserAdmin))
	{
		admin.GET("/deals", h.adminDeals)
		admin.GET("/deals/:id", h.adminDeal)
		admin.POST("/deals/:id/approve", h.approveDeal)
		admin.POST("/deals/:id/reject", h.rejectDeal)
		admin.POST("/deals/:id/request-revision", h.requestRevision)
		admin.DELETE("/deals/:id", h.deleteDeal)
		admin.GET("/businesses", h.adminBusinesses)
		admin.POST("/businesses/:id/verify", h.verifyBusiness)
		admin.POST("/businesses/:id/reject", h.rejectBusiness)
		admin.GET("/users", h.adminUsers)
		admin.PUT("/users/:id/type", h.setUserType)
		admin.GET("/stats", h.stats)
		admin.GET("/audit", h.auditTrail)
	}
}

func (h *handler) health(c *gin.Context) {
	hostname, _ := os.Hostname()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pinnity", "hostname": hostname})
}

func (h *handler) healthDB(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "postgres unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "postgres": "connected"})
}

func (h *handler) serveImage(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	obj, ok := h.Images.Get(key)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "image not found"})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, obj.ContentType, obj.Body)
}
