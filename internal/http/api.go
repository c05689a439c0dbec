package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"blog-service/internal/auth"
	"blog-service/internal/metrics"
	"blog-service/internal/ratelimit"
	"blog-service/internal/service"
	"blog-service/internal/storage"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config carries the handler's dependencies. Images, Limiter and Metrics
// are optional.
type Config struct {
	Users   service.UserService
	Blogs   service.BlogService
	Tokens  auth.TokenIssuer
	Images  storage.ImageStore
	Limiter ratelimit.Limiter
	Metrics *metrics.Metrics
	Health  Pinger
	Logger  logrus.FieldLogger

	RequestTimeout   time.Duration
	EnforceOwnership bool
	SignupPerMinute  int
	LoginPerMinute   int
	MaxImageBytes    int64
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users   service.UserService
	blogs   service.BlogService
	tokens  auth.TokenIssuer
	images  storage.ImageStore
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	health  Pinger
	log     logrus.FieldLogger

	requestTimeout   time.Duration
	enforceOwnership bool
	signupPerMinute  int
	loginPerMinute   int
	maxImageBytes    int64
}

func NewHandler(cfg Config) *Handler {
	registerValidatorTagNames()

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		users:            cfg.Users,
		blogs:            cfg.Blogs,
		tokens:           cfg.Tokens,
		images:           cfg.Images,
		limiter:          cfg.Limiter,
		metrics:          cfg.Metrics,
		health:           cfg.Health,
		log:              log,
		requestTimeout:   cfg.RequestTimeout,
		enforceOwnership: cfg.EnforceOwnership,
		signupPerMinute:  cfg.SignupPerMinute,
		loginPerMinute:   cfg.LoginPerMinute,
		maxImageBytes:    cfg.MaxImageBytes,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), h.requestLogger(), h.metricsMiddleware())

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(h.timeoutMiddleware(), h.bearerAuth())
	{
		api.GET("/health", h.healthCheck)

		api.GET("/user", h.listUsers)
		api.POST("/user/signup", h.rateLimit("signup", h.signupPerMinute), h.signup)
		api.POST("/user/login", h.rateLimit("login", h.loginPerMinute), h.login)

		owned := h.requireAuth()
		api.GET("/blog", h.listBlogs)
		api.POST("/blog/add", owned, h.addBlog)
		api.POST("/blog/image", owned, h.uploadImage)
		api.PUT("/blog/update/:id", owned, h.updateBlog)
		api.GET("/blog/user/:id", h.blogsByUser)
		api.GET("/blog/:id", h.getBlog)
		api.DELETE("/blog/:id", owned, h.deleteBlog)
	}
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type addBlogRequest struct {
	Title string `json:"title" binding:"required"`
	Desc  string `json:"desc" binding:"required"`
	Img   string `json:"img"`
	User  string `json:"user" binding:"required"`
}

type updateBlogRequest struct {
	Title *string `json:"title"`
	Desc  *string `json:"desc"`
}

func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.health != nil {
		if err := h.health.Ping(ctx); err != nil {
			h.log.WithError(err).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, http.StatusNotFound, "No users found", err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(&users[i])
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.respondError(c, http.StatusBadRequest, validationMessage(err), err)
		case errors.Is(err, service.ErrConflict):
			h.respondError(c, http.StatusBadRequest, "User already exists", err)
		default:
			h.respondError(c, http.StatusInternalServerError, "Unable to sign up", err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userToResponse(user)})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.respondError(c, http.StatusBadRequest, validationMessage(err), err)
		case errors.Is(err, service.ErrNotFound):
			h.respondError(c, http.StatusNotFound, "User not found", err)
		case errors.Is(err, service.ErrUnauthorized):
			h.respondError(c, http.StatusBadRequest, "Incorrect password", err)
		default:
			h.respondError(c, http.StatusInternalServerError, "Unable to log in", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user), "token": token})
}

func (h *Handler) listBlogs(c *gin.Context) {
	blogs, err := h.blogs.List(c.Request.Context())
	if err != nil {
		h.respondError(c, http.StatusNotFound, "No blogs found", err)
		return
	}

	resp := make([]BlogResponse, len(blogs))
	for i := range blogs {
		resp[i] = blogToResponse(&blogs[i])
	}
	c.JSON(http.StatusOK, gin.H{"blogs": resp})
}

func (h *Handler) addBlog(c *gin.Context) {
	var req addBlogRequest
	if !h.bindJSON(c, &req) {
		return
	}

	blog, err := h.blogs.Add(c.Request.Context(), actorID(c), service.AddBlogInput{
		Title:  req.Title,
		Desc:   req.Desc,
		Img:    req.Img,
		UserID: req.User,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.respondError(c, http.StatusBadRequest, validationMessage(err), err)
		case errors.Is(err, service.ErrUnauthorized):
			h.respondError(c, http.StatusBadRequest, "Unauthorized", err)
		case errors.Is(err, service.ErrForbidden):
			h.respondError(c, http.StatusForbidden, "Forbidden", err)
		default:
			h.respondError(c, http.StatusInternalServerError, "Unable to add blog", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"blog": blogToResponse(blog)})
}

func (h *Handler) updateBlog(c *gin.Context) {
	var req updateBlogRequest
	if !h.bindJSON(c, &req) {
		return
	}

	blog, err := h.blogs.Update(c.Request.Context(), actorID(c), c.Param("id"), req.Title, req.Desc)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.respondError(c, http.StatusBadRequest, validationMessage(err), err)
		case errors.Is(err, service.ErrForbidden):
			h.respondError(c, http.StatusForbidden, "Forbidden", err)
		default:
			// unknown ids land here too
			h.respondError(c, http.StatusInternalServerError, "Unable to update", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"blog": blogToResponse(blog)})
}

func (h *Handler) getBlog(c *gin.Context) {
	blog, err := h.blogs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, http.StatusInternalServerError, "not found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"blog": blogToResponse(blog)})
}

func (h *Handler) deleteBlog(c *gin.Context) {
	blog, err := h.blogs.Delete(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			h.respondError(c, http.StatusNotFound, "Blog not found", err)
		case errors.Is(err, service.ErrForbidden):
			h.respondError(c, http.StatusForbidden, "Forbidden", err)
		default:
			h.respondError(c, http.StatusInternalServerError, "Unable to delete", err)
		}
		return
	}

	h.removeBlogImage(c.Request.Context(), blog.ID, blog.Img)
	c.JSON(http.StatusOK, gin.H{"message": "Successfully deleted"})
}

func (h *Handler) blogsByUser(c *gin.Context) {
	user, err := h.blogs.ListByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.respondError(c, http.StatusNotFound, "No Blog Found", err)
			return
		}
		h.respondError(c, http.StatusInternalServerError, "Unable to load blogs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userWithBlogsToResponse(user)})
}

// bindJSON answers 400 itself when the body does not bind.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, http.StatusBadRequest, bindingMessage(err), err)
		return false
	}
	return true
}

// respondError writes {"message": message}. A request that ran out of time
// is reported as 504 whatever the route would have answered.
func (h *Handler) respondError(c *gin.Context, status int, message string, err error) {
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		status, message = http.StatusGatewayTimeout, "request timed out"
	}

	entry := h.log.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"status": status,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}

	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
