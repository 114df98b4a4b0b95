package http

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"auth-api/internal/domain"
	"auth-api/internal/repository"
	"auth-api/internal/security"
	"auth-api/internal/service"
	"auth-api/internal/storage"
)

const (
	msgInvalidCredentials = "Login ou senha inválidos"
	msgUserExists         = "Usuário já existe"
	msgInvalidToken       = "Token inválido ou expirado"
	msgForbidden          = "Acesso negado"
	msgBadRequest         = "Requisição inválida"
	msgInternal           = "Erro interno do servidor"
	msgArchiveDisabled    = "Arquivo de auditoria não configurado"
	msgUnavailable        = "Serviço indisponível"

	principalKey = "principal"
)

// HandlerConfig lists the collaborators the HTTP layer needs.
type HandlerConfig struct {
	Auth         service.AuthService
	Registration service.RegistrationService
	Users        repository.UserRepository
	// Storage and AuditBucket enable the archive listing endpoint.
	Storage     storage.Service
	AuditBucket string
	AuditPrefix string
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Logger  logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth         service.AuthService
	registration service.RegistrationService
	users        repository.UserRepository
	storage      storage.Service
	auditBucket  string
	auditPrefix  string
	metrics      http.Handler
	logger       logrus.FieldLogger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		auth:         cfg.Auth,
		registration: cfg.Registration,
		users:        cfg.Users,
		storage:      cfg.Storage,
		auditBucket:  cfg.AuditBucket,
		auditPrefix:  strings.Trim(cfg.AuditPrefix, "/"),
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger))

	auth := router.Group("/auth")
	{
		auth.POST("/login", h.login)
		auth.POST("/register", h.register)
		auth.GET("/me", h.requireAuth(), h.me)
	}

	api := router.Group("/api")
	{
		api.GET("/health", h.health)
		admin := api.Group("/admin", h.requireAuth(), requireRole(domain.RoleAdmin))
		admin.GET("/audit/archives", h.listArchives)
	}

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}
}

// ErrorResponse is the stable error body returned by every endpoint.
type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func abortWithError(c *gin.Context, status int, message string) {
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:    status,
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type principalResponse struct {
	Login string      `json:"login"`
	Role  domain.Role `json:"role"`
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs method, path and outcome. Bodies are never logged.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Debug("request")
	}
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, msgBadRequest)
		return
	}

	token, err := h.auth.Login(c.Request.Context(), domain.Credentials{Login: req.Login, Password: req.Password})
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			abortWithError(c, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		h.internalError(c, "login", err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: token})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	if _, err := h.registration.Register(c.Request.Context(), req.Login, req.Password, domain.Role(req.Role)); err != nil {
		switch {
		case errors.Is(err, service.ErrConflict):
			abortWithError(c, http.StatusConflict, msgUserExists)
		case errors.Is(err, service.ErrInvalidInput):
			abortWithError(c, http.StatusBadRequest, msgBadRequest+": "+err.Error())
		default:
			h.internalError(c, "register", err)
		}
		return
	}

	c.Status(http.StatusCreated)
}

func (h *Handler) me(c *gin.Context) {
	p := PrincipalFrom(c)
	c.JSON(http.StatusOK, principalResponse{Login: p.Login, Role: p.Role})
}

func (h *Handler) health(c *gin.Context) {
	n, err := h.users.Count(c.Request.Context())
	if err != nil {
		h.logger.Warnf("health check: %v", err)
		abortWithError(c, http.StatusServiceUnavailable, msgUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": "ok", "users": n})
}

func (h *Handler) listArchives(c *gin.Context) {
	if h.storage == nil || h.auditBucket == "" {
		abortWithError(c, http.StatusServiceUnavailable, msgArchiveDisabled)
		return
	}

	prefix := h.auditPrefix
	if sub := strings.Trim(c.Query("prefix"), "/"); sub != "" {
		if strings.Contains(sub, "..") {
			abortWithError(c, http.StatusBadRequest, msgBadRequest)
			return
		}
		prefix = path.Join(prefix, sub)
	}
	if prefix != "" {
		prefix += "/"
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.auditBucket, prefix)
	if err != nil {
		h.internalError(c, "list audit archives", err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.WithField("op", op).Errorf("request failed: %v", err)
	abortWithError(c, http.StatusInternalServerError, msgInternal)
}

// requireAuth verifies the bearer token and stores the principal on the context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		p, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, security.ErrTokenInvalid) {
				h.logger.Warnf("authenticate token: %v", err)
			}
			abortWithError(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c).Role != role {
			abortWithError(c, http.StatusForbidden, msgForbidden)
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by the auth middleware, or the zero value.
func PrincipalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
