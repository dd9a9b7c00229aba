package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"eduvia/internal/credentials"
	"eduvia/internal/models"
	"eduvia/internal/relay"
	"eduvia/internal/service/ai"
	"eduvia/internal/service/community"
	"eduvia/internal/service/library"
	"eduvia/internal/service/profile"
)

// aiErrorMessage is the only detail exposed when a completion fails.
const aiErrorMessage = "Internal AI Error"

// DefaultStreamTimeout bounds one chat completion.
const DefaultStreamTimeout = 2 * time.Minute

// Completer opens provider streams.
type Completer interface {
	StreamCompletion(ctx context.Context, cred credentials.Credential, req ai.Request) (*ai.Stream, error)
}

// CredentialPicker hands out provider credentials.
type CredentialPicker interface {
	Pick() credentials.Credential
	Index(credentials.Credential) int
}

// Deps are the services a Handler serves. Profiles, Community and Library
// are optional; their routes answer 503 when absent.
type Deps struct {
	Completer     Completer
	Credentials   CredentialPicker
	Profiles      *profile.Service
	Community     *community.Service
	Library       *library.Service
	Logger        *slog.Logger
	StreamTimeout time.Duration
}

// Handler wires HTTP routes to the chat pipeline and the supporting stores.
type Handler struct {
	completer     Completer
	credentials   CredentialPicker
	profiles      *profile.Service
	community     *community.Service
	library       *library.Service
	logger        *slog.Logger
	streamTimeout time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		completer:     d.Completer,
		credentials:   d.Credentials,
		profiles:      d.Profiles,
		community:     d.Community,
		library:       d.Library,
		logger:        d.Logger,
		streamTimeout: d.StreamTimeout,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.streamTimeout <= 0 {
		h.streamTimeout = DefaultStreamTimeout
	}
	return h
}

// RegisterRoutes attaches all HTTP routes to the router. chatLimit guards
// the chat endpoint.
func (h *Handler) RegisterRoutes(router *gin.Engine, chatLimit gin.HandlerFunc) {
	router.GET("/healthz", h.health)

	api := router.Group("/api")
	if chatLimit != nil {
		api.POST("/chat", chatLimit, h.chat)
	} else {
		api.POST("/chat", h.chat)
	}

	users := api.Group("/users/:id", h.require(h.profiles != nil))
	users.GET("", h.getProfile)
	users.PUT("", h.putProfile)
	users.PATCH("/setup", h.completeSetup)
	users.POST("/coins", h.addCoins)

	posts := api.Group("/posts", h.require(h.community != nil))
	posts.GET("", h.listPosts)
	posts.POST("", h.createPost)
	posts.POST("/:id/like", h.likePost)

	api.GET("/library/search", h.require(h.library != nil), h.searchLibrary)
}

func (h *Handler) require(available bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !available {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service not configured"})
			return
		}
		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	chat, err := req.Validate()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	logger := h.logger.With(slog.String("request_id", RequestIDFrom(ctx)))

	if chat.UserID != "" && h.profiles != nil {
		h.profiles.AwardMessage(ctx, chat.UserID)
	}

	cred := h.credentials.Pick()
	streamCtx, cancel := context.WithTimeout(ctx, h.streamTimeout)
	defer cancel()

	stream, err := h.completer.StreamCompletion(streamCtx, cred, ai.Request{
		History: chat.History,
		Message: chat.Message,
		Mode:    chat.Mode,
	})
	if err != nil {
		logger.Error("completion failed before output",
			slog.Int("credential", h.credentials.Index(cred)),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": aiErrorMessage})
		return
	}
	defer stream.Close()

	res, err := relay.Relay(c.Writer, stream)
	if err == nil {
		logger.Info("completion relayed",
			slog.Int("credential", h.credentials.Index(cred)),
			slog.String("mode", string(chat.Mode)),
			slog.Int("history", len(chat.History)),
			slog.Int("fragments", res.Fragments),
			slog.Int64("bytes", res.Bytes),
		)
		return
	}

	var srcErr *relay.SourceError
	switch {
	case errors.As(err, &srcErr) && !srcErr.Started:
		logger.Error("completion failed before output",
			slog.Int("credential", h.credentials.Index(cred)),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": aiErrorMessage})
	case errors.Is(err, relay.ErrClientGone):
		logger.Info("client went away", slog.Int("fragments", res.Fragments), slog.Any("error", err))
	default:
		logger.Error("completion failed mid-stream",
			slog.Int("credential", h.credentials.Index(cred)),
			slog.Int("fragments", res.Fragments),
			slog.Any("error", err),
		)
		relay.Abort()
	}
}

// profiles

type profileRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

type setupRequest struct {
	DisplayName  string `json:"displayName"`
	University   string `json:"university"`
	FieldOfStudy string `json:"fieldOfStudy"`
	Degree       string `json:"degree"`
	Interests    string `json:"interests"`
}

type coinsRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) getProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) putProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	p, created, err := h.profiles.Ensure(c.Request.Context(), profile.Identity{
		UID:         c.Param("id"),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		h.storeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, p)
}

func (h *Handler) completeSetup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	p, err := h.profiles.CompleteSetup(c.Request.Context(), c.Param("id"), profile.Setup{
		DisplayName:  req.DisplayName,
		University:   req.University,
		FieldOfStudy: req.FieldOfStudy,
		Degree:       req.Degree,
		Interests:    req.Interests,
	})
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) addCoins(c *gin.Context) {
	var req coinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	balance, err := h.profiles.IncrementCoins(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uid": c.Param("id"), "eduviaCoins": balance})
}

// community

type postRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
}

func (h *Handler) listPosts(c *gin.Context) {
	limit := community.MaxFeed
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	posts, err := h.community.List(c.Request.Context(), limit)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) createPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	post, err := h.community.Create(c.Request.Context(), community.NewPost{
		Title:      req.Title,
		Content:    req.Content,
		Category:   req.Category,
		AuthorID:   req.AuthorID,
		AuthorName: req.AuthorName,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) likePost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	likes, err := h.community.Like(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "likes": likes})
}

// library

func (h *Handler) searchLibrary(c *gin.Context) {
	papers, err := h.library.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		if errors.Is(err, library.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Warn("library search failed",
			slog.String("request_id", RequestIDFrom(c.Request.Context())),
			slog.Any("error", err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "library search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": papers})
}

func (h *Handler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, community.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, profile.ErrInvalidUID), errors.Is(err, profile.ErrInvalidAmount), errors.Is(err, profile.ErrInvalidSetup):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
