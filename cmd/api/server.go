package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AdeolaQuadri/groupchat-api/internal/auth"
	"github.com/AdeolaQuadri/groupchat-api/internal/chat"
	"github.com/AdeolaQuadri/groupchat-api/internal/data"
	"github.com/AdeolaQuadri/groupchat-api/internal/metrics"
	"github.com/AdeolaQuadri/groupchat-api/internal/middleware"
)

// The server depends on narrow views of the chat services so handler
// tests can substitute fakes.

type directoryService interface {
	RegisterWithEmail(ctx context.Context, userID, email, displayName, fcmToken string) (*data.User, error)
	RegisterWithPhone(ctx context.Context, userID, phoneNumber, displayName, fcmToken string) (*data.User, error)
	LookupByEmail(ctx context.Context, email string) (*data.User, error)
	LookupByPhone(ctx context.Context, phoneNumber string) (*data.User, error)
	Get(ctx context.Context, userID string) (*data.User, error)
	Update(ctx context.Context, userID string, patch data.UserPatch) (*data.User, error)
	Delete(ctx context.Context, userID string) error
}

type conversationService interface {
	ListConversationIDs(ctx context.Context, userID string) ([]string, error)
	ListMembers(ctx context.Context, conversationID string) ([]*data.User, error)
	Initiate(ctx context.Context, initiatorID string, otherUserIDs []string) (string, error)
	Join(ctx context.Context, userID, conversationID string) error
	Leave(ctx context.Context, userID, conversationID string) error
}

type messageService interface {
	Post(ctx context.Context, senderID, conversationID, text string, notify bool) (*data.Message, error)
	Get(ctx context.Context, conversationID, requesterID, since string) (*chat.ConversationView, error)
	History(ctx context.Context, userID string) ([]*chat.ConversationView, error)
}

type notifyService interface {
	Notify(ctx context.Context, conversationID, senderID, text string) error
}

type repairService interface {
	RepairSenderSnapshots(ctx context.Context, userID string) (int, error)
}

// Server is the HTTP surface over the chat services. It owns routing,
// authentication, and the translation of service errors to statuses;
// all domain rules live below it.
type Server struct {
	router        *gin.Engine
	jwt           *auth.JWTManager
	directory     directoryService
	conversations conversationService
	messages      messageService
	notifier      notifyService
	repairer      repairService
	limiter       *middleware.LimiterStore
	log           *slog.Logger
}

func newServer(
	jwt *auth.JWTManager,
	directory directoryService,
	conversations conversationService,
	messages messageService,
	notifier notifyService,
	repairer repairService,
	limiter *middleware.LimiterStore,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		router:        gin.New(),
		jwt:           jwt,
		directory:     directory,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		repairer:      repairer,
		limiter:       limiter,
		log:           log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(metrics.HTTP())

	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.Use(s.requireIdentity())

	users := v1.Group("/users")
	{
		// Registration is the abuse-prone surface; it alone is rate limited.
		register := users.Group("/register")
		register.Use(middleware.RateLimit(s.limiter, callerKey))
		register.POST("/email", s.handleRegisterEmail())
		register.POST("/phone", s.handleRegisterPhone())

		users.GET("/lookup", s.handleLookupUser())
		users.GET("/:id", s.handleGetUser())
		users.PATCH("/me", s.handleUpdateProfile())
		users.DELETE("/me", s.handleDeleteAccount())
	}

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", s.handleListConversations())
		conversations.POST("", s.handleInitiateConversation())
		conversations.GET("/:id/members", s.handleListMembers())
		conversations.POST("/:id/join", s.handleJoinConversation())
		conversations.POST("/:id/leave", s.handleLeaveConversation())
		conversations.POST("/:id/messages", s.handlePostMessage())
		conversations.GET("/:id/messages", s.handleGetMessages())
	}

	v1.GET("/history", s.handleHistory())

	// Operational entry points for the async tasks, so they can be
	// invoked directly when the broker path is unavailable.
	internal := v1.Group("/internal/tasks")
	{
		internal.POST("/send-push", s.handleSendPush())
		internal.POST("/repair-snapshots", s.handleRepairSnapshots())
	}
}

func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "groupchat-api"})
	}
}
