package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
)

type registerRequest struct {
	DisplayName string `json:"displayName"`
	FCMToken    string `json:"fcmToken"`
}

// handleRegisterEmail creates the caller's account keyed by the email
// identity asserted in their token.
func (s *Server) handleRegisterEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id := identityFromContext(c)
		user, err := s.directory.RegisterWithEmail(c.Request.Context(), id.UserID, id.Email, req.DisplayName, req.FCMToken)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// handleRegisterPhone is the phone-identity variant of registration.
func (s *Server) handleRegisterPhone() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id := identityFromContext(c)
		user, err := s.directory.RegisterWithPhone(c.Request.Context(), id.UserID, id.PhoneNumber, req.DisplayName, req.FCMToken)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// handleLookupUser resolves a user by exactly one of ?email= or ?phone=.
// A miss is 404, not an error in the service sense.
func (s *Server) handleLookupUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		phone := c.Query("phone")
		if (email == "") == (phone == "") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of email or phone is required"})
			return
		}

		var (
			user *data.User
			err  error
		)
		if email != "" {
			user, err = s.directory.LookupByEmail(c.Request.Context(), email)
		} else {
			user, err = s.directory.LookupByPhone(c.Request.Context(), phone)
		}
		if err != nil {
			s.writeError(c, err)
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.directory.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	FCMToken    *string `json:"fcmToken"`
}

// handleUpdateProfile patches the caller's own profile. Pointer fields
// distinguish "leave alone" from "set empty".
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id := identityFromContext(c)
		patch := data.UserPatch{DisplayName: req.DisplayName, FCMToken: req.FCMToken}
		user, err := s.directory.Update(c.Request.Context(), id.UserID, patch)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func (s *Server) handleDeleteAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFromContext(c)
		if err := s.directory.Delete(c.Request.Context(), id.UserID); err != nil {
			s.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFromContext(c)
		ids, err := s.conversations.ListConversationIDs(c.Request.Context(), id.UserID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"conversationIds": ids})
	}
}

type initiateRequest struct {
	UserIDs []string `json:"userIds"`
}

// handleInitiateConversation starts (or rediscovers) the conversation
// between the caller and the listed users. The response does not say
// whether the id was minted or reused; callers should not care.
func (s *Server) handleInitiateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req initiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id := identityFromContext(c)
		conversationID, err := s.conversations.Initiate(c.Request.Context(), id.UserID, req.UserIDs)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversationId": conversationID})
	}
}

func (s *Server) handleListMembers() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("id")
		users, err := s.conversations.ListMembers(c.Request.Context(), conversationID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if users == nil {
			users = []*data.User{}
		}
		c.JSON(http.StatusOK, gin.H{"conversationId": conversationID, "users": users})
	}
}

func (s *Server) handleJoinConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFromContext(c)
		conversationID := c.Param("id")
		if err := s.conversations.Join(c.Request.Context(), id.UserID, conversationID); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversationId": conversationID, "status": "joined"})
	}
}

func (s *Server) handleLeaveConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFromContext(c)
		conversationID := c.Param("id")
		if err := s.conversations.Leave(c.Request.Context(), id.UserID, conversationID); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversationId": conversationID, "status": "left"})
	}
}

type postMessageRequest struct {
	Message string `json:"message"`
	Notify  bool   `json:"notify"`
}

func (s *Server) handlePostMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		id := identityFromContext(c)
		msg, err := s.messages.Post(c.Request.Context(), id.UserID, c.Param("id"), req.Message, req.Notify)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// handleGetMessages returns one conversation's members and messages,
// optionally only those after ?since= (a message timestamp).
func (s *Server) handleGetMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFromContext(c)
		view, err := s.messages.Get(c.Request.Context(), c.Param("id"), id.UserID, c.Query("since"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func (s *Server) handleHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFromContext(c)
		views, err := s.messages.History(c.Request.Context(), id.UserID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": views})
	}
}

type sendPushRequest struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Message        string `json:"message"`
}

// handleSendPush runs the notification fan-out synchronously. Normally
// the task queue drives this; the route exists for reprocessing.
func (s *Server) handleSendPush() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendPushRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := s.notifier.Notify(c.Request.Context(), req.ConversationID, req.SenderID, req.Message); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	}
}

type repairRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleRepairSnapshots() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req repairRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		repaired, err := s.repairer.RepairSenderSnapshots(c.Request.Context(), req.UserID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": req.UserID, "repaired": repaired})
	}
}
