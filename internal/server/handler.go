package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"shopadmin/internal/auth"
	"shopadmin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	userSvc *service.UserService
	chatSvc *service.ChatService
}

func NewHandler(userSvc *service.UserService, chatSvc *service.ChatService) *Handler {
	return &Handler{userSvc: userSvc, chatSvc: chatSvc}
}

// Register 处理用户注册请求，新用户默认 USER 角色。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username  string `json:"userName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Password == "" || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	if !strings.Contains(req.Email, "@") || len(req.Email) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	info, err := h.userSvc.Register(req.Username, req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email taken"})
		default:
			log.Error().Err(err).Str("username", req.Username).Msg("register")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}
	c.JSON(http.StatusCreated, info)
}

// Login 处理登录请求，签发访问 token 和刷新 token。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"userName"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"newToken":     result.AccessToken,
		"refreshToken": result.RefreshToken,
		"userInfo":     result.User,
	})
}

// RefreshToken 处理 token 旋转请求，旧 token 从 refreshtoken 头传入。
func (h *Handler) RefreshToken(c *gin.Context) {
	oldRT := strings.TrimSpace(c.GetHeader("refreshtoken"))
	if oldRT == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing refresh token"})
		return
	}
	result, err := h.userSvc.RefreshTokens(oldRT)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": result.AccessToken, "refreshToken": result.RefreshToken})
}

// Logout 撤销刷新 token。已撤销的 token 再次登出返回 400 而不是静默成功。
func (h *Handler) Logout(c *gin.Context) {
	rt := strings.TrimSpace(c.GetHeader("refresh-token"))
	if rt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing refresh token"})
		return
	}
	if err := h.userSvc.Logout(rt); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		case errors.Is(err, service.ErrTokenRevoked):
			c.JSON(http.StatusBadRequest, gin.H{"error": "token already revoked"})
		default:
			log.Error().Err(err).Msg("logout")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// UpdateRole 按层级规则变更目标用户的角色。
func (h *Handler) UpdateRole(c *gin.Context) {
	var req struct {
		Username string `json:"userName"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	actor, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if err := h.userSvc.UpdateRole(actor, req.Username, req.Role); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			log.Error().Err(err).Str("target", req.Username).Msg("update role")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update role"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}

// ListUsers 返回全部用户列表。
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userSvc.ListUsers()
	if err != nil {
		log.Error().Err(err).Msg("list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser 按用户名查找单个用户。
func (h *Handler) GetUser(c *gin.Context) {
	username := c.Param("userName")
	info, err := h.userSvc.GetByUsername(username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error().Err(err).Str("username", username).Msg("get user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Me 是"我是谁"接口：容忍过期的访问 token，换发一个新 token 连同用户信息返回。
func (h *Handler) Me(c *gin.Context) {
	tokenStr := auth.BearerToken(c)
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	result, err := h.userSvc.Introspect(tokenStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userInfo": result.User, "newToken": result.NewToken})
}

// SendMessage 发送私聊消息，返回 201 和已落库的消息。
func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		ReceiverID uint   `json:"receiverId"`
		Body       string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ReceiverID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.chatSvc.Send(auth.GetUserID(c), req.ReceiverID, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyBody):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty message body"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found"})
		default:
			log.Error().Err(err).Uint("receiver_id", req.ReceiverID).Msg("send message")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListConversations 返回当前用户的会话摘要列表。
func (h *Handler) ListConversations(c *gin.Context) {
	summaries, err := h.chatSvc.Conversations(auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Msg("list conversations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetHistory 分页返回与某个用户的消息记录，本页发给当前用户的消息顺带置已读。
func (h *Handler) GetHistory(c *gin.Context) {
	otherID, err := strconv.Atoi(c.Param("otherUserId"))
	if err != nil || otherID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	msgs, err := h.chatSvc.History(auth.GetUserID(c), uint(otherID), page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error().Err(err).Int("other_user_id", otherID).Msg("get history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get history"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// EditMessage 改写自己发出的消息。
func (h *Handler) EditMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("messageId"))
	if err != nil || messageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.chatSvc.Edit(auth.GetUserID(c), uint(messageID), req.Body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyBody):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty message body"})
		case errors.Is(err, service.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			log.Error().Err(err).Int("message_id", messageID).Msg("edit message")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to edit message"})
		}
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage 删除自己发出的消息。
func (h *Handler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("messageId"))
	if err != nil || messageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	if err := h.chatSvc.Delete(auth.GetUserID(c), uint(messageID)); err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			log.Error().Err(err).Int("message_id", messageID).Msg("delete message")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}
