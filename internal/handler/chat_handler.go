package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type createChatRequest struct {
	OwnerKind string `json:"owner_kind"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	chat, err := h.chats.Create(c.Request.Context(), req.OwnerKind, req.OwnerID, req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chat)
}

type anonymousSessionRequest struct {
	SessionID string `json:"session_id"`
}

// Session resumes (or starts) the chat bound to an anonymous session
// id. Who gets to mint session ids is the caller's concern.
func (h *ChatHandler) Session(c *gin.Context) {
	var req anonymousSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	chat, err := h.chats.FindOrCreateAnonymous(c.Request.Context(), req.SessionID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	ownerKind := c.Query("owner_kind")
	ownerID := c.Query("owner_id")
	limit, _ := strconv.ParseUint(c.DefaultQuery("limit", "20"), 10, 32)
	offset, _ := strconv.ParseUint(c.DefaultQuery("offset", "0"), 10, 32)
	if limit == 0 || limit > 100 {
		limit = 20
	}
	chats, err := h.chats.List(c.Request.Context(), ownerKind, ownerID, uint(limit), uint(offset))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"chats": chats})
}

func (h *ChatHandler) Get(c *gin.Context) {
	chat, err := h.chats.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	turns, err := h.chats.ListTurns(c.Request.Context(), chat.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"chat": chat, "turns": turns})
}
