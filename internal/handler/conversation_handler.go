package handler

import (
	"net/http"

	"circle-chat/internal/chat"
	"circle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct{}

func NewConversationHandler() *ConversationHandler {
	return &ConversationHandler{}
}

// List returns the conversation list, filtered by ?q= when given.
func (h *ConversationHandler) List(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	list := sess.Provider.List()
	if q, set := c.GetQuery("q"); set {
		list.SetSearch(q)
	}
	list.SetTab(chat.TabConversations)

	resp := httpdto.ConversationsResponse{Conversations: list.VisibleConversations()}
	if sel := sess.Provider.Selected().Get(); sel != nil {
		resp.SelectedID = sel.ID
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func (h *ConversationHandler) Select(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := sess.Provider.Select(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(sess.Provider.Selected().Get()))
}

func (h *ConversationHandler) Deselect(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	sess.Provider.Deselect()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"selected": nil}))
}

// Messages returns the message stream of the selected conversation.
func (h *ConversationHandler) Messages(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	sel := sess.Provider.Selected().Get()
	if sel == nil {
		respondError(c, chat.ErrNoConversation)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessagesResponse{
		ConversationID: sel.ID,
		Messages:       sess.Provider.Messages().Get(),
	}))
}

func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req httpdto.DirectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "friendId is required")
		return
	}
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	conv, err := sess.Provider.List().StartConversation(c.Request.Context(), req.FriendID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

// Delete leaves a group or deletes a direct conversation.
func (h *ConversationHandler) Delete(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	list := sess.Provider.List()
	if err := list.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NoticeResponse{Notice: list.Notice().Get()}))
}
