package handler

import (
	"net/http"

	"circle-chat/internal/chat"
	"circle-chat/internal/domain/user"
	"circle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

func (h *UserHandler) Block(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := sess.Provider.Block(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"blocked": c.Param("id")}))
}

func (h *UserHandler) Unblock(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := sess.Provider.Unblock(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unblocked": c.Param("id")}))
}

// Friends reloads the friend profiles and filters them by ?q=.
func (h *UserHandler) Friends(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	list := sess.Provider.List()
	if _, err := list.LoadFriends(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	list.SetTab(chat.TabFriends)
	list.SetSearch(c.Query("q"))
	friends := list.VisibleFriends()
	if friends == nil {
		friends = []user.User{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FriendsResponse{Friends: friends}))
}

// Gifs searches the picker; an empty query returns trending results.
func (h *UserHandler) Gifs(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	urls := sess.Provider.SearchGifs(c.Request.Context(), c.Query("q"))
	if urls == nil {
		urls = []string{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.GifsResponse{
		Enabled: sess.Provider.GifsEnabled(),
		URLs:    urls,
	}))
}
