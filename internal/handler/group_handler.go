package handler

import (
	"net/http"

	"circle-chat/internal/chat"
	"circle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct{}

func NewGroupHandler() *GroupHandler {
	return &GroupHandler{}
}

// Create takes multipart name, members and an optional photo.
func (h *GroupHandler) Create(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	photo, err := formAttachment(c, "photo")
	if err != nil {
		respondError(c, err)
		return
	}
	created, err := sess.Provider.Groups().Create(c.Request.Context(), chat.GroupForm{
		Name:    c.PostForm("name"),
		Members: formList(c, "members"),
		Photo:   photo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(created))
}

func (h *GroupHandler) Update(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	photo, err := formAttachment(c, "photo")
	if err != nil {
		respondError(c, err)
		return
	}
	upd := chat.GroupUpdate{Photo: photo}
	if name, set := c.GetPostForm("name"); set {
		upd.Name = &name
	}
	if upd.Name == nil && upd.Photo == nil {
		badRequest(c, "nothing to update")
		return
	}
	if err := sess.Provider.Groups().UpdateInfo(c.Request.Context(), c.Param("id"), upd); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"id": c.Param("id")}))
}

func (h *GroupHandler) Leave(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := sess.Provider.Groups().Leave(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	if sel := sess.Provider.Selected().Get(); sel != nil && sel.ID == id {
		sess.Provider.Deselect()
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"left": id}))
}

func (h *GroupHandler) AddMembers(c *gin.Context) {
	var req httpdto.MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "members are required")
		return
	}
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := sess.Provider.Groups().AddMembers(c.Request.Context(), c.Param("id"), req.Members); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"id": c.Param("id")}))
}
