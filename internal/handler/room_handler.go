package handler

import (
	"net/http"

	"circle-chat/internal/chat"
	"circle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct{}

func NewRoomHandler() *RoomHandler {
	return &RoomHandler{}
}

func roomResponse(r *chat.Room) httpdto.RoomResponse {
	return httpdto.RoomResponse{State: r.State().Get(), Alert: r.Alert().Get()}
}

func (h *RoomHandler) State(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(roomResponse(sess.Provider.Room())))
}

// UpdateDraft edits the composer without sending. Fields left out of the form are kept.
func (h *RoomHandler) UpdateDraft(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	if err := applyDraft(c, sess.Provider.Room()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(roomResponse(sess.Provider.Room())))
}

// Send applies the multipart fields text, gifUrl and image to the draft, then sends it.
func (h *RoomHandler) Send(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	room := sess.Provider.Room()
	if err := applyDraft(c, room); err != nil {
		respondError(c, err)
		return
	}
	if err := room.Send(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(roomResponse(room)))
}

func applyDraft(c *gin.Context, room *chat.Room) error {
	image, err := formAttachment(c, "image")
	if err != nil {
		return err
	}
	if text, set := c.GetPostForm("text"); set {
		room.SetText(text)
	}
	if gif, set := c.GetPostForm("gifUrl"); set {
		if gif == "" {
			room.ClearGif()
		} else {
			room.SelectGif(gif)
		}
	}
	if c.PostForm("clearImage") == "true" {
		room.ClearImage()
	}
	if image != nil {
		room.AttachImage(*image)
	}
	return nil
}

func (h *RoomHandler) StartEdit(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	room := sess.Provider.Room()
	if err := room.StartEdit(c.Param("messageId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(roomResponse(room)))
}

// SaveEdit replaces the edit buffer with content and saves it.
func (h *RoomHandler) SaveEdit(c *gin.Context) {
	var req httpdto.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	room := sess.Provider.Room()
	room.SetEditText(req.Content)
	if err := room.SaveEdit(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(roomResponse(room)))
}

func (h *RoomHandler) CancelEdit(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	room := sess.Provider.Room()
	room.CancelEdit()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(roomResponse(room)))
}

// Leave leaves the selected group, or deletes the selected direct conversation.
func (h *RoomHandler) Leave(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	room := sess.Provider.Room()
	if err := room.Leave(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(roomResponse(room)))
}

func (h *RoomHandler) DismissAlert(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	sess.Provider.Room().DismissAlert()
	sess.Provider.List().DismissAlert()
	sess.Provider.Groups().DismissAlert()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"dismissed": true}))
}
