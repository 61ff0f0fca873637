package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyconnect/studyconnect-api/internal/models"
	"github.com/studyconnect/studyconnect-api/internal/service"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
	"github.com/studyconnect/studyconnect-api/pkg/response"
)

// StudyPostHandler exposes the study forum.
type StudyPostHandler struct {
	posts *service.StudyPostService
}

// NewStudyPostHandler constructs StudyPostHandler.
func NewStudyPostHandler(posts *service.StudyPostService) *StudyPostHandler {
	return &StudyPostHandler{posts: posts}
}

// Create godoc
// @Summary Create a forum post
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreatePostInput true "Post payload"
// @Success 201 {object} response.Envelope
// @Router /posts [post]
func (h *StudyPostHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input models.CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	post, err := h.posts.Create(c.Request.Context(), claims, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "post created", post)
}

// List godoc
// @Summary List forum posts
// @Tags Posts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /posts [get]
func (h *StudyPostHandler) List(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posts, nil)
}

// Get godoc
// @Summary Get a forum post
// @Tags Posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Router /posts/{id} [get]
func (h *StudyPostHandler) Get(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, post, nil)
}

// Answer godoc
// @Summary Answer a forum post
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param payload body models.AddAnswerInput true "Answer payload"
// @Success 200 {object} response.Envelope
// @Router /posts/{id}/answers [post]
func (h *StudyPostHandler) Answer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input models.AddAnswerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	post, err := h.posts.Answer(c.Request.Context(), claims, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "answer added", post)
}

// Vote godoc
// @Summary Vote on a forum post
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param payload body models.VoteInput true "Vote payload"
// @Success 200 {object} response.Envelope
// @Router /posts/{id}/vote [post]
func (h *StudyPostHandler) Vote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input models.VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	post, err := h.posts.Vote(c.Request.Context(), claims, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "vote recorded", post)
}

// Delete godoc
// @Summary Delete a forum post
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Router /posts/{id} [delete]
func (h *StudyPostHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.posts.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "post deleted", nil)
}
