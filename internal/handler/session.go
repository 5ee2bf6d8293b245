package handler

import (
	"quiztube/internal/dto"
	"quiztube/internal/middleware"
	"quiztube/internal/service"
	"quiztube/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// SessionHandler handles quiz attempts.
type SessionHandler struct {
	service   service.SessionService
	validator *validation.Validator
}

func NewSessionHandler(service service.SessionService, validator *validation.Validator) *SessionHandler {
	return &SessionHandler{service: service, validator: validator}
}

// StartQuiz godoc
// @Summary Start a quiz attempt
// @Tags session
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Quiz ID"
// @Success 201 {object} dto.ResponseView
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/{id}/start [post]
func (h *SessionHandler) StartQuiz(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	quizID := c.Params("id")
	if err := h.validator.ID("id", quizID); err != nil {
		return err
	}

	response, err := h.service.Start(c.UserContext(), quizID, userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewResponseView(response, nil))
}

// SubmitAnswer godoc
// @Summary Answer a question
// @Description Records the chosen option. Answering the same question again replaces the earlier choice.
// @Tags session
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Response ID"
// @Param request body dto.SubmitAnswerRequest true "Question and chosen answer"
// @Success 201 {object} dto.UserAnswerView
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /responses/{id}/answers [post]
func (h *SessionHandler) SubmitAnswer(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	responseID := c.Params("id")
	if err := h.validator.ID("id", responseID); err != nil {
		return err
	}

	var req dto.SubmitAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return err
	}

	answer, err := h.service.SubmitAnswer(c.UserContext(), responseID, userID, req.QuestionID, req.AnswerID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserAnswerView(answer))
}

// CompleteQuiz godoc
// @Summary Complete a quiz attempt
// @Description Scores the attempt. Unanswered questions count as incorrect.
// @Tags session
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Response ID"
// @Success 200 {object} dto.CompletionResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /responses/{id}/complete [post]
func (h *SessionHandler) CompleteQuiz(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	responseID := c.Params("id")
	if err := h.validator.ID("id", responseID); err != nil {
		return err
	}

	result, err := h.service.Complete(c.UserContext(), responseID, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCompletionResponse(result))
}

// GetResponse godoc
// @Summary Get a quiz attempt
// @Tags session
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Response ID"
// @Success 200 {object} dto.ResponseView
// @Failure 404 {object} middleware.ErrorResponse
// @Router /responses/{id} [get]
func (h *SessionHandler) GetResponse(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	responseID := c.Params("id")
	if err := h.validator.ID("id", responseID); err != nil {
		return err
	}

	view, err := h.service.GetResponse(c.UserContext(), responseID, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewResponseView(view.Response, view.Answers))
}
