package handler

import (
	"quiztube/internal/dto"
	"quiztube/internal/middleware"
	"quiztube/internal/service"
	"quiztube/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service   service.QuizService
	validator *validation.Validator
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService, validator *validation.Validator) *QuizHandler {
	return &QuizHandler{
		service:   service,
		validator: validator,
	}
}

// CreateQuiz godoc
// @Summary Generate a quiz from a YouTube video
// @Description Downloads the audio, transcribes it and generates a 10 question quiz. With async=true the job id is returned immediately.
// @Tags quiz
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.CreateQuizRequest true "Video and optional overrides"
// @Param async query bool false "Return a job instead of waiting"
// @Success 201 {object} dto.QuizView
// @Success 202 {object} dto.JobResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Failure 504 {object} middleware.ErrorResponse
// @Router /quizzes [post]
func (h *QuizHandler) CreateQuiz(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req dto.CreateQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return err
	}

	if c.QueryBool("async") {
		job, err := h.service.CreateQuizAsync(c.UserContext(), userID, &req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(job)
	}

	quiz, err := h.service.CreateQuiz(c.UserContext(), userID, &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(quiz)
}

// GetJob godoc
// @Summary Get a generation job
// @Tags quiz
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Job ID"
// @Success 200 {object} dto.JobResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/jobs/{id} [get]
func (h *QuizHandler) GetJob(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	jobID := c.Params("id")
	if err := h.validator.ID("id", jobID); err != nil {
		return err
	}

	job, err := h.service.JobStatus(c.UserContext(), userID, jobID)
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// ListQuizzes godoc
// @Summary List my quizzes
// @Tags quiz
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.QuizListResponse
// @Router /quizzes [get]
func (h *QuizHandler) ListQuizzes(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	quizzes, err := h.service.ListMyQuizzes(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(quizzes)
}

// GetQuiz godoc
// @Summary Get a quiz
// @Description Returns the questions and options of a quiz without the correct answers
// @Tags quiz
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Quiz ID"
// @Success 200 {object} dto.QuizView
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/{id} [get]
func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	quizID := c.Params("id")
	if err := h.validator.ID("id", quizID); err != nil {
		return err
	}
	quiz, err := h.service.GetQuiz(c.UserContext(), quizID)
	if err != nil {
		return err
	}
	return c.JSON(quiz)
}

// UpdateQuiz godoc
// @Summary Rename a quiz
// @Tags quiz
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Quiz ID"
// @Param request body dto.UpdateQuizRequest true "New title and/or description"
// @Success 200 {object} dto.QuizView
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/{id} [patch]
func (h *QuizHandler) UpdateQuiz(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	quizID := c.Params("id")
	if err := h.validator.ID("id", quizID); err != nil {
		return err
	}

	var req dto.UpdateQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return err
	}

	quiz, err := h.service.UpdateQuiz(c.UserContext(), userID, quizID, &req)
	if err != nil {
		return err
	}
	return c.JSON(quiz)
}

// DeleteQuiz godoc
// @Summary Delete a quiz
// @Description Deletes the quiz with all its responses. Owner only.
// @Tags quiz
// @Security ApiKeyAuth
// @Param id path string true "Quiz ID"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) DeleteQuiz(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	quizID := c.Params("id")
	if err := h.validator.ID("id", quizID); err != nil {
		return err
	}
	if err := h.service.DeleteQuiz(c.UserContext(), userID, quizID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
