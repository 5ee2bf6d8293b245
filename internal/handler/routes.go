package handler

import (
	"quiztube/internal/middleware"
	"quiztube/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the quiz API under /api. Every route requires a bearer token.
func RegisterRoutes(app *fiber.App, authService service.AuthService, quizHandler *QuizHandler, sessionHandler *SessionHandler) {
	api := app.Group("/api", middleware.Protected(authService))

	quizzes := api.Group("/quizzes")
	quizzes.Post("/", quizHandler.CreateQuiz)
	quizzes.Get("/", quizHandler.ListQuizzes)
	quizzes.Get("/jobs/:id", quizHandler.GetJob)
	quizzes.Get("/:id", quizHandler.GetQuiz)
	quizzes.Patch("/:id", quizHandler.UpdateQuiz)
	quizzes.Delete("/:id", quizHandler.DeleteQuiz)
	quizzes.Post("/:id/start", sessionHandler.StartQuiz)

	responses := api.Group("/responses")
	responses.Get("/:id", sessionHandler.GetResponse)
	responses.Post("/:id/answers", sessionHandler.SubmitAnswer)
	responses.Post("/:id/complete", sessionHandler.CompleteQuiz)
}
