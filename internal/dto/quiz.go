package dto

import (
	"time"

	"quiztube/internal/domain"
)

// CreateQuizRequest asks for a quiz generated from a YouTube video.
// @Description Request body for quiz generation
type CreateQuizRequest struct {
	URL         string `json:"url" validate:"required,url,max=2048"`
	Title       string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Language    string `json:"language,omitempty" validate:"omitempty,min=2,max=8"`
}

// UpdateQuizRequest changes the quiz title and/or description.
type UpdateQuizRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// AnswerView is one option of a question. Correctness is never part of it.
type AnswerView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Answers []AnswerView `json:"answers"`
}

// QuizView is the player view of a quiz.
// @Description Quiz with questions and options, without correct answers
type QuizView struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	VideoURL    string         `json:"video_url"`
	Language    string         `json:"language,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Questions   []QuestionView `json:"questions"`
}

type QuizSummaryView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoURL    string    `json:"video_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type QuizListResponse struct {
	Quizzes []QuizSummaryView `json:"quizzes"`
}

// JobErrorView is the failure of a generation job.
type JobErrorView struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Stage     string `json:"stage,omitempty"`
	Retryable bool   `json:"retryable"`
}

// JobResponse reports the state of an asynchronous generation job.
// @Description Generation job status
type JobResponse struct {
	ID        string        `json:"id"`
	State     string        `json:"state"`
	QuizID    string        `json:"quiz_id,omitempty"`
	Error     *JobErrorView `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SubmitAnswerRequest records the chosen option for a question.
type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,ulid"`
	AnswerID   string `json:"answer_id" validate:"required,ulid"`
}

type UserAnswerView struct {
	QuestionID string    `json:"question_id"`
	AnswerID   string    `json:"answer_id"`
	IsCorrect  *bool     `json:"is_correct,omitempty"`
	AnsweredAt time.Time `json:"answered_at"`
}

// ResponseView is a quiz attempt. Per-answer correctness appears once it is completed.
type ResponseView struct {
	ID              string           `json:"id"`
	QuizID          string           `json:"quiz_id"`
	Status          string           `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	ScorePercentage *int             `json:"score_percentage,omitempty"`
	Answers         []UserAnswerView `json:"answers,omitempty"`
}

type CompletionResponse struct {
	ResponseID      string    `json:"response_id"`
	QuizID          string    `json:"quiz_id"`
	ScorePercentage int       `json:"score_percentage"`
	CorrectCount    int       `json:"correct_count"`
	AnsweredCount   int       `json:"answered_count"`
	TotalQuestions  int       `json:"total_questions"`
	CompletedAt     time.Time `json:"completed_at"`
}

func NewQuizView(quiz *domain.Quiz) *QuizView {
	view := &QuizView{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		VideoURL:    quiz.VideoURL,
		Language:    quiz.Language,
		CreatedAt:   quiz.CreatedAt,
		Questions:   make([]QuestionView, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		question := QuestionView{ID: q.ID, Text: q.Text, Answers: make([]AnswerView, 0, len(q.Answers))}
		for _, a := range q.Answers {
			question.Answers = append(question.Answers, AnswerView{ID: a.ID, Text: a.Text})
		}
		view.Questions = append(view.Questions, question)
	}
	return view
}

func NewQuizListResponse(summaries []*domain.QuizSummary) *QuizListResponse {
	resp := &QuizListResponse{Quizzes: make([]QuizSummaryView, 0, len(summaries))}
	for _, s := range summaries {
		resp.Quizzes = append(resp.Quizzes, QuizSummaryView{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			VideoURL:    s.VideoURL,
			CreatedAt:   s.CreatedAt,
		})
	}
	return resp
}

func NewJobResponse(job *domain.GenerationJob) *JobResponse {
	resp := &JobResponse{
		ID:        job.ID,
		State:     string(job.State),
		QuizID:    job.QuizID,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.State == domain.JobFailed {
		resp.Error = &JobErrorView{
			Code:      string(job.ErrorCode),
			Message:   job.ErrorMessage,
			Stage:     string(job.Stage),
			Retryable: job.Retryable,
		}
	}
	return resp
}

func NewResponseView(response *domain.QuizResponse, answers []*domain.UserAnswer) *ResponseView {
	view := &ResponseView{
		ID:              response.ID,
		QuizID:          response.QuizID,
		Status:          string(response.Status),
		StartedAt:       response.StartedAt,
		CompletedAt:     response.CompletedAt,
		ScorePercentage: response.ScorePercentage,
	}
	for _, a := range answers {
		answer := UserAnswerView{QuestionID: a.QuestionID, AnswerID: a.AnswerID, AnsweredAt: a.AnsweredAt}
		if response.IsCompleted() {
			correct := a.IsCorrect
			answer.IsCorrect = &correct
		}
		view.Answers = append(view.Answers, answer)
	}
	return view
}

func NewUserAnswerView(answer *domain.UserAnswer) *UserAnswerView {
	return &UserAnswerView{QuestionID: answer.QuestionID, AnswerID: answer.AnswerID, AnsweredAt: answer.AnsweredAt}
}

func NewCompletionResponse(result *domain.CompletionResult) *CompletionResponse {
	return &CompletionResponse{
		ResponseID:      result.ResponseID,
		QuizID:          result.QuizID,
		ScorePercentage: result.ScorePercentage,
		CorrectCount:    result.CorrectCount,
		AnsweredCount:   result.AnsweredCount,
		TotalQuestions:  result.TotalQuestions,
		CompletedAt:     result.CompletedAt,
	}
}
