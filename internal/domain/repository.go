package domain

import "context"

// TransactionManager runs fn inside a database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// QuizRepository stores quizzes with their questions and answers.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz *Quiz) error
	GetQuizByID(ctx context.Context, id string) (*Quiz, error)
	ListQuizzesByOwner(ctx context.Context, ownerID string) ([]*QuizSummary, error)
	UpdateQuizDetails(ctx context.Context, id string, update QuizDetailsUpdate) error
	DeleteQuiz(ctx context.Context, id string) error
}

// ResponseRepository stores quiz attempts and their answers.
type ResponseRepository interface {
	CreateResponse(ctx context.Context, response *QuizResponse) error
	GetResponse(ctx context.Context, id string) (*QuizResponse, error)
	ListUserAnswers(ctx context.Context, responseID string) ([]*UserAnswer, error)
	UpsertUserAnswer(ctx context.Context, answer *UserAnswer) error
	// BumpVersion increments the response version if it still equals expected.
	// It returns false when another writer got there first.
	BumpVersion(ctx context.Context, responseID string, expected int64) (bool, error)
	// CompleteResponse marks the response completed if it still has the expected version.
	CompleteResponse(ctx context.Context, response *QuizResponse, expected int64) (bool, error)
}
