// Package bot is a Telegram front-end: a user sends a YouTube link, the bot generates a quiz
// and plays it question by question with inline keyboards.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"quiztube/internal/adapter/media"
	"quiztube/internal/domain"
	"quiztube/internal/dto"
	"quiztube/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	cmdStart = "start"
	cmdHelp  = "help"
	cmdQuit  = "quit"

	answerPrefix = "a"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Quizzes creates and loads quizzes. service.QuizService satisfies it.
type Quizzes interface {
	CreateQuiz(ctx context.Context, ownerID string, req *dto.CreateQuizRequest) (*dto.QuizView, error)
	GetQuiz(ctx context.Context, quizID string) (*dto.QuizView, error)
}

// Sessions plays quiz attempts. service.SessionService satisfies it.
type Sessions interface {
	Start(ctx context.Context, quizID, userID string) (*domain.QuizResponse, error)
	SubmitAnswer(ctx context.Context, responseID, userID, questionID, answerID string) (*domain.UserAnswer, error)
	Complete(ctx context.Context, responseID, userID string) (*domain.CompletionResult, error)
	GetResponse(ctx context.Context, responseID, userID string) (*domain.ResponseView, error)
}

// Bot routes Telegram updates to the quiz and session services.
type Bot struct {
	api               API
	quizzes           Quizzes
	sessions          Sessions
	generationTimeout time.Duration

	mu     sync.Mutex
	active map[int64]string // chat id -> response id in progress

	wg sync.WaitGroup
}

func New(api API, quizzes Quizzes, sessions Sessions, generationTimeout time.Duration) *Bot {
	return &Bot{
		api:               api,
		quizzes:           quizzes,
		sessions:          sessions,
		generationTimeout: generationTimeout,
		active:            make(map[int64]string),
	}
}

// Run polls for updates until ctx is cancelled, then waits for running generations.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	logger.Get().Info("Bot polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				b.Wait()
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// Wait blocks until every quiz generation started by the bot has finished.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	chatID := message.Chat.ID
	userID := userIDFor(message.From)

	switch message.Command() {
	case cmdStart, cmdHelp:
		b.sendText(chatID, "Send me a YouTube link and I will turn the video into a 10 question quiz.\n\n/quit ends the current quiz and shows your score.")
		return
	case cmdQuit:
		b.quit(ctx, chatID, userID)
		return
	case "":
	default:
		b.sendText(chatID, "Unknown command. Send a YouTube link or use /help.")
		return
	}

	link := extractLink(message.Text)
	if link == "" {
		b.sendText(chatID, "Please send a YouTube link.")
		return
	}
	if _, err := media.ValidateURL(link); err != nil {
		b.sendText(chatID, userMessage(err))
		return
	}

	b.sendText(chatID, "Generating your quiz, this can take a few minutes...")
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.generate(context.WithoutCancel(ctx), chatID, userID, link)
	}()
}

func (b *Bot) generate(ctx context.Context, chatID int64, userID, link string) {
	log := logger.Get().With(zap.Int64("chat_id", chatID), zap.String("url", link))
	if b.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.generationTimeout)
		defer cancel()
	}

	quiz, err := b.quizzes.CreateQuiz(ctx, userID, &dto.CreateQuizRequest{URL: link})
	if err != nil {
		log.Warn("Quiz generation failed", zap.Error(err))
		b.sendText(chatID, userMessage(err))
		return
	}

	response, err := b.sessions.Start(ctx, quiz.ID, userID)
	if err != nil {
		log.Error("Failed to start quiz", zap.String("quiz_id", quiz.ID), zap.Error(err))
		b.sendText(chatID, userMessage(err))
		return
	}

	b.mu.Lock()
	b.active[chatID] = response.ID
	b.mu.Unlock()

	b.sendText(chatID, fmt.Sprintf("📝 %s\n\n%d questions. Good luck!", quiz.Title, len(quiz.Questions)))
	b.sendQuestion(chatID, response.ID, quiz, 0)
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logger.Get().Warn("Failed to answer callback", zap.Error(err))
	}
	if callback.Message == nil || callback.From == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	userID := userIDFor(callback.From)

	responseID, questionPos, answerPos, err := parseAnswerData(callback.Data)
	if err != nil {
		logger.Get().Debug("Ignoring callback", zap.String("data", callback.Data), zap.Error(err))
		return
	}

	// One answer per keyboard.
	b.clearKeyboard(chatID, callback.Message.MessageID)

	view, err := b.sessions.GetResponse(ctx, responseID, userID)
	if err != nil {
		b.sendText(chatID, userMessage(err))
		return
	}
	quiz, err := b.quizzes.GetQuiz(ctx, view.Response.QuizID)
	if err != nil {
		b.sendText(chatID, userMessage(err))
		return
	}
	if questionPos >= len(quiz.Questions) || answerPos >= len(quiz.Questions[questionPos].Answers) {
		b.sendText(chatID, "That option no longer exists.")
		return
	}

	question := quiz.Questions[questionPos]
	if _, err := b.sessions.SubmitAnswer(ctx, responseID, userID, question.ID, question.Answers[answerPos].ID); err != nil {
		b.sendText(chatID, userMessage(err))
		return
	}

	if questionPos+1 < len(quiz.Questions) {
		b.sendQuestion(chatID, responseID, quiz, questionPos+1)
		return
	}
	b.complete(ctx, chatID, userID, responseID)
}

func (b *Bot) quit(ctx context.Context, chatID int64, userID string) {
	b.mu.Lock()
	responseID, ok := b.active[chatID]
	b.mu.Unlock()
	if !ok {
		b.sendText(chatID, "There is no quiz in progress.")
		return
	}
	b.complete(ctx, chatID, userID, responseID)
}

func (b *Bot) complete(ctx context.Context, chatID int64, userID, responseID string) {
	b.mu.Lock()
	if b.active[chatID] == responseID {
		delete(b.active, chatID)
	}
	b.mu.Unlock()

	result, err := b.sessions.Complete(ctx, responseID, userID)
	if err != nil {
		b.sendText(chatID, userMessage(err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("🏁 Quiz finished!\n\nCorrect: %d/%d\nScore: %d%%",
		result.CorrectCount, result.TotalQuestions, result.ScorePercentage))
}

func (b *Bot) sendQuestion(chatID int64, responseID string, quiz *dto.QuizView, pos int) {
	question := quiz.Questions[pos]
	text := fmt.Sprintf("❓ Question %d/%d\n\n%s", pos+1, len(quiz.Questions), question.Text)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(question.Answers))
	for i, answer := range question.Answers {
		label := fmt.Sprintf("%c) %s", 'A'+i, answer.Text)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, answerData(responseID, pos, i)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		logger.Get().Error("Failed to send question", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) clearKeyboard(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		logger.Get().Debug("Failed to clear keyboard", zap.Error(err))
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Get().Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func userIDFor(user *tgbotapi.User) string {
	return "tg:" + strconv.FormatInt(user.ID, 10)
}

func answerData(responseID string, questionPos, answerPos int) string {
	return fmt.Sprintf("%s:%s:%d:%d", answerPrefix, responseID, questionPos, answerPos)
}

func parseAnswerData(data string) (responseID string, questionPos, answerPos int, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != answerPrefix || parts[1] == "" {
		return "", 0, 0, fmt.Errorf("malformed answer callback %q", data)
	}
	if questionPos, err = strconv.Atoi(parts[2]); err != nil || questionPos < 0 {
		return "", 0, 0, fmt.Errorf("bad question position in %q", data)
	}
	if answerPos, err = strconv.Atoi(parts[3]); err != nil || answerPos < 0 {
		return "", 0, 0, fmt.Errorf("bad answer position in %q", data)
	}
	return parts[1], questionPos, answerPos, nil
}

// extractLink returns the first http(s) token in text.
func extractLink(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}

func userMessage(err error) string {
	domainErr, ok := domain.AsDomainError(err)
	if !ok {
		return "Something went wrong, please try again later."
	}
	switch domainErr.Code {
	case domain.ErrInvalidSource:
		return "That does not look like a YouTube video link."
	case domain.ErrQuotaExceeded:
		return "The AI service is busy right now, please try again in a few minutes."
	case domain.ErrStageTimeout:
		return "Generating the quiz took too long, please try a shorter video."
	case domain.ErrInternal, domain.ErrStorage:
		return "Something went wrong, please try again later."
	default:
		return domainErr.Message
	}
}
