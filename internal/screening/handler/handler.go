// Package handler exposes test authoring and test taking over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"crowngate/internal/screening/models"
	"crowngate/internal/screening/service"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/httputil"
	"crowngate/pkg/requestcontext"
)

type Handler struct {
	logger    *slog.Logger
	screening *service.Service
}

func New(screening *service.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, screening: screening}
}

// RegisterProtected mounts the routes that require a valid token.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/tests", h.handleCreateTest)
	r.Post("/tests/{testID}/questions", h.handleAddQuestion)
	r.Get("/test/questions", h.handleKingdomQuestions)
	r.Post("/test-attempts/start", h.handleStartAttempt)
	r.Post("/test-attempts/answers/{questionID}", h.handleSubmitAnswer)
	r.Get("/test-attempts/{attemptID}/results", h.handleResults)
}

type createTestRequest struct {
	KingdomID   string `json:"kingdom_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type addQuestionRequest struct {
	Text          string `json:"text"`
	CorrectAnswer bool   `json:"correct_answer"`
	Order         int    `json:"order"`
}

type submitAnswerRequest struct {
	Answer bool `json:"answer"`
}

// questionView hides the correct answer from test takers.
type questionView struct {
	ID        id.QuestionID `json:"id"`
	Text      string        `json:"text"`
	Order     int           `json:"order"`
	CreatedAt time.Time     `json:"created_at"`
}

func newQuestionView(q *models.Question) questionView {
	return questionView{ID: q.ID, Text: q.Text, Order: q.Order, CreatedAt: q.CreatedAt}
}

func (h *Handler) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[createTestRequest](w, r)
	if !ok {
		return
	}
	kingdomID, err := id.ParseKingdomID(req.KingdomID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	test, err := h.screening.CreateTest(ctx, kingdomID, req.Title, req.Description)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create test",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, test)
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	testID, err := id.ParseTestID(chi.URLParam(r, "testID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[addQuestionRequest](w, r)
	if !ok {
		return
	}

	question, err := h.screening.AddQuestion(ctx, testID, req.Text, req.CorrectAnswer, req.Order)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to add question",
			"request_id", requestcontext.RequestID(ctx),
			"test_id", testID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, question)
}

func (h *Handler) handleKingdomQuestions(w http.ResponseWriter, r *http.Request) {
	test, questions, err := h.screening.KingdomQuestions(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, newQuestionView(q))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"test":      test,
		"questions": views,
	})
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	attempt, err := h.screening.StartAttempt(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to start attempt",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, attempt)
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	questionID, err := id.ParseQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[submitAnswerRequest](w, r)
	if !ok {
		return
	}

	attempt, err := h.screening.SubmitAnswer(ctx, questionID, req.Answer)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to submit answer",
			"request_id", requestcontext.RequestID(ctx),
			"question_id", questionID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	results, err := h.screening.Results(ctx, attemptID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}
