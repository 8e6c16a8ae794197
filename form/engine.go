// Package form runs one respondent through a survey: answering question by
// question, submitting, and the optional contact capture that follows.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/mailerlite"
	"github.com/mbolis/quick-survey/metrics"
	"github.com/mbolis/quick-survey/model"
)

type State string

const (
	StateLoading       State = "loading"
	StateNotFound      State = "not_found"
	StateError         State = "error"
	StateAnswering     State = "answering"
	StateSubmitting    State = "submitting"
	StateSubmitted     State = "submitted"
	StateContactPrompt State = "contact_prompt"
	StateClosed        State = "closed"
)

const DefaultContactDelay = 2 * time.Second

var (
	ErrSurveyNotFound   = errors.New("survey not found")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAnswerType       = errors.New("answer does not fit question type")
	ErrUnknownOption    = errors.New("not one of the question options")
	ErrJumpForward      = errors.New("can only jump back to a visited question")
	ErrNotLastQuestion  = errors.New("submit is only allowed on the last question")
	ErrIncomplete       = errors.New("some required questions are not answered")
	ErrSaveFailed       = errors.New("could not save response")
	ErrContactName      = errors.New("name is required")
	ErrContactEmail     = errors.New("email is not valid")
)

// RequiredError points at a required question left blank.
type RequiredError struct {
	Index int
	ID    model.QuestionID
}

func (e *RequiredError) Error() string {
	return fmt.Sprintf("question %d is required", e.Index+1)
}

type SurveySource interface {
	GetActive(ctx context.Context, id string) (model.Survey, error)
}

type ResponseStore interface {
	Insert(ctx context.Context, resp *model.SurveyResponse) error
	AttachContact(ctx context.Context, id, name, email string) (model.SurveyResponse, error)
	MarkSynced(ctx context.Context, id string) error
}

type TokenSource interface {
	Token(ctx context.Context, userID string) (string, error)
}

type Subscribers interface {
	UpsertSubscriber(ctx context.Context, token string, sub mailerlite.Subscriber) error
}

type Deps struct {
	Surveys      SurveySource
	Responses    ResponseStore
	Tokens       TokenSource
	Subscribers  Subscribers
	Metrics      *metrics.Metrics
	ContactDelay time.Duration
}

type Option func(*Engine)

// Embedded disables contact capture, for forms shown inside a host page.
func Embedded() Option {
	return func(e *Engine) { e.capture = false }
}

type Engine struct {
	deps Deps

	mu      sync.Mutex
	state   State
	survey  model.Survey
	answers model.Responses
	index   int

	token   string
	capture bool

	responseID string
	synced     bool
	timer      *scopedTimer
	resolved   bool
}

type ContactResult struct {
	Synced bool `json:"synced"`
}

// Open loads an active survey and starts answering it. When the survey
// cannot be shown the engine is returned in a terminal state together with
// the error.
func Open(ctx context.Context, deps Deps, surveyID string, opts ...Option) (*Engine, error) {
	if deps.ContactDelay <= 0 {
		deps.ContactDelay = DefaultContactDelay
	}
	e := &Engine{deps: deps, state: StateLoading, answers: model.Responses{}, capture: true}
	for _, opt := range opts {
		opt(e)
	}

	s, err := deps.Surveys.GetActive(ctx, surveyID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		e.state = StateNotFound
		return e, ErrSurveyNotFound
	case err != nil:
		e.state = StateError
		return e, err
	case len(s.Questions) == 0:
		e.state = StateNotFound
		return e, ErrSurveyNotFound
	}
	e.survey = s

	if s.MailerLiteGroupID != "" && deps.Tokens != nil {
		token, err := deps.Tokens.Token(ctx, s.UserID)
		if err != nil {
			log.WithError(err).WithField("survey", s.ID).Warn("form: could not resolve mailerlite token")
		}
		e.token = token
	}

	e.state = StateAnswering
	return e, nil
}

func (e *Engine) SurveyID() string {
	return e.survey.ID
}

func (e *Engine) captureEnabled() bool {
	return e.capture && e.survey.MailerLiteGroupID != "" && e.token != ""
}

func (e *Engine) question(id model.QuestionID) (model.Question, error) {
	q, _, ok := e.survey.Question(id)
	if !ok {
		return model.Question{}, ErrQuestionNotFound
	}
	return q, nil
}

func hasOption(q model.Question, v string) bool {
	for _, o := range q.Options {
		if o == v {
			return true
		}
	}
	return false
}

// SetAnswer records the answer to a question. NoAnswer clears it.
func (e *Engine) SetAnswer(id model.QuestionID, a model.Answer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAnswering {
		return ErrInvalidState
	}
	q, err := e.question(id)
	if err != nil {
		return err
	}

	switch a.Kind() {
	case model.NoAnswer:
		delete(e.answers, id)
		return nil
	case model.MultiAnswer:
		if !q.Type.MultiValued() {
			return ErrAnswerType
		}
		vs, _ := a.Values()
		for _, v := range vs {
			if !hasOption(q, v) {
				return ErrUnknownOption
			}
		}
	case model.SingleAnswer:
		if q.Type.MultiValued() {
			return ErrAnswerType
		}
		if v, _ := a.Text(); q.Type.HasOptions() && v != "" && !hasOption(q, v) {
			return ErrUnknownOption
		}
	}

	e.answers[id] = a
	return nil
}

// Toggle flips one option of a checkbox question.
func (e *Engine) Toggle(id model.QuestionID, option string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAnswering {
		return ErrInvalidState
	}
	q, err := e.question(id)
	if err != nil {
		return err
	}
	if !q.Type.MultiValued() {
		return ErrAnswerType
	}
	if !hasOption(q, option) {
		return ErrUnknownOption
	}
	e.answers[id] = e.answers[id].Toggle(option)
	return nil
}

func (e *Engine) checkQuestion(i int) error {
	q := e.survey.Questions[i]
	if q.Required && e.answers[q.ID].IsBlank() {
		return &RequiredError{Index: i, ID: q.ID}
	}
	return nil
}

func (e *Engine) last() int {
	return len(e.survey.Questions) - 1
}

// Next moves past the current question once it is valid. On the last
// question it submits.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAnswering {
		return ErrInvalidState
	}
	if err := e.checkQuestion(e.index); err != nil {
		return err
	}
	if e.index == e.last() {
		return e.submit(ctx)
	}
	e.index++
	return nil
}

func (e *Engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAnswering {
		return ErrInvalidState
	}
	if e.index > 0 {
		e.index--
	}
	return nil
}

func (e *Engine) Jump(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAnswering {
		return ErrInvalidState
	}
	if i < 0 || i > e.index {
		return ErrJumpForward
	}
	e.index = i
	return nil
}

func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAnswering {
		return ErrInvalidState
	}
	return e.submit(ctx)
}

func (e *Engine) submit(ctx context.Context) error {
	if e.index != e.last() {
		return ErrNotLastQuestion
	}
	if err := e.checkQuestion(e.index); err != nil {
		return err
	}
	for i := range e.survey.Questions {
		if err := e.checkQuestion(i); err != nil {
			return fmt.Errorf("%w: %w", ErrIncomplete, err)
		}
	}

	e.state = StateSubmitting
	resp := model.SurveyResponse{
		SurveyID:  e.survey.ID,
		Responses: e.answers.Present(),
	}
	if q, ok := e.survey.EmailQuestion(); ok {
		if a := e.answers[q.ID]; !a.IsBlank() {
			email, _ := a.Text()
			email = strings.TrimSpace(email)
			resp.Email = &email
		}
	}

	if err := e.deps.Responses.Insert(ctx, &resp); err != nil {
		e.state = StateAnswering
		log.WithError(err).WithField("survey", e.survey.ID).Error("form: could not store response")
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	e.deps.Metrics.ResponseSubmitted()

	e.responseID = resp.ID
	e.state = StateSubmitted
	if e.captureEnabled() {
		e.timer = startTimer(e.deps.ContactDelay, e.promptContact)
	}
	return nil
}

func (e *Engine) promptContact() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSubmitted && !e.resolved {
		e.state = StateContactPrompt
	}
}

// SkipContact dismisses the contact prompt, or prevents it from appearing.
func (e *Engine) SkipContact() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateSubmitted && e.state != StateContactPrompt {
		return ErrInvalidState
	}
	e.timer.Cancel()
	e.resolved = true
	e.state = StateSubmitted
	return nil
}

func validContact(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return ErrContactName
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return ErrContactEmail
	}
	return nil
}

// CompleteContact attaches name and email to the stored response and hands
// them to MailerLite. A failed sync is logged and reported through the
// result; the contact stays stored either way.
func (e *Engine) CompleteContact(ctx context.Context, name, email string) (ContactResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if (e.state != StateSubmitted && e.state != StateContactPrompt) || e.resolved || !e.captureEnabled() {
		return ContactResult{}, ErrInvalidState
	}
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := validContact(name, email); err != nil {
		return ContactResult{}, err
	}

	resp, err := e.deps.Responses.AttachContact(ctx, e.responseID, name, email)
	if err != nil {
		log.WithError(err).WithField("response", e.responseID).Error("form: could not attach contact")
		return ContactResult{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	e.timer.Cancel()
	e.resolved = true
	e.state = StateSubmitted

	if resp.MailerLiteSynced {
		e.synced = true
		return ContactResult{Synced: true}, nil
	}
	if resp.Name != nil {
		name = *resp.Name
	}
	if resp.Email != nil {
		email = *resp.Email
	}

	entry := log.WithField("response", e.responseID)
	sub := mailerlite.NewSubscriber(name, email, e.survey.MailerLiteGroupID)
	if err := e.deps.Subscribers.UpsertSubscriber(ctx, e.token, sub); err != nil {
		entry.WithError(err).Warn("form: mailerlite sync failed")
		e.deps.Metrics.Synced(metrics.SyncFailed)
		return ContactResult{}, nil
	}
	if err := e.deps.Responses.MarkSynced(ctx, e.responseID); err != nil {
		entry.WithError(err).Error("form: could not mark response synced")
		e.deps.Metrics.Synced(metrics.SyncFailed)
		return ContactResult{}, nil
	}
	e.deps.Metrics.Synced(metrics.SyncOK)
	e.synced = true
	return ContactResult{Synced: true}, nil
}

// Close ends the form. A pending contact prompt never appears afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.timer.Cancel()
	e.state = StateClosed
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

type View struct {
	State          State                `json:"state"`
	Title          string               `json:"title,omitempty"`
	Description    string               `json:"description,omitempty"`
	Index          int                  `json:"index"`
	Count          int                  `json:"count"`
	Progress       float64              `json:"progress"`
	Question       *model.Question      `json:"question,omitempty"`
	Answer         model.Answer         `json:"answer"`
	ResponseID     string               `json:"response_id,omitempty"`
	Settings       model.SurveySettings `json:"settings"`
	ContactPending bool                 `json:"contact_pending"`
	Synced         bool                 `json:"synced"`
}

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		State:          e.state,
		Title:          e.survey.Title,
		Description:    e.survey.Description,
		Index:          e.index,
		Count:          len(e.survey.Questions),
		ResponseID:     e.responseID,
		Settings:       e.survey.Settings,
		ContactPending: (e.state == StateSubmitted || e.state == StateContactPrompt) && e.captureEnabled() && !e.resolved,
		Synced:         e.synced,
	}
	if v.Count > 0 {
		v.Progress = float64(e.index+1) / float64(v.Count)
		q := e.survey.Questions[e.index]
		v.Question = &q
		v.Answer = e.answers[q.ID]
	}
	return v
}
