// Package editor builds survey documents. A Draft is edited in memory and
// only reaches storage through Save.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/session"
)

var (
	ErrTitleRequired         = errors.New("survey title is required")
	ErrNoQuestions           = errors.New("add at least one question")
	ErrQuestionTitleRequired = errors.New("every question needs a title")

	ErrQuestionNotFound = errors.New("question not found")
	ErrOptionIndex      = errors.New("option index out of range")
	ErrNotOptionType    = errors.New("question type has no options")
	ErrInvalidType      = errors.New("unknown question type")

	ErrSaveFailed = errors.New("could not save survey")
)

// QuestionError reports the first question without a title.
type QuestionError struct {
	Index int
	ID    model.QuestionID
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d: %s", e.Index+1, ErrQuestionTitleRequired)
}

func (e *QuestionError) Unwrap() error {
	return ErrQuestionTitleRequired
}

type Store interface {
	Create(ctx context.Context, s *model.Survey) error
	GetOwned(ctx context.Context, userID, id string) (model.Survey, error)
	Update(ctx context.Context, userID, id string, patch model.SurveyPatch) (model.Survey, error)
}

// QuestionPatch is merged over a question; nil fields are kept.
type QuestionPatch struct {
	Type        *model.QuestionType `json:"type,omitempty" validate:"omitempty,oneof=text email textarea select radio checkbox"`
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	Required    *bool               `json:"required,omitempty"`
	Options     *[]string           `json:"options,omitempty"`
}

type Meta struct {
	Title             *string               `json:"title,omitempty"`
	Description       *string               `json:"description,omitempty"`
	MailerLiteGroupID *string               `json:"mailerlite_group_id,omitempty"`
	Settings          *model.SurveySettings `json:"settings,omitempty"`
}

type Draft struct {
	mu sync.Mutex

	surveyID    string
	title       string
	description string
	questions   []model.Question
	groupID     string
	settings    model.SurveySettings

	lastID  int64
	catalog *GroupCatalog
	clock   func() time.Time
}

// View is a copy of the draft state.
type View struct {
	SurveyID          string               `json:"survey_id,omitempty"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	Questions         []model.Question     `json:"questions"`
	MailerLiteGroupID string               `json:"mailerlite_group_id"`
	Settings          model.SurveySettings `json:"settings"`
}

// New starts an empty draft for a survey that does not exist yet.
func New(catalog *GroupCatalog) *Draft {
	return &Draft{questions: []model.Question{}, catalog: catalog, clock: time.Now}
}

// FromSurvey starts a draft over a survey document. Questions without an
// id get one.
func FromSurvey(s model.Survey, catalog *GroupCatalog) *Draft {
	d := New(catalog)
	d.surveyID = s.ID
	d.title = s.Title
	d.description = s.Description
	d.questions = cloneQuestions(s.Questions)
	d.groupID = s.MailerLiteGroupID
	d.settings = s.Settings

	for i := range d.questions {
		if d.questions[i].ID == "" {
			d.questions[i].ID = d.nextID()
		}
	}
	return d
}

// Load reads one of the session owner's surveys into a new draft.
func Load(ctx context.Context, store Store, sess *session.Session, id string, catalog *GroupCatalog) (*Draft, error) {
	s, err := store.GetOwned(ctx, sess.UserID, id)
	if err != nil {
		return nil, err
	}
	return FromSurvey(s, catalog), nil
}

func (d *Draft) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view()
}

func (d *Draft) view() View {
	return View{
		SurveyID:          d.surveyID,
		Title:             d.title,
		Description:       d.description,
		Questions:         cloneQuestions(d.questions),
		MailerLiteGroupID: d.groupID,
		Settings:          d.settings,
	}
}

func (d *Draft) SetMeta(m Meta) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m.Title != nil {
		d.title = *m.Title
	}
	if m.Description != nil {
		d.description = *m.Description
	}
	if m.MailerLiteGroupID != nil {
		d.groupID = *m.MailerLiteGroupID
	}
	if m.Settings != nil {
		d.settings = *m.Settings
	}
}

// AddQuestion appends a blank, optional text question and returns it.
func (d *Draft) AddQuestion() model.Question {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := model.Question{ID: d.nextID(), Type: model.TypeText}
	d.questions = append(d.questions, q)
	return q
}

// nextID derives an id from the current time in milliseconds, bumped past
// the previous one so ids stay unique within the draft.
func (d *Draft) nextID() model.QuestionID {
	ms := d.clock().UnixMilli()
	if ms <= d.lastID {
		ms = d.lastID + 1
	}
	for {
		id := model.QuestionID(strconv.FormatInt(ms, 10))
		if d.indexOf(id) < 0 {
			d.lastID = ms
			return id
		}
		ms++
	}
}

func (d *Draft) indexOf(id model.QuestionID) int {
	for i, q := range d.questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

func (d *Draft) UpdateQuestion(id model.QuestionID, p QuestionPatch) (model.Question, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexOf(id)
	if i < 0 {
		return model.Question{}, ErrQuestionNotFound
	}
	q := d.questions[i]

	if p.Type != nil && *p.Type != q.Type {
		if !p.Type.Valid() {
			return model.Question{}, ErrInvalidType
		}
		q.Type = *p.Type
		if q.Type.HasOptions() {
			q.Options = []string{""}
		} else {
			q.Options = nil
		}
	}
	if p.Options != nil {
		if !q.Type.HasOptions() {
			return model.Question{}, ErrNotOptionType
		}
		q.Options = append([]string{}, (*p.Options)...)
	}
	if p.Title != nil {
		q.Title = *p.Title
	}
	if p.Description != nil {
		q.Description = *p.Description
	}
	if p.Required != nil {
		q.Required = *p.Required
	}

	d.questions[i] = q
	return q, nil
}

func (d *Draft) RemoveQuestion(id model.QuestionID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexOf(id)
	if i < 0 {
		return ErrQuestionNotFound
	}
	d.questions = append(d.questions[:i:i], d.questions[i+1:]...)
	return nil
}

// optionQuestion returns the index of an option-bearing question.
func (d *Draft) optionQuestion(id model.QuestionID) (int, error) {
	i := d.indexOf(id)
	if i < 0 {
		return -1, ErrQuestionNotFound
	}
	if !d.questions[i].Type.HasOptions() {
		return -1, ErrNotOptionType
	}
	return i, nil
}

// AddOption appends an empty option.
func (d *Draft) AddOption(id model.QuestionID) (model.Question, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, err := d.optionQuestion(id)
	if err != nil {
		return model.Question{}, err
	}
	q := d.questions[i]
	q.Options = append(append([]string{}, q.Options...), "")
	d.questions[i] = q
	return q, nil
}

func (d *Draft) UpdateOption(id model.QuestionID, index int, value string) (model.Question, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, err := d.optionQuestion(id)
	if err != nil {
		return model.Question{}, err
	}
	q := d.questions[i]
	if index < 0 || index >= len(q.Options) {
		return model.Question{}, ErrOptionIndex
	}
	q.Options = append([]string{}, q.Options...)
	q.Options[index] = value
	d.questions[i] = q
	return q, nil
}

func (d *Draft) RemoveOption(id model.QuestionID, index int) (model.Question, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, err := d.optionQuestion(id)
	if err != nil {
		return model.Question{}, err
	}
	q := d.questions[i]
	if index < 0 || index >= len(q.Options) {
		return model.Question{}, ErrOptionIndex
	}
	opts := make([]string, 0, len(q.Options)-1)
	opts = append(opts, q.Options[:index]...)
	q.Options = append(opts, q.Options[index+1:]...)
	d.questions[i] = q
	return q, nil
}

// Validate returns the first rule the draft breaks, in this order: survey
// title, question count, question titles.
func (d *Draft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.validate()
}

func (d *Draft) validate() error {
	if strings.TrimSpace(d.title) == "" {
		return ErrTitleRequired
	}
	if len(d.questions) == 0 {
		return ErrNoQuestions
	}
	for i, q := range d.questions {
		if strings.TrimSpace(q.Title) == "" {
			return &QuestionError{Index: i, ID: q.ID}
		}
	}
	return nil
}

// Save validates the draft and persists it with a single write. On failure
// the draft is left exactly as it was.
func (d *Draft) Save(ctx context.Context, store Store, sess *session.Session) (model.Survey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.validate(); err != nil {
		return model.Survey{}, err
	}

	title := strings.TrimSpace(d.title)
	description := strings.TrimSpace(d.description)
	questions := cloneQuestions(d.questions)
	settings := d.settings
	groupID := d.groupID

	if d.surveyID == "" {
		s := model.Survey{
			UserID:            sess.UserID,
			Title:             title,
			Description:       description,
			Questions:         questions,
			Settings:          settings,
			MailerLiteGroupID: groupID,
			IsActive:          true,
		}
		if err := store.Create(ctx, &s); err != nil {
			return model.Survey{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
		}
		d.surveyID = s.ID
		return s, nil
	}

	s, err := store.Update(ctx, sess.UserID, d.surveyID, model.SurveyPatch{
		Title:             &title,
		Description:       &description,
		Questions:         &questions,
		Settings:          &settings,
		MailerLiteGroupID: &groupID,
	})
	if err != nil {
		return model.Survey{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return s, nil
}

func cloneQuestions(qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		if q.Options != nil {
			q.Options = append([]string{}, q.Options...)
		}
		out[i] = q
	}
	return out
}
