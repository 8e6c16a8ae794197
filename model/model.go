package model

import "time"

type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeEmail    QuestionType = "email"
	TypeTextarea QuestionType = "textarea"
	TypeSelect   QuestionType = "select"
	TypeRadio    QuestionType = "radio"
	TypeCheckbox QuestionType = "checkbox"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeEmail, TypeTextarea, TypeSelect, TypeRadio, TypeCheckbox:
		return true
	}
	return false
}

// HasOptions reports whether answers are picked from Question.Options.
func (t QuestionType) HasOptions() bool {
	return t == TypeSelect || t == TypeRadio || t == TypeCheckbox
}

// MultiValued reports whether the answer is a set of options.
func (t QuestionType) MultiValued() bool {
	return t == TypeCheckbox
}

type QuestionID string

type Question struct {
	ID          QuestionID   `json:"id"`
	Type        QuestionType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Required    bool         `json:"required"`
	Options     []string     `json:"options,omitempty"`
}

type SurveySettings struct {
	ThankYouMessage string `json:"thank_you_message,omitempty"`
	RedirectURL     string `json:"redirect_url,omitempty"`
}

type Survey struct {
	ID                string         `json:"id,omitempty"`
	UserID            string         `json:"user_id,omitempty"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Questions         []Question     `json:"questions"`
	Settings          SurveySettings `json:"settings"`
	MailerLiteGroupID string         `json:"mailerlite_group_id"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Question returns the question with the given id and its position.
func (s Survey) Question(id QuestionID) (Question, int, bool) {
	for i, q := range s.Questions {
		if q.ID == id {
			return q, i, true
		}
	}
	return Question{}, -1, false
}

// EmailQuestion returns the first question of type email, if any.
func (s Survey) EmailQuestion() (Question, bool) {
	for _, q := range s.Questions {
		if q.Type == TypeEmail {
			return q, true
		}
	}
	return Question{}, false
}

// SurveyPatch is a partial update; nil fields are left untouched.
type SurveyPatch struct {
	Title             *string
	Description       *string
	Questions         *[]Question
	Settings          *SurveySettings
	MailerLiteGroupID *string
	IsActive          *bool
}

func (p SurveyPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Questions == nil &&
		p.Settings == nil && p.MailerLiteGroupID == nil && p.IsActive == nil
}

type SurveyResponse struct {
	ID               string    `json:"id"`
	SurveyID         string    `json:"survey_id"`
	Responses        Responses `json:"responses"`
	Email            *string   `json:"email"`
	Name             *string   `json:"name"`
	MailerLiteSynced bool      `json:"mailerlite_synced"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasContact reports whether the contact-capture step already stored a name.
func (r SurveyResponse) HasContact() bool {
	return r.Name != nil
}

type ResponseSummary struct {
	Total     int        `json:"total"`
	WithEmail int        `json:"with_email"`
	Latest    *time.Time `json:"latest"`
}

type UserIntegration struct {
	UserID          string    `json:"user_id"`
	MailerLiteToken string    `json:"-"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
