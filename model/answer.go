package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type AnswerKind int

const (
	NoAnswer AnswerKind = iota
	SingleAnswer
	MultiAnswer
)

// Answer is the value given to one question: nothing, a single string or
// a set of strings. The zero value is NoAnswer.
type Answer struct {
	kind   AnswerKind
	text   string
	values []string
}

func None() Answer {
	return Answer{}
}

func Text(s string) Answer {
	return Answer{kind: SingleAnswer, text: s}
}

func Choices(values ...string) Answer {
	vs := make([]string, len(values))
	copy(vs, values)
	return Answer{kind: MultiAnswer, values: vs}
}

func (a Answer) Kind() AnswerKind {
	return a.kind
}

func (a Answer) Present() bool {
	return a.kind != NoAnswer
}

func (a Answer) Text() (string, bool) {
	return a.text, a.kind == SingleAnswer
}

func (a Answer) Values() ([]string, bool) {
	if a.kind != MultiAnswer {
		return nil, false
	}
	vs := make([]string, len(a.values))
	copy(vs, a.values)
	return vs, true
}

// IsBlank is true for a missing answer, a whitespace-only string or an
// empty selection.
func (a Answer) IsBlank() bool {
	switch a.kind {
	case SingleAnswer:
		return strings.TrimSpace(a.text) == ""
	case MultiAnswer:
		return len(a.values) == 0
	}
	return true
}

// Contains reports whether option is part of a multi answer.
func (a Answer) Contains(option string) bool {
	for _, v := range a.values {
		if v == option {
			return true
		}
	}
	return false
}

// Toggle adds option to a multi answer, or removes it when already there.
func (a Answer) Toggle(option string) Answer {
	if a.Contains(option) {
		vs := make([]string, 0, len(a.values)-1)
		for _, v := range a.values {
			if v != option {
				vs = append(vs, v)
			}
		}
		return Answer{kind: MultiAnswer, values: vs}
	}
	return Choices(append(a.values, option)...)
}

// Flatten renders the answer as a single string, joining multi answers with sep.
func (a Answer) Flatten(sep string) string {
	switch a.kind {
	case SingleAnswer:
		return a.text
	case MultiAnswer:
		return strings.Join(a.values, sep)
	}
	return ""
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case SingleAnswer:
		return json.Marshal(a.text)
	case MultiAnswer:
		if a.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.values)
	}
	return []byte("null"), nil
}

var ErrAnswerFormat = errors.New("answer must be null, a string or an array of strings")

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = None()
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Text(s)
		return nil
	case len(data) > 0 && data[0] == '[':
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return ErrAnswerFormat
		}
		*a = Choices(vs...)
		return nil
	}
	return ErrAnswerFormat
}

// Responses maps each answered question to its answer.
type Responses map[QuestionID]Answer

// Present returns a copy without NoAnswer entries.
func (r Responses) Present() Responses {
	out := make(Responses, len(r))
	for id, a := range r {
		if a.Present() {
			out[id] = a
		}
	}
	return out
}

func (r Responses) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[QuestionID]Answer(r.Present()))
}
