package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

type QueryParams struct {
	Prompt    string         `json:"prompt" validate:"required"`
	NbResults int            `json:"nb_results" validate:"gte=0,lte=30"`
	Filter    map[string]any `json:"filter,omitempty"`
}

type TranscriptParams struct {
	Title  string `json:"title" validate:"required"`
	Text   string `json:"text" validate:"required"`
	Source string `json:"source" validate:"omitempty,url"`
}

type ChatParams struct {
	Message   string `query:"message" validate:"required"`
	NbResults int    `query:"nb_results"`
	History   string `query:"history"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *QueryParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *TranscriptParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type SearchResponse struct {
	Answer     string    `json:"answer"`
	Sources    []Source  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type Source struct {
	DocID     string  `json:"doc_id"`
	Title     string  `json:"title"`
	ChunkText string  `json:"chunk_text"`
	Index     int     `json:"index"`
	Page      any     `json:"page,omitempty"`
	Score     float64 `json:"score"`
}

// StreamEvent is one server-sent event of the chat stream.
type StreamEvent struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

const (
	EventSources  = "sources"
	EventResponse = "response"
	EventStatus   = "status"
	EventError    = "error"
)

// ChatSource is a retrieved chunk as sent in the "sources" event.
type ChatSource struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Page    any     `json:"page,omitempty"`
	Score   float64 `json:"score"`
}
