package server

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"newsreader/internal/cache"
)

const (
	defaultStart   = 1
	defaultEnd     = 20
	defaultPage    = 1
	defaultPerPage = 20
)

// Threshold rules skip zero values, so the lower bounds that exclude zero
// are paired with Required.

type rangeRequest struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r rangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Start,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0")),
		validation.Field(&r.End,
			validation.Required.Error("must be greater than or equal to start"),
			validation.Min(r.Start).Error("must be greater than or equal to start")),
	)
}

type titlesRequest struct {
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	SortBy  string `json:"sort_by"`
	Search  string `json:"search"`
}

func (r titlesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Page,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0")),
		validation.Field(&r.PerPage,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0")),
		validation.Field(&r.SortBy,
			validation.Required,
			validation.In(cache.SortByDate, cache.SortByOrder).Error("must be 'date' or 'order'")),
	)
}

type ratingRequest struct {
	Rating *int `json:"rating"`
}

func (r ratingRequest) Validate() error {
	const msg = "must be an integer between 1 and 5"
	return validation.ValidateStruct(&r,
		validation.Field(&r.Rating,
			validation.NotNil.Error("is required"),
			validation.Required.Error(msg),
			validation.Min(1).Error(msg),
			validation.Max(5).Error(msg)),
	)
}

type readingTimeRequest struct {
	Seconds *int `json:"seconds"`
}

func (r readingTimeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Seconds,
			validation.NotNil.Error("is required"),
			validation.Min(0).Error("must be a positive integer")),
	)
}

type commentsRequest struct {
	Comments *string `json:"comments"`
}

func (r commentsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Comments, validation.NotNil.Error("is required")),
	)
}

type tagsRequest struct {
	Tags *[]string `json:"tags"`
}

func (r tagsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tags, validation.NotNil.Error("is required")),
	)
}

type chatRequest struct {
	Question *string `json:"question"`
	Model    string  `json:"model"`
}

func (r chatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Question, validation.NotNil.Error("is required")),
	)
}
