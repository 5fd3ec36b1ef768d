package domain

import (
	"strconv"
	"time"
)

// ScrapedDateLayout is the layout used for Article.ScrapedDate.
const ScrapedDateLayout = "2006-01-02 15:04:05"

// Article is one persisted news item.
type Article struct {
	// ID is the record's zero-based position in the stored collection.
	// It is re-stamped on every load and save.
	ID int `json:"id"`

	// UID is a surrogate key assigned once at ingestion and never re-stamped.
	UID string `json:"uid,omitempty"`

	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`

	// HasBeenPretreat stays false until the AI rewrite completed successfully.
	HasBeenPretreat bool `json:"has_been_pretreat"`

	// Rating is nil when the article is unrated, otherwise in [1,5].
	Rating *int `json:"rating"`

	// TimeSpent accumulates reading time in seconds.
	TimeSpent int `json:"time_spent"`

	Comments string   `json:"comments"`
	Tags     []string `json:"tags"`
	Source   Source   `json:"source"`

	ScrapedDate string `json:"scraped_date"`

	// Date is the publication date (YYYY-MM-DD), empty when unknown.
	Date string `json:"date,omitempty"`
}

// Clone returns a deep copy of the article.
func (a Article) Clone() Article {
	c := a
	if a.Rating != nil {
		r := *a.Rating
		c.Rating = &r
	}
	if a.Tags != nil {
		c.Tags = append([]string(nil), a.Tags...)
	}
	return c
}

// CloneArticles deep-copies a slice of articles.
func CloneArticles(in []Article) []Article {
	out := make([]Article, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// TitleView is the reduced projection returned by title listings.
type TitleView struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	HasBeenPretreat bool     `json:"has_been_pretreat"`
	Rating          *int     `json:"rating"`
	TimeSpent       int      `json:"time_spent"`
	Comments        string   `json:"comments"`
	Tags            []string `json:"tags"`
	Source          Source   `json:"source"`
	ScrapedDate     string   `json:"scraped_date"`
	Date            *string  `json:"date"`
}

// View projects the article to its TitleView.
func (a Article) View() TitleView {
	c := a.Clone()
	v := TitleView{
		ID:              c.ID,
		Title:           c.Title,
		URL:             c.URL,
		HasBeenPretreat: c.HasBeenPretreat,
		Rating:          c.Rating,
		TimeSpent:       c.TimeSpent,
		Comments:        c.Comments,
		Tags:            c.Tags,
		Source:          c.Source,
		ScrapedDate:     c.ScrapedDate,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if c.Date != "" {
		d := c.Date
		v.Date = &d
	}
	return v
}

// UnpretreatedArticle identifies an article still waiting for AI processing.
type UnpretreatedArticle struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Message types of a chat conversation.
const (
	MessageTypeUser = "user"
	MessageTypeAI   = "ai"
)

// ChatMessage is one entry of an article's conversation.
type ChatMessage struct {
	// ID is the 1-based ordinal within the conversation.
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	// ModelUsed is only set on ai messages.
	ModelUsed string `json:"model_used,omitempty"`
}

// NewChatMessage builds the next message of a conversation holding n messages.
func NewChatMessage(n int, msgType, content, modelUsed string, now time.Time) ChatMessage {
	msg := ChatMessage{
		ID:        strconv.Itoa(n + 1),
		Type:      msgType,
		Content:   content,
		Timestamp: now.UnixMilli(),
	}
	if msgType == MessageTypeAI {
		msg.ModelUsed = modelUsed
	}
	return msg
}
