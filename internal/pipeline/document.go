package pipeline

import (
	"newsdesk/apps/backend/internal/analyze"
)

type Mode string

const (
	ModePDF    Mode = "pdf"
	ModeImages Mode = "images"
	ModeText   Mode = "text"
)

// Document is one scanned input. Source is a local PDF path (ModePDF) or a
// directory of page images (ModeImages). StorageRef, when set, is the
// s3://bucket/key the PDF was downloaded from.
type Document struct {
	Publication string
	Edition     string
	Language    string
	Zone        string
	Date        string
	Source      string
	StorageRef  string
	Mode        Mode
	DPI         int
	Quality     int
	Resize      bool
	Notify      bool
}

// TextDocument is one digital article as produced by the crawler.
type TextDocument struct {
	Title            string   `json:"title"`
	Source           string   `json:"source"`
	URL              string   `json:"url"`
	DatePublished    string   `json:"date_published"`
	Authors          []string `json:"authors"`
	Language         string   `json:"language"`
	CrawledOn        string   `json:"crawled_on"`
	Content          string   `json:"content"`
	Category         string   `json:"category"`
	ImageURLs        []string `json:"imagesUrls"`
	OriginalClipURLs []string `json:"originalClipUrls"`

	// Filled from the queue message rather than the article JSON.
	MediaID          int    `json:"mediaId,omitempty"`
	SiteName         string `json:"-"`
	RequestTimestamp string `json:"-"`
}

// PublishedArticle is an analysis result with the locators of its uploaded
// assets. Entries carrying Error are reported but never notified.
type PublishedArticle struct {
	analyze.Result
	ImageURL string `json:"image_url,omitempty"`
	JSONURL  string `json:"ocr_output_url,omitempty"`
}

type Response struct {
	Publication string             `json:"publication"`
	Edition     string             `json:"edition"`
	Date        string             `json:"date"`
	Language    string             `json:"language"`
	ZoneName    string             `json:"zoneName"`
	TotalPages  int                `json:"total_pages"`
	Articles    []PublishedArticle `json:"articles"`
	FileURLs    []string           `json:"file_urls"`
}

// Valid returns the articles that carry no error.
func (r *Response) Valid() []PublishedArticle {
	var out []PublishedArticle
	for _, a := range r.Articles {
		if a.Error == "" {
			out = append(out, a)
		}
	}
	return out
}

// Drop reasons for digital articles.
const (
	DroppedAdvertisement = "advertisement"
	DroppedUnknownTopic  = "unknown_topic"
)

type TextResponse struct {
	Result  analyze.Result `json:"result"`
	Dropped string         `json:"dropped,omitempty"`
	JSONURL string         `json:"ocr_output_url,omitempty"`
}
