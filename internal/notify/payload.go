package notify

// Payload is the body POSTed to the downstream receiver for one completed
// task.
type Payload struct {
	MediaID     int       `json:"mediaId"`
	Publication string    `json:"publication"`
	Edition     string    `json:"edition"`
	ZoneName    string    `json:"zoneName"`
	Language    string    `json:"language"`
	Date        string    `json:"date"`
	NewsID      string    `json:"newsId,omitempty"`
	Articles    []Article `json:"articles"`
}

type Article struct {
	UniqueArticleID string   `json:"unique_article_id,omitempty"`
	PageNumber      *int     `json:"pagenumber,omitempty"`
	Language        string   `json:"language"`
	Heading         string   `json:"heading"`
	Content         string   `json:"content"`
	EnglishHeading  string   `json:"english_heading"`
	EnglishContent  string   `json:"english_content"`
	EnglishSummary  string   `json:"english_summary"`
	Sentiment       string   `json:"sentiment"`
	MinistryName    string   `json:"ministryName"`
	SecondaryTopics []string `json:"AdditionMinisrtyName"`
	ImageURL        string   `json:"image_url,omitempty"`
	Category        string   `json:"category,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	OriginalClips   []string `json:"originalClipUrls,omitempty"`
	ExtractedDate   string   `json:"extracted_date_from_gemini,omitempty"`
	Path            string   `json:"path,omitempty"`
}
