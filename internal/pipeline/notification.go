package pipeline

import (
	"strings"
	"time"

	"newsdesk/apps/backend/internal/analyze"
	"newsdesk/apps/backend/internal/notify"
)

const (
	MediaScanned        = 1
	MediaDigitalDefault = 2
	DigitalZone         = "Central"
)

// NotificationFrom builds the receiver payload for a scanned-document run.
// Only error-free articles are included; nil means there is nothing to send.
func NotificationFrom(resp *Response, doc Document) *notify.Payload {
	if resp == nil {
		return nil
	}
	valid := resp.Valid()
	if len(valid) == 0 {
		return nil
	}

	path := doc.StorageRef
	if path == "" {
		path = doc.Source
	}

	articles := make([]notify.Article, 0, len(valid))
	for _, a := range valid {
		page := a.Page
		articles = append(articles, notify.Article{
			UniqueArticleID: a.CropID,
			PageNumber:      &page,
			Language:        a.Language,
			Heading:         firstNonEmpty(a.EnglishHeading, a.Heading),
			Content:         a.Content,
			EnglishHeading:  a.EnglishHeading,
			EnglishContent:  a.EnglishContent,
			EnglishSummary:  a.EnglishSummary,
			Sentiment:       a.Sentiment,
			MinistryName:    a.Topic,
			SecondaryTopics: nonNil(a.SecondaryTopics),
			ImageURL:        a.ImageURL,
			ExtractedDate:   analyze.UnknownDate,
			Path:            path,
		})
	}

	return &notify.Payload{
		MediaID:     MediaScanned,
		Publication: firstNonEmpty(resp.Publication, doc.Publication),
		Edition:     resp.Edition,
		ZoneName:    resp.ZoneName,
		Language:    firstNonEmpty(resp.Language, doc.Language),
		Date:        resp.Date,
		Articles:    articles,
	}
}

// DigitalNotification builds the receiver payload for one retained digital
// article. It returns nil for dropped articles.
func DigitalNotification(resp *TextResponse, doc TextDocument, now time.Time) *notify.Payload {
	if resp == nil || resp.Dropped != "" || !resp.Result.Retained() {
		return nil
	}
	res := resp.Result

	var image string
	if len(doc.ImageURLs) > 0 {
		image = doc.ImageURLs[0]
	}
	clips := []string{}
	if doc.URL != "" {
		clips = append(clips, doc.URL)
	}
	language := firstNonEmpty(res.Language, doc.Language, "N/A")

	mediaID := doc.MediaID
	if mediaID == 0 {
		mediaID = MediaDigitalDefault
	}

	return &notify.Payload{
		MediaID:     mediaID,
		Publication: firstNonEmpty(doc.Source, doc.SiteName, "N/A"),
		Edition:     "",
		ZoneName:    DigitalZone,
		Language:    language,
		Date:        digitalDate(res, doc, now),
		Articles: []notify.Article{{
			Language:        language,
			Heading:         firstNonEmpty(res.EnglishHeading, res.Heading, doc.Title),
			Content:         doc.Content,
			EnglishHeading:  res.EnglishHeading,
			EnglishContent:  res.EnglishContent,
			EnglishSummary:  res.EnglishSummary,
			Sentiment:       res.Sentiment,
			MinistryName:    res.Topic,
			SecondaryTopics: nonNil(res.SecondaryTopics),
			ImageURL:        image,
			Category:        doc.Category,
			Authors:         nonNil(doc.Authors),
			OriginalClips:   clips,
		}},
	}
}

// digitalDate is result date, then date_published, then the request
// timestamp, then today.
func digitalDate(res analyze.Result, doc TextDocument, now time.Time) string {
	if d := strings.TrimSpace(res.Date); d != "" && !strings.EqualFold(d, analyze.UnknownDate) {
		return d
	}
	return firstNonEmpty(doc.DatePublished, doc.RequestTimestamp, now.Format(DateLayout))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
