package analyze

import (
	"errors"
	"strings"

	"newsdesk/apps/backend/internal/jsonx"
)

// ErrAdvertisementFiltered marks digital text rejected by the inline ad check.
var ErrAdvertisementFiltered = errors.New("advertisement_filtered")

const (
	UnknownTopic = "Unknown"
	UnknownDate  = "unknown"

	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"

	maxSecondaryTopics = 2
)

// Result is one analyzed article unit. JSON names follow the analysis
// artifact written next to each crop.
type Result struct {
	CropID          string   `json:"unique_article_id,omitempty"`
	Page            int      `json:"pagenumber,omitempty"`
	Language        string   `json:"language"`
	Heading         string   `json:"heading"`
	Content         string   `json:"content"`
	EnglishHeading  string   `json:"english_heading"`
	EnglishContent  string   `json:"english_content"`
	EnglishSummary  string   `json:"english_summary"`
	Sentiment       string   `json:"sentiment"`
	Topic           string   `json:"ministryName"`
	SecondaryTopics []string `json:"AdditionMinisrtyName"`
	Date            string   `json:"date"`
	Path            string   `json:"-"`
	Error           string   `json:"error,omitempty"`
	RawSnippet      string   `json:"raw_response_snippet,omitempty"`
}

// Retained reports whether the unit survives to publication.
func (r Result) Retained() bool {
	return r.Error == "" && !IsUnknownTopic(r.Topic)
}

func IsUnknownTopic(topic string) bool {
	topic = strings.TrimSpace(topic)
	return topic == "" || strings.EqualFold(topic, UnknownTopic)
}

// TopicsFrom splits the ranked topic list into a primary topic and at most
// two secondary ones. A primary outside tax becomes UnknownTopic; secondary
// entries outside tax, empty or repeating the primary are skipped.
func TopicsFrom(ranked []string, tax *Taxonomy) (string, []string) {
	secondary := []string{}
	if len(ranked) == 0 {
		return UnknownTopic, secondary
	}
	primary, ok := tax.Canonical(ranked[0])
	if !ok {
		primary = UnknownTopic
	}
	seen := map[string]bool{primary: true}
	for _, t := range ranked[1:] {
		name, ok := tax.Canonical(t)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		secondary = append(secondary, name)
		if len(secondary) == maxSecondaryTopics {
			break
		}
	}
	return primary, secondary
}

func normalizeSentiment(s string) string {
	switch s = strings.ToUpper(strings.TrimSpace(s)); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s
	default:
		return SentimentNeutral
	}
}

// Fields is the shape shared by every extracted oracle answer.
type Fields struct {
	Language       string
	Heading        string
	Content        string
	EnglishHeading string
	EnglishContent string
	EnglishSummary string
	Sentiment      string
	Topics         []string
	Date           string
}

// ExtractedArticle is either OracleParsed or HeuristicParsed.
type ExtractedArticle interface {
	Fields() Fields
	extracted()
}

// OracleParsed came from a response that decoded as-is.
type OracleParsed struct {
	fields Fields
}

func (p OracleParsed) Fields() Fields { return p.fields }
func (OracleParsed) extracted()       {}

// HeuristicParsed needed one of the recovery strategies.
type HeuristicParsed struct {
	fields Fields
	Method jsonx.Method
}

func (p HeuristicParsed) Fields() Fields { return p.fields }
func (HeuristicParsed) extracted()       {}

// Classify recovers the oracle answer from raw model text.
func Classify(raw string) (ExtractedArticle, error) {
	obj, method, err := jsonx.Extract(raw)
	if err != nil {
		return nil, err
	}
	f := fieldsFrom(obj)
	if method == jsonx.MethodDirect {
		return OracleParsed{fields: f}, nil
	}
	return HeuristicParsed{fields: f, Method: method}, nil
}

func fieldsFrom(obj map[string]any) Fields {
	date := jsonx.String(obj, "date")
	if d := jsonx.String(obj, "date_from_text"); d != "" {
		date = d
	}
	return Fields{
		Language:       jsonx.String(obj, "language"),
		Heading:        jsonx.String(obj, "heading"),
		Content:        jsonx.String(obj, "content"),
		EnglishHeading: jsonx.String(obj, "english_heading"),
		EnglishContent: jsonx.String(obj, "english_content"),
		EnglishSummary: jsonx.String(obj, "english_summary"),
		Sentiment:      jsonx.String(obj, "sentiment"),
		Topics:         topicList(obj["ministries"]),
		Date:           date,
	}
}

// topicList accepts [{"ministry": "..."}] as well as a plain string list.
func topicList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			out = append(out, jsonx.String(t, "ministry"))
		}
	}
	return out
}
