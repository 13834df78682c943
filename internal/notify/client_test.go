package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/apps/backend/internal/notify"
)

func TestClient_Deliver(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	page := 3
	payload := notify.Payload{
		MediaID:     1,
		Publication: "Dainik",
		Edition:     "",
		ZoneName:    "North",
		Language:    "Hindi",
		Date:        "05-06-2025",
		Articles: []notify.Article{{
			UniqueArticleID: "dainik_ab12cd34_p003_crop001_aaaaaa",
			PageNumber:      &page,
			MinistryName:    "Health",
			SecondaryTopics: []string{},
		}},
	}
	require.NoError(t, notify.NewClient(time.Second).Deliver(context.Background(), srv.URL, payload))

	assert.Equal(t, float64(1), got["mediaId"])
	assert.Equal(t, "", got["edition"])
	assert.NotContains(t, got, "newsId")
	art := got["articles"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(3), art["pagenumber"])
	assert.Equal(t, "Health", art["ministryName"])
	assert.Equal(t, []interface{}{}, art["AdditionMinisrtyName"])
}

func TestClient_Deliver_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	err := notify.NewClient(time.Second).Deliver(context.Background(), srv.URL, notify.Payload{})
	var se *notify.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Len(t, se.Body, 200)
}

func TestClient_Deliver_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	err := notify.NewClient(20*time.Millisecond).Deliver(context.Background(), srv.URL, notify.Payload{})
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	base := 10 * time.Minute
	assert.Equal(t, 10*time.Minute, notify.Backoff(base, 0))
	assert.Equal(t, 15*time.Minute, notify.Backoff(base, 1))
	assert.Equal(t, 22*time.Minute+30*time.Second, notify.Backoff(base, 2))
	assert.Equal(t, 10*time.Minute, notify.Backoff(base, -1))
}
