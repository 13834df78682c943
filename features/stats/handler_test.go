package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"newsdesk/apps/backend/internal/keys"
)

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepo) CountByHandler(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		credential *keys.Assignment
		setupMocks func(*MockJobRepo)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name:       "Success",
			credential: &keys.Assignment{Index: 2, Pool: 4, Key: "secret-key"},
			setupMocks: func(j *MockJobRepo) {
				j.On("Count", mock.Anything).Return(5, nil)
				j.On("CountByHandler", mock.Anything).Return(map[string]int{"ocr.document": 3, "ocr.notify": 2}, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 5, data["failed_jobs"])
				assert.EqualValues(t, 2, data["credential_index"])
				assert.EqualValues(t, 4, data["credential_pool"])
				assert.Equal(t, false, data["credential_fallback"])
				byTopic := data["failed_by_topic"].(map[string]interface{})
				assert.EqualValues(t, 3, byTopic["ocr.document"])
				assert.NotContains(t, data, "key")
			},
		},
		{
			name: "No Credential",
			setupMocks: func(j *MockJobRepo) {
				j.On("Count", mock.Anything).Return(0, nil)
				j.On("CountByHandler", mock.Anything).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, -1, data["credential_index"])
				assert.EqualValues(t, 0, data["credential_pool"])
				assert.Empty(t, data["failed_by_topic"])
			},
		},
		{
			name: "Count Error",
			setupMocks: func(j *MockJobRepo) {
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "CountByHandler Error",
			setupMocks: func(j *MockJobRepo) {
				j.On("Count", mock.Anything).Return(5, nil)
				j.On("CountByHandler", mock.Anything).Return(nil, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mJob := new(MockJobRepo)
			tt.setupMocks(mJob)

			h := NewHandler(mJob, tt.credential)
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			h.GetStats(w, req)

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]interface{}
			err := json.NewDecoder(resp.Body).Decode(&body)
			assert.NoError(t, err)

			if tt.wantError {
				assert.Contains(t, body, "error")
				errMap := body["error"].(map[string]interface{})
				assert.Equal(t, "INTERNAL_ERROR", errMap["code"])
			} else {
				tt.checkBody(t, body)
			}
		})
	}
}
