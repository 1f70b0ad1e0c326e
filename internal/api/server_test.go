package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/textsource/engine/internal/api"
	"github.com/textsource/engine/internal/config"
	"github.com/textsource/engine/internal/finder"
)

// Mocks

type MockSourceService struct {
	mock.Mock
}

func (m *MockSourceService) FindSources(text string, topK int) []finder.SourceMatch {
	args := m.Called(text, topK)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]finder.SourceMatch)
}

func (m *MockSourceService) LocateSourcePositions(text string, opts finder.LocateOptions) []finder.SourcePosition {
	args := m.Called(text, opts)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]finder.SourcePosition)
}

func (m *MockSourceService) Stats() finder.Stats {
	args := m.Called()
	return args.Get(0).(finder.Stats)
}

func setupServer() (*api.Server, *MockSourceService) {
	cfg := config.Load()
	logger := logrus.New().WithField("test", "api")
	service := new(MockSourceService)
	return api.NewServer(cfg, service, logger), service
}

func TestHandleSources(t *testing.T) {
	server, service := setupServer()

	service.On("FindSources", "кот сидит", server.Config.Finder.TopK).
		Return([]finder.SourceMatch{{Path: "a.txt", Score: 0.91}})

	req, _ := http.NewRequest("GET", "/api/v1/sources?q="+url.QueryEscape("кот сидит"), nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.SourcesResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "кот сидит", resp.Query)
	assert.Len(t, resp.Matches, 1)
	assert.Equal(t, "a.txt", resp.Matches[0].Path)
	assert.InDelta(t, 0.91, resp.Matches[0].Score, 1e-9)

	service.AssertExpectations(t)
}

func TestHandleSourcesTopKParam(t *testing.T) {
	server, service := setupServer()

	service.On("FindSources", "кот", 2).Return(nil)

	req, _ := http.NewRequest("GET", "/api/v1/sources?q="+url.QueryEscape("кот")+"&top_k=2", nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.SourcesResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Empty(t, resp.Matches)

	service.AssertExpectations(t)
}

func TestHandleSourcesMissingQuery(t *testing.T) {
	server, _ := setupServer()

	req, _ := http.NewRequest("GET", "/api/v1/sources", nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp api.ErrorResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleSourcesBadTopK(t *testing.T) {
	server, _ := setupServer()

	req, _ := http.NewRequest("GET", "/api/v1/sources?q=x&top_k=abc", nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleSourcesMethodNotAllowed(t *testing.T) {
	server, _ := setupServer()

	req, _ := http.NewRequest("POST", "/api/v1/sources?q=x", nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandlePositions(t *testing.T) {
	server, service := setupServer()

	// Parameters left out arrive as zeros; the finder fills its defaults.
	service.On("LocateSourcePositions", "кот", finder.LocateOptions{}).
		Return([]finder.SourcePosition{{
			Path:    "a.txt",
			Index:   1,
			Label:   "line",
			Snippet: "кот сидит на окне",
			Score:   0.8,
		}})

	req, _ := http.NewRequest("GET", "/api/v1/positions?q="+url.QueryEscape("кот"), nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.PositionsResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Len(t, resp.Positions, 1)
	assert.Equal(t, "a.txt", resp.Positions[0].Path)
	assert.Equal(t, 1, resp.Positions[0].Index)
	assert.Equal(t, "line", resp.Positions[0].Label)
	assert.Equal(t, "кот сидит на окне", resp.Positions[0].Snippet)

	service.AssertExpectations(t)
}

func TestHandlePositionsParams(t *testing.T) {
	server, service := setupServer()

	service.On("LocateSourcePositions", "кот", finder.LocateOptions{
		TopK:       3,
		MaxPerFile: 1,
		SnippetLen: 50,
	}).Return(nil)

	target := "/api/v1/positions?q=" + url.QueryEscape("кот") + "&top_k=3&max_positions=1&snippet_len=50"
	req, _ := http.NewRequest("GET", target, nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	service.AssertExpectations(t)
}

func TestHandleStatus(t *testing.T) {
	server, service := setupServer()

	service.On("Stats").Return(finder.Stats{
		Files:         2,
		Documents:     10,
		BuildDuration: 1500 * time.Millisecond,
	})

	req, _ := http.NewRequest("GET", "/api/v1/status", nil)
	rr := httptest.NewRecorder()

	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.StatusResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, 2, resp.Files)
	assert.Equal(t, 10, resp.Documents)
	assert.Equal(t, "1.5s", resp.BuildDuration)
	assert.NotEmpty(t, resp.Uptime)

	service.AssertExpectations(t)
}
