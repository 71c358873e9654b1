package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taxrates/taxrates-api/internal/handlers"
	"github.com/taxrates/taxrates-api/internal/types/api/requests"
	"github.com/taxrates/taxrates-api/internal/types/api/responses"
)

// MockRateResolver is a mock implementation for the rate handler tests
type MockRateResolver struct {
	mock.Mock
}

func (m *MockRateResolver) Resolve(req requests.RateRequest) responses.RateResponse {
	args := m.Called(req)
	return args.Get(0).(responses.RateResponse)
}

func (m *MockRateResolver) States() responses.StatesResponse {
	args := m.Called()
	return args.Get(0).(responses.StatesResponse)
}

func (m *MockRateResolver) Metadata(state string) (responses.MetadataResponse, bool) {
	args := m.Called(state)
	return args.Get(0).(responses.MetadataResponse), args.Bool(1)
}

func setupRateRouter(resolver handlers.RateResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewRateHandler(resolver)
	router := gin.New()
	router.GET("/api/rate", h.GetRate)
	router.GET("/api/states", h.ListStates)
	router.GET("/api/states/:state", h.GetStateMetadata)
	return router
}

func get(router *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestGetRate(t *testing.T) {
	sacramento := responses.RateResponse{
		Rate:         0.0875,
		Percentage:   "8.75%",
		Jurisdiction: "Sacramento",
		State:        "CA",
		Supported:    true,
		LookupMethod: "city",
	}

	tests := []struct {
		name       string
		query      string
		setupMock  func(m *MockRateResolver)
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name:  "state and city",
			query: "?state=CA&city=Sacramento",
			setupMock: func(m *MockRateResolver) {
				m.On("Resolve", requests.RateRequest{State: "CA", City: "Sacramento"}).Return(sacramento)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp responses.RateResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, sacramento, resp)
			},
		},
		{
			name:  "zip only",
			query: "?zip=90210",
			setupMock: func(m *MockRateResolver) {
				m.On("Resolve", requests.RateRequest{Zip: "90210"}).Return(responses.RateResponse{State: "CA", Supported: true})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "unsupported state is not an error",
			query: "?state=ZZ",
			setupMock: func(m *MockRateResolver) {
				m.On("Resolve", requests.RateRequest{State: "ZZ"}).Return(responses.RateResponse{
					State:     "ZZ",
					Supported: false,
					Reason:    "No tax data for ZZ. Supported states: CA.",
				})
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp responses.RateResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.False(t, resp.Supported)
				assert.Contains(t, resp.Reason, "No tax data for ZZ")
			},
		},
		{
			name:       "neither zip nor state",
			query:      "?city=Sacramento",
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				var resp responses.ErrorResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "Bad request", resp.Error)
				assert.Equal(t, `Either "zip" or "state" parameter is required`, resp.Message)
				assert.Equal(t, "/api/rate?zip=90210", resp.Example)
			},
		},
		{
			name:       "blank parameters",
			query:      "?zip=%20&state=",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "oversized city",
			query:      "?state=CA&city=" + strings.Repeat("a", 201),
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				var resp responses.ErrorResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "Invalid query parameters", resp.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockRateResolver)
			if tt.setupMock != nil {
				tt.setupMock(resolver)
			}

			w := get(setupRateRouter(resolver), "/api/rate"+tt.query)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.check != nil {
				tt.check(t, w.Body.Bytes())
			}
			resolver.AssertExpectations(t)
			if tt.setupMock == nil {
				resolver.AssertNotCalled(t, "Resolve", mock.Anything)
			}
		})
	}
}

func TestListStates(t *testing.T) {
	resolver := new(MockRateResolver)
	resolver.On("States").Return(responses.StatesResponse{
		States: []responses.StateSummary{{Code: "CA", Name: "California", BaseRate: 0.0725}},
		Count:  1,
	})

	w := get(setupRateRouter(resolver), "/api/states")

	require.Equal(t, http.StatusOK, w.Code)
	var resp responses.StatesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "CA", resp.States[0].Code)
	resolver.AssertExpectations(t)
}

func TestGetStateMetadata(t *testing.T) {
	resolver := new(MockRateResolver)
	resolver.On("Metadata", "ca").Return(responses.MetadataResponse{State: "CA", JurisdictionCount: 550}, true)
	resolver.On("Metadata", "zz").Return(responses.MetadataResponse{}, false)
	router := setupRateRouter(resolver)

	w := get(router, "/api/states/ca")
	require.Equal(t, http.StatusOK, w.Code)
	var meta responses.MetadataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, 550, meta.JurisdictionCount)

	w = get(router, "/api/states/zz")
	require.Equal(t, http.StatusNotFound, w.Code)
	var errResp responses.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "No tax data for ZZ", errResp.Message)
}
