package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	grpchealth "connectrpc.com/grpchealth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"hackathonhub.shikanime.studio/internal/database"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/ingest"
	"hackathonhub.shikanime.studio/internal/metrics"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeCatalog struct{ mock.Mock }

func (f *fakeCatalog) ListHackathons(ctx context.Context, fl hackathon.Filters) ([]hackathon.Record, int, error) {
	ret := f.Called(ctx, fl)
	return ret.Get(0).([]hackathon.Record), ret.Int(1), ret.Error(2)
}

func (f *fakeCatalog) GetHackathon(ctx context.Context, id string) (hackathon.Record, error) {
	ret := f.Called(ctx, id)
	return ret.Get(0).(hackathon.Record), ret.Error(1)
}

func (f *fakeCatalog) GetStats(ctx context.Context) (hackathon.Stats, error) {
	ret := f.Called(ctx)
	return ret.Get(0).(hackathon.Stats), ret.Error(1)
}

func (f *fakeCatalog) SearchContext(ctx context.Context, q string, md map[string]any, limit int) ([]hackathon.Record, error) {
	ret := f.Called(ctx, q, md, limit)
	return ret.Get(0).([]hackathon.Record), ret.Error(1)
}

type fakeIngestor struct{ mock.Mock }

func (f *fakeIngestor) Run(ctx context.Context, url string, p hackathon.Provider) (ingest.Report, error) {
	ret := f.Called(ctx, url, p)
	return ret.Get(0).(ingest.Report), ret.Error(1)
}

func (f *fakeIngestor) Providers() []hackathon.Provider {
	return []hackathon.Provider{hackathon.ProviderDevpost, hackathon.ProviderQuira, hackathon.ProviderTopcoder}
}

type fakeSources struct{ mock.Mock }

func (f *fakeSources) List(ctx context.Context) ([]hackathon.Source, error) {
	ret := f.Called(ctx)
	return ret.Get(0).([]hackathon.Source), ret.Error(1)
}

func (f *fakeSources) Create(ctx context.Context, src hackathon.Source) (hackathon.Source, error) {
	ret := f.Called(ctx, src)
	return ret.Get(0).(hackathon.Source), ret.Error(1)
}

func (f *fakeSources) Update(ctx context.Context, p hackathon.Provider, patch hackathon.SourcePatch) (hackathon.Source, error) {
	ret := f.Called(ctx, p, patch)
	return ret.Get(0).(hackathon.Source), ret.Error(1)
}

func (f *fakeSources) Delete(ctx context.Context, p hackathon.Provider) error {
	return f.Called(ctx, p).Error(0)
}

func (f *fakeSources) FetchFromSource(ctx context.Context, p hackathon.Provider) (ingest.Outcome, error) {
	ret := f.Called(ctx, p)
	return ret.Get(0).(ingest.Outcome), ret.Error(1)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	catalog  *fakeCatalog
	ingestor *fakeIngestor
	sources  *fakeSources
	router   *gin.Engine
}

func newFixture(ping error) *fixture {
	f := &fixture{catalog: new(fakeCatalog), ingestor: new(fakeIngestor), sources: new(fakeSources)}
	reg := prometheus.NewRegistry()
	metrics.New("test", reg).AddRecords("quira", "inserted", 2)
	f.router = NewRouter(Deps{
		Catalog:     f.catalog,
		Ingestor:    f.ingestor,
		Sources:     f.sources,
		Pinger:      pingFunc(func(context.Context) error { return ping }),
		Gatherer:    reg,
		CORSOrigins: []string{"http://localhost:3000"},
	})
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *stdhttp.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestListHackathons(t *testing.T) {
	f := newFixture(nil)
	want := hackathon.Filters{Search: "ai", Status: hackathon.StatusOngoing, Type: hackathon.TypeOnline, Limit: 5, Offset: 10}
	f.catalog.On("ListHackathons", mock.Anything, want).
		Return([]hackathon.Record{{ID: "dp-1", Title: "AI Jam", Tags: []string{}}}, 12, nil)

	w := f.do("GET", "/api/hackathons?search=ai&status=Ongoing&type=online&limit=5&offset=10", "")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":12`)
	assert.Contains(t, w.Body.String(), `"title":"AI Jam"`)

	w = f.do("GET", "/api/hackathons?limit=abc", "")
	assert.Equal(t, stdhttp.StatusBadRequest, w.Code)
}

func TestListHackathonsEmpty(t *testing.T) {
	f := newFixture(nil)
	f.catalog.On("ListHackathons", mock.Anything, hackathon.Filters{}).Return([]hackathon.Record(nil), 0, nil)

	w := f.do("GET", "/api/hackathons", "")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"hackathons":[],"total":0}`, w.Body.String())
}

func TestGetStats(t *testing.T) {
	f := newFixture(nil)
	f.catalog.On("GetStats", mock.Anything).Return(hackathon.Stats{Total: 16, Upcoming: 2, Ongoing: 8, Ended: 5, TotalPrize: 3500}, nil)

	w := f.do("GET", "/api/hackathons/stats", "")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":16,"upcoming":2,"ongoing":8,"ended":5,"totalPrize":3500,"totalPrizeDisplay":"$3,500"}`, w.Body.String())
}

func TestGetHackathon(t *testing.T) {
	f := newFixture(nil)
	f.catalog.On("GetHackathon", mock.Anything, "tc-1").Return(hackathon.Record{ID: "tc-1"}, nil)
	f.catalog.On("GetHackathon", mock.Anything, "nope").Return(hackathon.Record{}, database.ErrNotFound)
	f.catalog.On("GetHackathon", mock.Anything, "boom").Return(hackathon.Record{}, errors.New("conn reset"))

	assert.Equal(t, stdhttp.StatusOK, f.do("GET", "/api/hackathons/tc-1", "").Code)
	w := f.do("GET", "/api/hackathons/nope", "")
	assert.Equal(t, stdhttp.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Hackathon not found"}`, w.Body.String())
	assert.Equal(t, stdhttp.StatusInternalServerError, f.do("GET", "/api/hackathons/boom", "").Code)
}

func TestFetchHackathons(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		report ingest.Report
		err    error
		code   int
		want   string
	}{
		{
			name: "missing fields",
			body: `{"url":"https://devpost.com/api/hackathons"}`,
			code: stdhttp.StatusBadRequest,
			want: `{"error":"URL and sourceName are required"}`,
		},
		{
			name: "unknown provider",
			body: `{"url":"u","sourceName":"Eventbrite"}`,
			code: stdhttp.StatusBadRequest,
			want: `{"provider":"eventbrite","success":false,"count":0,"message":"Unknown source: Eventbrite"}`,
		},
		{
			name:   "inserted",
			body:   `{"url":"u","sourceName":"Devpost"}`,
			report: ingest.Report{Inserted: 4},
			code:   stdhttp.StatusOK,
			want:   `{"provider":"devpost","success":true,"count":4,"message":"Hackathons fetched and stored successfully"}`,
		},
		{
			name:   "fetch failure",
			body:   `{"url":"u","sourceName":"devpost"}`,
			report: ingest.Report{FetchErr: &ingest.FetchError{URL: "u", StatusCode: 503}},
			code:   stdhttp.StatusOK,
			want:   `{"provider":"devpost","success":false,"count":0,"message":"Failed to fetch hackathons: fetch u: unexpected status 503"}`,
		},
		{
			name: "storage failure",
			body: `{"url":"u","sourceName":"devpost"}`,
			err:  errors.New("disk full"),
			code: stdhttp.StatusInternalServerError,
			want: `{"provider":"devpost","success":false,"count":0,"message":"Failed to fetch and store hackathons: disk full"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			f.ingestor.On("Run", mock.Anything, "u", hackathon.ProviderDevpost).Return(tt.report, tt.err)

			w := f.do("POST", "/api/hackathons/fetch", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestSources(t *testing.T) {
	f := newFixture(nil)
	f.sources.On("List", mock.Anything).Return([]hackathon.Source{{ID: 1, Name: "Quira", Provider: hackathon.ProviderQuira}}, nil)
	f.sources.On("Create", mock.Anything, hackathon.Source{Name: "Devpost", URL: "d", Provider: "devpost", IsActive: true}).
		Return(hackathon.Source{ID: 2, Name: "Devpost"}, nil)
	f.sources.On("Create", mock.Anything, hackathon.Source{Name: "Quira", URL: "q", Provider: "quira", IsActive: false}).
		Return(hackathon.Source{}, database.ErrAlreadyExists)
	f.sources.On("Create", mock.Anything, hackathon.Source{IsActive: true}).
		Return(hackathon.Source{}, ingest.ErrInvalidSource)
	f.sources.On("Delete", mock.Anything, hackathon.ProviderTopcoder).Return(database.ErrNotFound)
	f.sources.On("Delete", mock.Anything, hackathon.ProviderQuira).Return(nil)

	w := f.do("GET", "/api/sources", "")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Quira"`)

	assert.Equal(t, stdhttp.StatusCreated, f.do("POST", "/api/sources", `{"name":"Devpost","url":"d","provider":"devpost"}`).Code)
	assert.Equal(t, stdhttp.StatusConflict, f.do("POST", "/api/sources", `{"name":"Quira","url":"q","provider":"quira","isActive":false}`).Code)
	assert.Equal(t, stdhttp.StatusBadRequest, f.do("POST", "/api/sources", `{}`).Code)
	assert.Equal(t, stdhttp.StatusNotFound, f.do("DELETE", "/api/sources/topcoder", "").Code)
	assert.Equal(t, stdhttp.StatusNoContent, f.do("DELETE", "/api/sources/Quira", "").Code)
}

func TestUpdateSource(t *testing.T) {
	f := newFixture(nil)
	f.sources.On("Update", mock.Anything, hackathon.ProviderDevpost, mock.MatchedBy(func(p hackathon.SourcePatch) bool {
		return p.Name == nil && p.URL == nil && p.IsActive != nil && !*p.IsActive
	})).Return(hackathon.Source{Provider: hackathon.ProviderDevpost}, nil)

	w := f.do("PUT", "/api/sources/devpost", `{"isActive":false}`)
	assert.Equal(t, stdhttp.StatusOK, w.Code)
	f.sources.AssertExpectations(t)
}

func TestFetchFromSource(t *testing.T) {
	f := newFixture(nil)
	ok := ingest.Outcome{Provider: hackathon.ProviderQuira, Success: true, Count: 3, Message: "Successfully fetched 3 hackathons from Quira"}
	f.sources.On("FetchFromSource", mock.Anything, hackathon.ProviderQuira).Return(ok, nil)
	f.sources.On("FetchFromSource", mock.Anything, hackathon.ProviderDevpost).
		Return(ingest.Outcome{Provider: hackathon.ProviderDevpost, Message: "Failed to fetch from source: database: not found"}, database.ErrNotFound)

	w := f.do("POST", "/api/sources/quira/fetch", "")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider":"quira","success":true,"count":3,"message":"Successfully fetched 3 hackathons from Quira"}`, w.Body.String())

	w = f.do("POST", "/api/sources/devpost/fetch", "")
	assert.Equal(t, stdhttp.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestChatContext(t *testing.T) {
	f := newFixture(nil)
	f.catalog.On("SearchContext", mock.Anything, "online AI events?", map[string]any{"type": "online"}, 3).
		Return([]hackathon.Record{{ID: "quira-1"}}, nil)

	w := f.do("POST", "/api/chat/context", `{"message":"online AI events?","metadata":{"type":"online"},"limit":3}`)
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"quira-1"`)

	assert.Equal(t, stdhttp.StatusBadRequest, f.do("POST", "/api/chat/context", `{"message":"  "}`).Code)
}

func TestHealth(t *testing.T) {
	w := newFixture(nil).do("GET", "/api/health", "")
	assert.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OK"`)

	w = newFixture(errors.New("database connection not available")).do("GET", "/api/health", "")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := newFixture(nil).do("GET", "/metrics", "")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_ingested_records_total{provider="quira",result="inserted"} 2`)
}

func TestCORS(t *testing.T) {
	f := newFixture(nil)
	req := httptest.NewRequest("OPTIONS", "/api/hackathons", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthChecker(t *testing.T) {
	up := HealthChecker{pinger: pingFunc(func(context.Context) error { return nil })}
	down := HealthChecker{pinger: pingFunc(func(context.Context) error { return errors.New("down") })}

	resp, err := up.Check(t.Context(), &grpchealth.CheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpchealth.StatusServing, resp.Status)

	resp, err = down.Check(t.Context(), &grpchealth.CheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpchealth.StatusNotServing, resp.Status)

	_, err = up.Check(t.Context(), &grpchealth.CheckRequest{Service: "other"})
	assert.Error(t, err)
}
