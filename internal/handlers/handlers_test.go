package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"farm-advisor/internal/advisor"
	"farm-advisor/internal/models"
	"farm-advisor/internal/modelstore"
	"farm-advisor/internal/repository"
	"farm-advisor/internal/services"
	"farm-advisor/migrations"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

const testMaxImageBytes = 1024

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type testServer struct {
	router  http.Handler
	repo    repository.FarmRepository
	metrics *metrics.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx := context.Background()
	logger := logging.NewNop()
	collector := metrics.NewCollector("handlertest", prometheus.NewRegistry())

	db, err := database.Open(&database.Config{
		Driver:         database.DriverSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "handlers.db"),
		MaxIdleConns:   1,
		ConnectRetries: 1,
	}, logger, collector)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migrations.Apply(ctx, db.DB(), database.DriverSQLite, migrations.Up)
	require.NoError(t, err)

	store, err := modelstore.Load(ctx, "../../artifacts", logger)
	require.NoError(t, err)

	predictor, err := advisor.NewFertilizerPredictor(advisor.Vocabulary{
		Soil:       store.Soil,
		Crop:       store.Crop,
		Fertilizer: store.Fertilizer,
	}, store.Model)
	require.NoError(t, err)

	repo := repository.NewFarmRepository(db, logger, collector)
	recs := services.NewRecommendationService(repo, predictor, advisor.NewDiseaseClassifier(rand.NewPCG(1, 2)), logger, collector)
	auth := services.NewAuthService(repo, logger, collector, time.Hour, bcrypt.MinCost)
	farm := services.NewFarmService(repo, logger, collector)
	knowledge, err := services.NewKnowledgeService()
	require.NoError(t, err)

	router := NewRouter(auth, nil, logger, collector,
		NewAdvisoryHandler(recs, testMaxImageBytes, logger, collector),
		NewAuthHandler(auth, logger, collector),
		NewFarmHandler(farm, logger, collector),
		NewKnowledgeHandler(knowledge, logger, collector),
		NewHealthHandler(repo, store.LoadedAt, logger, collector),
	)

	return &testServer{router: router, repo: repo, metrics: collector}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postForm(path string, form url.Values, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func (s *testServer) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func (s *testServer) delete(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

// login registers a user and returns a session token
func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()

	rec := s.postForm("/api/auth/register", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"secret-pass"},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.postForm("/api/auth/login", url.Values{
		"username": {username},
		"password": {"secret-pass"},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func soilForm(n, p, k, temp, hum, ph, rain string) url.Values {
	return url.Values{
		"nitrogen":    {n},
		"phosphorus":  {p},
		"potassium":   {k},
		"temperature": {temp},
		"humidity":    {hum},
		"ph":          {ph},
		"rainfall":    {rain},
	}
}

func fertilizerForm(soil, crop, nitrogen string) url.Values {
	return url.Values{
		"temperature": {"26"},
		"moisture":    {"45"},
		"rainfall":    {"120"},
		"ph":          {"6.5"},
		"nitrogen":    {nitrogen},
		"phosphorus":  {"40"},
		"potassium":   {"40"},
		"carbon":      {"1.0"},
		"soil":        {soil},
		"crop":        {crop},
	}
}

func TestRecommendCrop(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantCrop   string
	}{
		{"neutral low nitrogen", soilForm("0", "0", "0", "0", "0", "5.5", "0"), http.StatusOK, "Millet"},
		{"sugarcane", soilForm("90", "50", "50", "32", "85", "6.5", "50"), http.StatusOK, "Sugarcane"},
		{"acidic cool", soilForm("10", "10", "10", "10", "50", "4.0", "50"), http.StatusOK, "Tea"},
		{"NaN rejected", soilForm("NaN", "0", "0", "0", "0", "6", "0"), http.StatusBadRequest, ""},
		{"non-numeric", soilForm("ten", "0", "0", "0", "0", "6", "0"), http.StatusBadRequest, ""},
		{"missing field", url.Values{"nitrogen": {"10"}}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.postForm("/api/crop-recommendation", tt.form, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus == http.StatusOK {
				resp := decode[CropResponse](t, rec)
				assert.Equal(t, tt.wantCrop, resp.RecommendedCrop)
			} else {
				resp := decode[ErrorResponse](t, rec)
				assert.Equal(t, tt.wantStatus, resp.Code)
			}
		})
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(
		s.metrics.APIRequestsTotal.WithLabelValues("/api/crop-recommendation", "POST", "200")))
}

func TestRecommendFertilizer(t *testing.T) {
	s := newTestServer(t)

	rec := s.postForm("/api/fertilizer-recommendation", fertilizerForm("Loamy Soil", "Wheat", "60"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Balanced NPK Fertilizer", decode[FertilizerResponse](t, rec).RecommendedFertilizer)

	rec = s.postForm("/api/fertilizer-recommendation", fertilizerForm("Loamy Soil", "Wheat", "20"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Urea", decode[FertilizerResponse](t, rec).RecommendedFertilizer)
}

func TestRecommendFertilizer_UnknownLabel(t *testing.T) {
	s := newTestServer(t)

	rec := s.postForm("/api/fertilizer-recommendation", fertilizerForm("Martian Soil", "Wheat", "60"), "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "Martian Soil")

	rec = s.postForm("/api/fertilizer-recommendation", fertilizerForm("Loamy Soil", "", "60"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFertilizerOptions(t *testing.T) {
	s := newTestServer(t)

	rec := s.get("/api/fertilizer-recommendation/options", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[FertilizerOptionsResponse](t, rec)
	assert.Equal(t, []string{"Cotton", "Maize", "Potato", "Rice", "Sugarcane", "Tea", "Wheat"}, resp.Crops)
	assert.Equal(t, []string{"Acidic Soil", "Alkaline Soil", "Loamy Soil", "Neutral Soil", "Peaty Soil"}, resp.Soils)
}

func multipartUpload(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, "leaf.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/disease-detection", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDetectDisease(t *testing.T) {
	s := newTestServer(t)

	catalog := advisor.DiseaseCatalog()

	rec := s.do(multipartUpload(t, ImageField, pngHeader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[DiseaseResponse](t, rec)
	assert.Equal(t, "image/png", resp.ImageType)
	assert.Contains(t, catalog, resp.DiseaseRecord)
}

func TestDetectDisease_AcceptsAnyPayload(t *testing.T) {
	s := newTestServer(t)

	catalog := advisor.DiseaseCatalog()

	tests := []struct {
		name string
		data []byte
	}{
		{"plain text", []byte("just some plain text, not a leaf")},
		{"empty file", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(multipartUpload(t, ImageField, tt.data))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decode[DiseaseResponse](t, rec)
			assert.Contains(t, catalog, resp.DiseaseRecord)
			assert.False(t, strings.HasPrefix(resp.ImageType, "image/"))
		})
	}
}

func TestDetectDisease_Rejections(t *testing.T) {
	s := newTestServer(t)

	oversize := append(append([]byte{}, pngHeader...), make([]byte, testMaxImageBytes)...)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
	}{
		{"too large", multipartUpload(t, ImageField, oversize), http.StatusRequestEntityTooLarge},
		{"missing field", multipartUpload(t, "", nil), http.StatusBadRequest},
		{"wrong field", multipartUpload(t, "photo", pngHeader), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	token := s.login(t, "farmer1")

	rec := s.get("/api/auth/me", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "farmer1", decode[models.User](t, rec).Username)
	assert.NotContains(t, rec.Body.String(), "password")

	// duplicate username
	rec = s.postForm("/api/auth/register", url.Values{
		"username": {"farmer1"},
		"email":    {"other@example.com"},
		"password": {"secret-pass"},
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// invalid email
	rec = s.postForm("/api/auth/register", url.Values{
		"username": {"farmer2"},
		"email":    {"not-an-email"},
		"password": {"secret-pass"},
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.postForm("/api/auth/login", url.Values{
		"username": {"farmer1"},
		"password": {"wrong-pass"},
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.postForm("/api/auth/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the token no longer resolves
	rec = s.get("/api/auth/me", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "farmer1")

	rec := s.postForm("/api/auth/login", url.Values{
		"username": {"farmer1"},
		"password": {"secret-pass"},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie.Value})
	assert.Equal(t, http.StatusOK, s.do(req).Code)
}

func TestUnknownTokenStaysAnonymous(t *testing.T) {
	s := newTestServer(t)

	rec := s.postForm("/api/crop-recommendation", soilForm("0", "0", "0", "0", "0", "5.5", "0"), "no-such-token")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.get("/api/recommendations/history", "no-such-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHistory(t *testing.T) {
	s := newTestServer(t)

	rec := s.get("/api/recommendations/history", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := s.login(t, "farmer1")
	other := s.login(t, "farmer2")

	require.Equal(t, http.StatusOK, s.postForm("/api/crop-recommendation", soilForm("0", "0", "0", "0", "0", "5.5", "0"), token).Code)
	require.Equal(t, http.StatusOK, s.postForm("/api/fertilizer-recommendation", fertilizerForm("Loamy Soil", "Wheat", "20"), token).Code)
	require.Equal(t, http.StatusOK, s.postForm("/api/crop-recommendation", soilForm("0", "0", "0", "0", "0", "5.5", "0"), "").Code)

	rec = s.get("/api/recommendations/history", token)
	require.Equal(t, http.StatusOK, rec.Code)

	history := decode[services.History](t, rec)
	require.Len(t, history.Crops, 1)
	assert.Equal(t, "Millet", history.Crops[0].RecommendedCrop)
	require.Len(t, history.Fertilizers, 1)
	assert.Equal(t, "Urea", history.Fertilizers[0].RecommendedFertilizer)

	rec = s.get("/api/recommendations/history", other)
	require.Equal(t, http.StatusOK, rec.Code)
	history = decode[services.History](t, rec)
	assert.Empty(t, history.Crops)
	assert.Empty(t, history.Fertilizers)
}

func TestHistory_Limit(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "farmer1")

	for i := 0; i < maxHistoryLimit+1; i++ {
		require.Equal(t, http.StatusOK, s.postForm("/api/crop-recommendation", soilForm("0", "0", "0", "0", "0", "5.5", "0"), token).Code)
	}

	rec := s.get("/api/recommendations/history", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[services.History](t, rec).Crops, defaultHistoryLimit)

	rec = s.get("/api/recommendations/history?limit=500", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[services.History](t, rec).Crops, maxHistoryLimit)

	for _, query := range []string{"limit=abc", "limit=0", "limit=-3"} {
		rec = s.get("/api/recommendations/history?"+query, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestCropStats(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.postForm("/api/crop-recommendation", soilForm("0", "0", "0", "0", "0", "5.5", "0"), "").Code)
	}
	require.Equal(t, http.StatusOK, s.postForm("/api/crop-recommendation", soilForm("10", "10", "10", "10", "50", "4.0", "50"), "").Code)

	rec := s.get("/api/recommendations/stats?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Counts []models.CropCount `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Counts, 2)
	assert.Equal(t, "Millet", resp.Counts[0].Crop)
	assert.Equal(t, 2, resp.Counts[0].Count)

	assert.Equal(t, http.StatusBadRequest, s.get("/api/recommendations/stats?days=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/recommendations/stats?days=400", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/recommendations/stats?days=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/recommendations/stats?days=7d", "").Code)
}

func TestDiary(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.get("/api/diary", "").Code)

	owner := s.login(t, "farmer1")
	intruder := s.login(t, "farmer2")

	rec := s.postForm("/api/diary", url.Values{
		"entry_type": {"expense"},
		"date":       {"2024-03-01"},
		"crop":       {"Wheat"},
		"details":    {"seed"},
		"amount":     {"120.5"},
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[models.DiaryEntry](t, rec)
	assert.Equal(t, 120.5, entry.Amount)

	rec = s.postForm("/api/diary", url.Values{"entry_type": {"party"}, "date": {"2024-03-01"}}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.postForm("/api/diary", url.Values{"entry_type": {"note"}, "date": {"01/03/2024"}}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.get("/api/diary", intruder)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.DiaryEntry](t, rec))

	path := "/api/diary/" + jsonInt(entry.ID)
	assert.Equal(t, http.StatusNotFound, s.delete(path, intruder).Code)
	assert.Equal(t, http.StatusNoContent, s.delete(path, owner).Code)
	assert.Equal(t, http.StatusNotFound, s.delete(path, owner).Code)

	assert.Equal(t, http.StatusBadRequest, s.delete("/api/diary/abc", owner).Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/diary?limit=ten", owner).Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/diary?offset=x", owner).Code)
}

func TestTasks(t *testing.T) {
	s := newTestServer(t)

	owner := s.login(t, "farmer1")
	intruder := s.login(t, "farmer2")

	rec := s.postForm("/api/tasks", url.Values{
		"task_name": {"Irrigate north field"},
		"task_date": {"2024-04-10"},
		"task_type": {"irrigation"},
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[models.Task](t, rec)
	assert.False(t, task.IsCompleted)

	rec = s.postForm("/api/tasks", url.Values{"task_date": {"2024-04-10"}}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	completePath := "/api/tasks/" + jsonInt(task.ID) + "/complete"
	assert.Equal(t, http.StatusNotFound, s.postForm(completePath, nil, intruder).Code)
	assert.Equal(t, http.StatusNoContent, s.postForm(completePath, nil, owner).Code)

	rec = s.get("/api/tasks", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]models.Task](t, rec)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsCompleted)

	path := "/api/tasks/" + jsonInt(task.ID)
	assert.Equal(t, http.StatusNotFound, s.delete(path, intruder).Code)
	assert.Equal(t, http.StatusNoContent, s.delete(path, owner).Code)
}

func TestKnowledge(t *testing.T) {
	s := newTestServer(t)

	rec := s.get("/api/knowledge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	index := decode[KnowledgeListResponse](t, rec)
	assert.NotEmpty(t, index.Categories)
	require.NotEmpty(t, index.Articles)
	for _, a := range index.Articles {
		assert.Empty(t, a.Body)
	}

	rec = s.get("/api/knowledge?category=soil", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, a := range decode[KnowledgeListResponse](t, rec).Articles {
		assert.Equal(t, "soil", a.Category)
	}

	slug := index.Articles[0].Slug
	rec = s.get("/api/knowledge/"+slug, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[services.Article](t, rec).Body)

	assert.Equal(t, http.StatusNotFound, s.get("/api/knowledge/no-such-article", "").Code)
}

func TestHealthAndDocs(t *testing.T) {
	s := newTestServer(t)

	rec := s.get("/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	rec = s.get("/api/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]interface{}](t, rec)
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/api/crop-recommendation")
	assert.Contains(t, paths, "/api/disease-detection")

	rec = s.get("/api/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Farm Advisor API Documentation")
}

type failingChecker struct{}

func (failingChecker) HealthCheck(context.Context) error { return assert.AnError }

func TestHealth_DatabaseDown(t *testing.T) {
	logger := logging.NewNop()
	collector := metrics.NewCollector("healthtest", prometheus.NewRegistry())
	h := NewHealthHandler(failingChecker{}, time.Now(), logger, collector)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unreachable", body["database"])
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	rec := s.get("/health", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = s.do(req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func jsonInt(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
