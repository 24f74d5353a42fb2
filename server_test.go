package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/winery_ingest/config"
	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/imports"
	"github.com/mmdatafocus/winery_ingest/models"
	"github.com/mmdatafocus/winery_ingest/service"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher map[string][]byte

func (s stubFetcher) Fetch(_ context.Context, bucket, name string) ([]byte, error) {
	data, ok := s[bucket+"/"+name]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return data, nil
}

func testSettings() *config.Settings {
	return &config.Settings{
		Backend:              "memory",
		InvoiceCollection:    models.InvoiceCollection,
		BalanceCollection:    models.BalanceCollection,
		BottleTypeCollection: models.BottleTypeCollection,
		SalesUploadPrefix:    "sales-uploads",
		BalanceUploadPrefix:  "balance-uploads",
		MaxUploadBytes:       1 << 20,
		CommitCeiling:        docstore.DefaultCeiling,
		SearchIndexBatch:     500,
	}
}

func newTestApp(t *testing.T, fetcher stubFetcher) (*App, *docstore.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := docstore.NewMemoryStore()
	settings := testSettings()
	svc := service.New(settings, service.Deps{Store: store}, logger)
	app := &App{
		Service:   svc,
		Processor: &imports.Processor{Router: svc.Router, Fetcher: fetcher, Logger: logger},
		Settings:  settings,
		Logger:    logger,
		SignUpload: func(_ context.Context, bucket, objectKey, contentType string, expires time.Duration) (*utils.SignedUpload, error) {
			return &utils.SignedUpload{
				UploadURL: "https://storage.example/" + objectKey,
				Method:    http.MethodPut,
				Headers:   map[string]string{"Content-Type": contentType},
				Bucket:    "uploads",
				ObjectKey: objectKey,
				ExpiresAt: time.Now().Add(expires),
			}, nil
		},
	}
	return app, store
}

func authorized(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	token, err := utils.JwtGenerate("operator", "admin")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(app *App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	newRouter(app).ServeHTTP(w, req)
	return w
}

type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	app, _ := newTestApp(t, nil)
	w := serve(app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Correlation-Id"))
}

func TestJobsRequireToken(t *testing.T) {
	app, _ := newTestApp(t, nil)
	w := serve(app, httptest.NewRequest(http.MethodPost, "/api/jobs/sync-bottle-types", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", decodeError(t, w).Error.Kind)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/sync-bottle-types", nil)
	req.Header.Set("token", "garbage")
	w = serve(app, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncJobEndpoint(t *testing.T) {
	app, store := newTestApp(t, nil)
	store.Put(models.InvoiceCollection, "i1", map[string]any{models.InvoiceBottleInfo: "750ml"})

	w := serve(app, authorized(t, httptest.NewRequest(http.MethodPost, "/api/jobs/sync-bottle-types", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"bottleTypes synced: 1 added, 0 removed"}`, w.Body.String())
	assert.Equal(t, 1, store.Count(models.BottleTypeCollection))
}

func TestNormalizeEndpoint(t *testing.T) {
	app, store := newTestApp(t, nil)
	store.Put(models.InvoiceCollection, "i1", map[string]any{models.InvoiceBottleInfo: "750 ml"})

	body := `{"oldNames":["750 ml"],"newName":"750ml"}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/normalize-bottle-info", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(app, authorized(t, req))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Updated bottleInfo on 1 records")

	for _, bad := range []string{`{"oldNames":[],"newName":"750ml"}`, `{"oldNames":["a"],"newName":" "}`, `{`} {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/normalize-bottle-info", strings.NewReader(bad))
		req.Header.Set("Content-Type", "application/json")
		w := serve(app, authorized(t, req))
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
		assert.Equal(t, "invalid-argument", decodeError(t, w).Error.Kind)
	}
}

func TestIndexEndpointWithoutIndexer(t *testing.T) {
	app, _ := newTestApp(t, nil)
	w := serve(app, authorized(t, httptest.NewRequest(http.MethodPost, "/api/jobs/index-invoices", nil)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeError(t, w).Error.Kind)
}

func TestJobConflict(t *testing.T) {
	app, _ := newTestApp(t, nil)
	_, release, err := app.Service.Jobs.Locker.Acquire(context.Background(), models.BottleTypeCollection)
	require.NoError(t, err)
	defer release()

	w := serve(app, authorized(t, httptest.NewRequest(http.MethodPost, "/api/jobs/collapse-bottle-types", nil)))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "aborted", decodeError(t, w).Error.Kind)
}

func TestUnknownRoute(t *testing.T) {
	app, _ := newTestApp(t, nil)
	w := serve(app, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not-found", decodeError(t, w).Error.Kind)
}

func TestSignUpload(t *testing.T) {
	app, _ := newTestApp(t, nil)

	body := `{"kind":"balance","fileName":"Aging/March 2024.xlsx","mimeType":"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet","size":2048}`
	req := httptest.NewRequest(http.MethodPost, "/api/uploads/sign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(app, authorized(t, req))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data utils.SignedUpload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Data.ObjectKey, "balance-uploads/"), resp.Data.ObjectKey)
	assert.True(t, strings.HasSuffix(resp.Data.ObjectKey, "-March 2024.xlsx"), resp.Data.ObjectKey)
	assert.Equal(t, http.MethodPut, resp.Data.Method)

	for _, bad := range []string{
		`{"kind":"receipts","fileName":"a.xlsx","mimeType":"text/csv","size":1}`,
		`{"kind":"sales","fileName":"a.png","mimeType":"image/png","size":1}`,
		`{"kind":"sales","fileName":"a.csv","mimeType":"text/csv","size":0}`,
		`{"kind":"sales","fileName":"a.csv","mimeType":"text/csv","size":99999999}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/uploads/sign", strings.NewReader(bad))
		req.Header.Set("Content-Type", "application/json")
		w := serve(app, authorized(t, req))
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func pushBody(t *testing.T, attributes map[string]string, object string) *bytes.Reader {
	t.Helper()
	envelope := map[string]any{
		"message": map[string]any{
			"data":       base64.StdEncoding.EncodeToString([]byte(object)),
			"attributes": attributes,
			"messageId":  "m-1",
		},
		"subscription": "projects/p/subscriptions/uploads",
	}
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestUploadPushImportsSales(t *testing.T) {
	app, store := newTestApp(t, stubFetcher{
		"uploads/sales-uploads/m.csv": []byte("Winery,Quantity,Unit Price\nAlpha,2,\"12,50€\"\n"),
	})

	body := pushBody(t, map[string]string{"eventType": "OBJECT_FINALIZE"},
		`{"bucket":"uploads","name":"sales-uploads/m.csv","generation":"5","contentType":"text/csv"}`)
	w := serve(app, httptest.NewRequest(http.MethodPost, "/pubsub/uploads", body))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, store.Count(models.InvoiceCollection))
}

func TestUploadPushAcksPoisonMessages(t *testing.T) {
	app, store := newTestApp(t, stubFetcher{})

	w := serve(app, httptest.NewRequest(http.MethodPost, "/pubsub/uploads", strings.NewReader("not json")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	body := pushBody(t, map[string]string{"eventType": "OBJECT_FINALIZE"},
		`{"bucket":"uploads","name":"sales-uploads/deleted.csv","generation":"5"}`)
	w = serve(app, httptest.NewRequest(http.MethodPost, "/pubsub/uploads", body))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, store.Count(models.InvoiceCollection))
}

func TestUploadPushRetriesStoreFailures(t *testing.T) {
	app, store := newTestApp(t, stubFetcher{
		"uploads/sales-uploads/m.csv": []byte("Winery\nAlpha\n"),
	})
	store.FailCommit = func(int, []docstore.Op) error { return context.DeadlineExceeded }

	body := pushBody(t, map[string]string{"eventType": "OBJECT_FINALIZE"},
		`{"bucket":"uploads","name":"sales-uploads/m.csv","generation":"5","contentType":"text/csv"}`)
	w := serve(app, httptest.NewRequest(http.MethodPost, "/pubsub/uploads", body))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUploadPushVerificationToken(t *testing.T) {
	app, _ := newTestApp(t, stubFetcher{})
	app.Settings.PubSubVerificationToken = "s3cret"

	w := serve(app, httptest.NewRequest(http.MethodPost, "/pubsub/uploads?token=wrong", strings.NewReader("{}")))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(app, httptest.NewRequest(http.MethodPost, "/pubsub/uploads?token=s3cret", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSUsesConfiguredOriginsInProduction(t *testing.T) {
	app, _ := newTestApp(t, nil)
	app.Settings.GoEnv = "production"
	app.Settings.CORSAllowedOrigins = []string{"https://ops.example"}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://ops.example")
	w := serve(app, req)
	assert.Equal(t, "https://ops.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w = serve(app, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
