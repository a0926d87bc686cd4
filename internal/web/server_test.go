package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consulta/internal/auth"
	"consulta/internal/config"
	"consulta/internal/dataset"
	"consulta/internal/query"
	"consulta/internal/schema"
	"consulta/internal/storage"
)

const sampleCSV = "DNI,Fecha,Nombre,Turno\n" +
	"12345678,07/03/2024,Ana,mañana\n" +
	"87654321,07/03/2024,Luis,tarde\n" +
	"12345678,08/03/2024,Ana,tarde\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
		},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
		Auth: config.AuthConfig{
			Secret:   "test-secret",
			TokenTTL: time.Hour,
		},
		Rate:    config.RateLimitConfig{Enabled: false},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

// newTestServer builds a full server over a throwaway database and returns
// it with a valid admin bearer token.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := auth.NewStore(db)
	require.NoError(t, users.EnsureAdmin(ctx, "admin-password"))

	schemaStore, err := schema.NewStore(ctx, db)
	require.NoError(t, err)

	cfg := testConfig()
	tables := dataset.NewStore()
	tokens := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	srv := NewServer(cfg, Deps{
		Users:   users,
		Tokens:  tokens,
		Tables:  tables,
		Archive: dataset.NewArchive(db),
		Schema:  schemaStore,
		Engine:  query.New(tables, schemaStore),
	})

	token, err := tokens.Issue("admin", auth.RoleAdmin)
	require.NoError(t, err)
	return srv, token
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadFile(t *testing.T, srv *Server, token, filename, body string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	part, err := mp.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &buf)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func configureSample(t *testing.T, srv *Server, token string) {
	t.Helper()

	rec := uploadFile(t, srv, token, "padron.csv", sampleCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/admin/config", token, schema.Config{
		IdentifierColumn: "DNI",
		DateColumn:       "Fecha",
		VisibleColumns:   []string{"Nombre", "Turno"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ana", "password": "long-enough-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ana", "password": "long-enough-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, auth.RoleUser, body["role"])
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ana", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AUTH_WEAK_PASSWORD", decodeBody[ErrorResponse](t, rec).Code)
}

func TestRegisterDuplicate(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := map[string]string{"username": "ana", "password": "long-enough-password"}

	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/auth/register", "", payload).Code)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AUTH_USER_EXISTS", decodeBody[ErrorResponse](t, rec).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", decodeBody[ErrorResponse](t, rec).Code)
}

func TestLoginAcceptsFormEncoding(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString("username=admin&password=admin-password"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/admin/config", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/admin/config", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	srv, _ := newTestServer(t)

	userToken, err := srv.deps.Tokens.Issue("ana", auth.RoleUser)
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodGet, "/api/admin/config", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUploadConfigureQuery(t *testing.T) {
	srv, token := newTestServer(t)
	configureSample(t, srv, token)

	rec := doJSON(t, srv, http.MethodPost, "/api/query", "", map[string]string{
		"identifier": "12345678", "date": "07/03/2024",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows := decodeBody[[]map[string]string](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{"Nombre": "Ana", "Turno": "mañana"}, rows[0])
}

func TestQueryNoMatch(t *testing.T) {
	srv, token := newTestServer(t)
	configureSample(t, srv, token)

	rec := doJSON(t, srv, http.MethodPost, "/api/query", "", map[string]string{
		"identifier": "12345678", "date": "09/03/2024",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "QRY_NOT_FOUND", decodeBody[ErrorResponse](t, rec).Code)
}

func TestQueryWithoutDataset(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/query", "", map[string]string{
		"identifier": "12345678", "date": "07/03/2024",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SYS_NO_DATA", decodeBody[ErrorResponse](t, rec).Code)
}

func TestQueryUnconfiguredIsGeneric(t *testing.T) {
	srv, token := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadFile(t, srv, token, "padron.csv", sampleCSV).Code)

	rec := doJSON(t, srv, http.MethodPost, "/api/query", "", map[string]string{
		"identifier": "12345678", "date": "07/03/2024",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The public response must not leak column names.
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "CFG_INCOMPLETE", body.Code)
	assert.NotContains(t, body.Error, "DNI")
	assert.NotContains(t, body.Error, "Fecha")
}

func TestQueryMissingFields(t *testing.T) {
	srv, token := newTestServer(t)
	configureSample(t, srv, token)

	rec := doJSON(t, srv, http.MethodPost, "/api/query", "", map[string]string{"identifier": "12345678"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	srv, token := newTestServer(t)

	rec := uploadFile(t, srv, token, "notes.txt", "not tabular")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UPL_BAD_TYPE", decodeBody[ErrorResponse](t, rec).Code)

	rec = uploadFile(t, srv, token, "broken.xlsx", "this is not a workbook")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UPL_PARSE", decodeBody[ErrorResponse](t, rec).Code)
}

func TestUploadKeepsOldDatasetOnFailure(t *testing.T) {
	srv, token := newTestServer(t)
	configureSample(t, srv, token)

	rec := uploadFile(t, srv, token, "broken.xlsx", "garbage")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The previous dataset still answers queries.
	rec = doJSON(t, srv, http.MethodPost, "/api/query", "", map[string]string{
		"identifier": "12345678", "date": "07/03/2024",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadHistory(t *testing.T) {
	srv, token := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadFile(t, srv, token, "v1.csv", "A\n1\n").Code)
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, http.StatusOK, uploadFile(t, srv, token, "v2.csv", "B\n2\n").Code)

	rec := doJSON(t, srv, http.MethodGet, "/api/admin/uploads", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	records := decodeBody[[]dataset.Record](t, rec)
	require.Len(t, records, 2)
	assert.Equal(t, "v2.csv", records[0].Filename)
}

func TestSetConfigValidation(t *testing.T) {
	srv, token := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadFile(t, srv, token, "padron.csv", sampleCSV).Code)

	rec := doJSON(t, srv, http.MethodPost, "/api/admin/config", token, schema.Config{
		IdentifierColumn: "Documento",
		DateColumn:       "Fecha",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CFG_INVALID", decodeBody[ErrorResponse](t, rec).Code)
}

func TestGetConfig(t *testing.T) {
	srv, token := newTestServer(t)
	configureSample(t, srv, token)

	rec := doJSON(t, srv, http.MethodGet, "/api/admin/config", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cfg := decodeBody[schema.Config](t, rec)
	assert.Equal(t, "DNI", cfg.IdentifierColumn)
	assert.Equal(t, []string{"Nombre", "Turno"}, cfg.VisibleColumns)
}

func TestSuggestions(t *testing.T) {
	srv, token := newTestServer(t)
	configureSample(t, srv, token)

	rec := doJSON(t, srv, http.MethodGet, "/api/admin/suggestions?fragment=1234", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"12345678", "12345678"}, decodeBody[[]string](t, rec))

	rec = doJSON(t, srv, http.MethodGet, "/api/admin/suggestions?fragment=zzz", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]string](t, rec))
}

func TestRecordView(t *testing.T) {
	srv, token := newTestServer(t)
	configureSample(t, srv, token)

	rec := doJSON(t, srv, http.MethodGet, "/api/admin/record?identifier=12345678", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	record := decodeBody[map[string]string](t, rec)
	// Full row: includes columns hidden from the public projection.
	assert.Equal(t, "12345678", record["DNI"])
	assert.Equal(t, "Ana", record["Nombre"])
}

func TestQueryRateLimit(t *testing.T) {
	srv, token := newTestServer(t)
	srv.cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1000, QueriesPerMinute: 2}

	// Rebuild routing with the limiter enabled.
	rebuilt := NewServer(srv.cfg, srv.deps)
	configureSample(t, rebuilt, token)

	payload := map[string]string{"identifier": "12345678", "date": "07/03/2024"}
	assert.Equal(t, http.StatusOK, doJSON(t, rebuilt, http.MethodPost, "/api/query", "", payload).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, rebuilt, http.MethodPost, "/api/query", "", payload).Code)

	rec := doJSON(t, rebuilt, http.MethodPost, "/api/query", "", payload)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
