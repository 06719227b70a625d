package httptransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdash/backend/internal/config"
	"opsdash/backend/internal/service"
	"opsdash/backend/internal/storage/memory"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000},
	}
	svc := service.NewEmailService(memory.NewStore(), zap.NewNop())

	return NewRouter(RouterDependencies{
		Config:       cfg,
		EmailService: svc,
		Logger:       zap.NewNop(),
	})
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListEmails_EmptyStore(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodGet, "/api/emails", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"emails":[]}`, rec.Body.String())
}

func TestIngestEmails_Success(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/api/emails",
		`[{"id":"e1","subject":"a"},{"id":"e2","subject":"b"}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string           `json:"message"`
		Emails  []map[string]any `json:"emails"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2 email(s) processed.", resp.Message)
	require.Len(t, resp.Emails, 2)

	// Records are visible on a subsequent list
	rec = doJSON(router, http.MethodGet, "/api/emails", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Emails []map[string]any `json:"emails"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Emails, 2)
}

func TestIngestEmails_EmptyArray(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/api/emails", `[]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"No email data provided."}`, rec.Body.String())
}

func TestIngestEmails_InvalidShape(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/api/emails", `"just a string"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Issues  []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid email payload", resp.Message)
	require.NotEmpty(t, resp.Issues)
	assert.Equal(t, "(root)", resp.Issues[0].Field)
}

func TestIngestEmails_MalformedJSON(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/api/emails", `{"unterminated`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid email payload", resp.Message)
}

func TestIngestEmails_NumericMessageIDPreserved(t *testing.T) {
	router := newTestRouter()

	// Large enough to lose precision if decoded as float64
	rec := doJSON(router, http.MethodPost, "/api/emails",
		`{"message_id": 99887766554433221}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"99887766554433221"`)
}

func TestApplyAction_Archive(t *testing.T) {
	router := newTestRouter()
	doJSON(router, http.MethodPost, "/api/emails", `{"id":"e1","is_read":false}`)

	rec := doJSON(router, http.MethodPost, "/api/emails/e1/actions", `{"action":"archive"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string         `json:"message"`
		Email   map[string]any `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Email archived.", resp.Message)
	require.NotNil(t, resp.Email)
	assert.Equal(t, true, resp.Email["is_archived"])
	assert.Equal(t, true, resp.Email["is_read"])
}

func TestApplyAction_Reply(t *testing.T) {
	router := newTestRouter()
	doJSON(router, http.MethodPost, "/api/emails", `{"id":"e1"}`)

	rec := doJSON(router, http.MethodPost, "/api/emails/e1/actions",
		`{"action":"reply","replyBody":"on it"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string         `json:"message"`
		Email   map[string]any `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Reply sent.", resp.Message)
	assert.Equal(t, "on it", resp.Email["last_reply_body"])
	assert.Equal(t, true, resp.Email["is_read"])
}

func TestApplyAction_ReplyBodyStoredVerbatim(t *testing.T) {
	router := newTestRouter()
	doJSON(router, http.MethodPost, "/api/emails", `{"id":"e1"}`)

	// Surrounding whitespace is part of the supplied text, not trimmed away
	rec := doJSON(router, http.MethodPost, "/api/emails/e1/actions",
		`{"action":"reply","replyBody":"  spaced out  "}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Email map[string]any `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "  spaced out  ", resp.Email["last_reply_body"])
}

func TestApplyAction_ReplyWithoutBody(t *testing.T) {
	router := newTestRouter()
	doJSON(router, http.MethodPost, "/api/emails", `{"id":"e1","is_read":false}`)

	rec := doJSON(router, http.MethodPost, "/api/emails/e1/actions", `{"action":"reply"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Reply body is required for the reply action."}`, rec.Body.String())

	// Target record is untouched
	list := doJSON(router, http.MethodGet, "/api/emails", "")
	assert.Contains(t, list.Body.String(), `"is_read":false`)
}

func TestApplyAction_Delete(t *testing.T) {
	router := newTestRouter()
	doJSON(router, http.MethodPost, "/api/emails", `{"id":"e1"}`)

	rec := doJSON(router, http.MethodPost, "/api/emails/e1/actions", `{"action":"delete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Email deleted.","email":null}`, rec.Body.String())

	list := doJSON(router, http.MethodGet, "/api/emails", "")
	assert.JSONEq(t, `{"emails":[]}`, list.Body.String())

	// Deleting again does not error
	rec = doJSON(router, http.MethodPost, "/api/emails/e1/actions", `{"action":"delete"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyAction_UnknownAction(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/api/emails/e1/actions", `{"action":"snooze"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Issues  []struct {
			Field string `json:"field"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid action payload", resp.Message)
	require.NotEmpty(t, resp.Issues)
	assert.Equal(t, "action", resp.Issues[0].Field)
}

func TestApplyAction_MissingIDToleratedNoop(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/api/emails/never-seen/actions", `{"action":"archive"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Email archived.","email":null}`, rec.Body.String())
}

func TestLegacyWebhookRouteParity(t *testing.T) {
	payload := `{"id":"p1","received_date":"2024-01-01T00:00:00.000Z","subject":"s"}`

	modern := doJSON(newTestRouter(), http.MethodPost, "/api/emails", payload)
	legacy := doJSON(newTestRouter(), http.MethodPost, "/api/n8n-webhook", payload)

	require.Equal(t, modern.Code, legacy.Code)
	assert.JSONEq(t, modern.Body.String(), legacy.Body.String())

	// The legacy GET alias serves the same list
	router := newTestRouter()
	doJSON(router, http.MethodPost, "/api/n8n-webhook", payload)
	viaModern := doJSON(router, http.MethodGet, "/api/emails", "")
	viaLegacy := doJSON(router, http.MethodGet, "/api/n8n-webhook", "")
	assert.JSONEq(t, viaModern.Body.String(), viaLegacy.Body.String())

	// Actions alias behaves identically too
	rec := doJSON(router, http.MethodPost, "/api/n8n-webhook/p1/actions", `{"action":"archive"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email archived.")
}
