package edgelog

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// middlewareHarness wires a gin engine with the middleware under test and a
// capturing logger, so assertions run against assembled entries.
func middlewareHarness(cfg *Config) (*gin.Engine, *Masker, *captureFormatter) {
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.EnableSensitivePathsProcessor = true
	}

	m := NewMasker(cfg)
	logger, cf := captureLogger()

	r := gin.New()
	r.Use(RequestLogger(
		WithMiddlewareLogger(logger),
		WithMiddlewareMasker(m),
	))

	return r, m, cf
}

func TestMiddlewareLogsBothEdges(t *testing.T) {
	r, _, cf := middlewareHarness(nil)

	r.GET("/things", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things?page=2", nil))

	require.Len(t, cf.entries, 2)

	start := cf.entries[0]
	assert.Equal(t, "INCOMING (start): GET /things", start.Message)
	assert.Equal(t, EdgeStart, start.Edge)
	assert.Equal(t, map[string]any{"page": []any{"2"}}, start.Request["GET"])

	end := cf.entries[1]
	assert.Equal(t, "INCOMING (end): GET /things (200)", end.Message)
	assert.Equal(t, 200, end.Response["status_code"])
}

func TestMiddlewareMasksJSONBody(t *testing.T) {
	r, m, cf := middlewareHarness(nil)
	m.RegisterGlobal("creds", NewSensitivePaths("credentials/password"))

	r.POST("/login", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	body := `{"credentials": {"username": "gopher", "password": "hunter2"}}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, cf.entries, 2)

	data, ok := cf.entries[1].Request["data"].(map[string]any)
	require.True(t, ok)

	creds := data["credentials"].(map[string]any)
	assert.Equal(t, "gopher", creds["username"])
	assert.Equal(t, MaskString, creds["password"])

	// The handler must still receive the original body; the masked copy is
	// log-only. A 204 means ShouldBindJSON-free handler ran fine.
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMiddlewareFormBody(t *testing.T) {
	r, m, cf := middlewareHarness(nil)
	m.RegisterGlobal("form", NewSensitivePaths("password"))

	var handlerSawForm string

	r.POST("/login", func(c *gin.Context) {
		handlerSawForm = c.PostForm("password")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("user=gopher&password=hunter2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Body restored for the handler.
	assert.Equal(t, "hunter2", handlerSawForm)

	require.Len(t, cf.entries, 2)

	form, ok := cf.entries[1].Request["POST"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"gopher"}, form["user"])
	assert.Equal(t, []any{MaskString}, form["password"])
}

func TestMiddlewareRawBody(t *testing.T) {
	postBlob := func(r *gin.Engine, body string) {
		r.POST("/blob", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/blob", strings.NewReader(body))
		req.Header.Set("Content-Type", "text/plain")

		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	t.Run("query-shaped body is masked", func(t *testing.T) {
		r, m, cf := middlewareHarness(nil)
		m.RegisterGlobal("password", NewSensitivePaths("password"))

		postBlob(r, "password=hunter2&user=bob")

		require.Len(t, cf.entries, 2)

		data, ok := cf.entries[1].Request["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "password=%2A%2A%2A+masked+%2A%2A%2A&user=bob", data["raw_body"])
	})

	t.Run("prose body left unchanged by default", func(t *testing.T) {
		r, _, cf := middlewareHarness(nil)

		postBlob(r, "plain text payload")

		require.Len(t, cf.entries, 2)

		data, ok := cf.entries[1].Request["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "plain text payload", data["raw_body"])
	})

	t.Run("prose body masked with text fallback", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnableSensitivePathsProcessor = true
		cfg.PreferTextFallbackMasking = true

		r, _, cf := middlewareHarness(cfg)

		postBlob(r, "plain text payload")

		require.Len(t, cf.entries, 2)

		data, ok := cf.entries[1].Request["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, MaskString, data["raw_body"])
	})
}

func TestMiddlewareBlocklist(t *testing.T) {
	r, _, cf := middlewareHarness(nil)

	r.GET("/admin/users", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cf.entries)
}

func TestMiddlewareDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableLoggingMiddleware = false

	r, _, cf := middlewareHarness(cfg)

	r.GET("/things", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cf.entries)
}

func TestMiddlewareResponseBodyCapture(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogResponseContent = true

	r, _, cf := middlewareHarness(cfg)

	r.GET("/things", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"count": 3})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things", nil))

	require.Len(t, cf.entries, 2)

	data, ok := cf.entries[1].Response["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), data["count"])

	// The client still gets the body.
	assert.JSONEq(t, `{"count": 3}`, w.Body.String())
}

func TestMiddlewareHandlerHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableSensitivePathsProcessor = true
	cfg.LogResponseContent = true

	r, m, cf := middlewareHarness(cfg)
	m.Register("per-request", NewSensitivePaths("secret"))

	r.POST("/mixed", func(c *gin.Context) {
		SetNotes(c, map[string]any{"tenant": "acme"})
		ApplyMasks(c, "per-request")
		SkipResponseBody(c)

		c.JSON(http.StatusOK, gin.H{"private": true})
	})

	body := `{"secret": "hide me", "public": "show me"}`
	req := httptest.NewRequest(http.MethodPost, "/mixed", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, cf.entries, 2)
	end := cf.entries[1]

	assert.Equal(t, map[string]any{"tenant": "acme"}, end.Notes)

	data := end.Request["data"].(map[string]any)
	assert.Equal(t, MaskString, data["secret"])
	assert.Equal(t, "show me", data["public"])

	respData := end.Response["data"].(map[string]any)
	assert.Contains(t, respData, notLoggedKey)
}

func TestMiddlewareHandlerError(t *testing.T) {
	r, _, cf := middlewareHarness(nil)

	r.GET("/broken", func(c *gin.Context) {
		c.AbortWithError(http.StatusInternalServerError, assert.AnError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))

	require.Len(t, cf.entries, 2)

	end := cf.entries[1]
	assert.Equal(t, string(LogLevelError), end.Severity)
	assert.Error(t, end.Err)
	assert.Equal(t, 500, end.Response["status_code"])
}

func TestMiddlewarePanicLogged(t *testing.T) {
	cfg := DefaultConfig()
	m := NewMasker(cfg)
	logger, cf := captureLogger()

	// Recovery sits outside the request logger, so the END entry goes out
	// before the panic is turned into a 500.
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(
		WithMiddlewareLogger(logger),
		WithMiddlewareMasker(m),
	))

	r.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	require.Len(t, cf.entries, 2)

	end := cf.entries[1]
	assert.Equal(t, string(LogLevelError), end.Severity)
	assert.EqualError(t, end.Err, "panic: kaboom")
}

func TestMiddlewareMultipartFileList(t *testing.T) {
	r, _, cf := middlewareHarness(nil)

	r.POST("/upload", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	body, contentType := multipartBody(t, map[string]string{"comment": "hello"}, []string{"report.pdf", "data.csv"})

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, cf.entries, 2)

	data, ok := cf.entries[1].Request["data"].(map[string]any)
	require.True(t, ok)

	files, ok := data["file_list"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"report.pdf", "data.csv"}, files)

	form, ok := cf.entries[1].Request["POST"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"hello"}, form["comment"])
}

func multipartBody(t *testing.T, fields map[string]string, fileNames []string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	for _, name := range fileNames {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)

		_, err = fw.Write([]byte("file content"))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}
