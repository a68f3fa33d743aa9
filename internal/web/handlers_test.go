package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/facturador/internal/config"
	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/JonMunkholm/facturador/internal/spreadsheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoicesCSV = "PuntoVenta,Concepto,Descripcion,Cantidad,PrecioUnitario,IVA\n" +
	"3,Producto,Tornillos,10,250,IVA21\n" +
	"3,Producto,Tuercas,5,100,IVA21\n"

type issuerFunc func(ctx context.Context, req core.IssueRequest) (*core.IssueResult, error)

func (f issuerFunc) Issue(ctx context.Context, req core.IssueRequest) (*core.IssueResult, error) {
	return f(ctx, req)
}

func okIssuer() core.Issuer {
	return issuerFunc(func(context.Context, core.IssueRequest) (*core.IssueResult, error) {
		return &core.IssueResult{AuthCode: "74123456789012"}, nil
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, issuer core.Issuer, cfg *config.Config, opts Options) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	svc := core.NewService(core.ServiceConfig{
		Decoder: spreadsheet.New(),
		Issuer:  issuer,
	})
	return NewServer(svc, cfg, opts)
}

func do(t *testing.T, s *Server, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func multipartFile(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.SessionID)
	return snap.SessionID
}

func parseCSV(t *testing.T, s *Server, id string) parseResponse {
	t.Helper()
	body, ct := multipartFile(t, "facturas.csv", invoicesCSV)
	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/parse", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp parseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er), rec.Body.String())
	return er
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	rec := do(t, s, http.MethodGet, "/healthz", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	id := createSession(t, s)

	rec := do(t, s, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/sessions", nil, "")
	assert.Contains(t, rec.Body.String(), id)

	rec = do(t, s, http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BAT004", decodeError(t, rec).Code)
}

func TestParse(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	id := createSession(t, s)

	resp := parseCSV(t, s, id)
	assert.Equal(t, "facturas.csv", resp.FileName)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "Tornillos", resp.Rows[0].Payload.Draft.Item.Description)
	assert.Equal(t, 2, resp.Counts.Pending)
}

func TestParse_Errors(t *testing.T) {
	small := testConfig()
	small.Upload.MaxFileSize = 64

	tests := []struct {
		name   string
		cfg    *config.Config
		body   func(t *testing.T) (*bytes.Buffer, string)
		status int
		code   string
	}{
		{
			name:   "no file",
			body:   func(t *testing.T) (*bytes.Buffer, string) { return bytes.NewBufferString("{}"), "application/json" },
			status: http.StatusBadRequest,
			code:   "FILE004",
		},
		{
			name: "missing headers",
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return multipartFile(t, "otra.csv", "Cliente,Monto\nACME,100\n")
			},
			status: http.StatusUnprocessableEntity,
			code:   "VAL004",
		},
		{
			name: "too large",
			cfg:  small,
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return multipartFile(t, "grande.csv", strings.Repeat(invoicesCSV, 10))
			},
			status: http.StatusRequestEntityTooLarge,
			code:   "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, okIssuer(), tt.cfg, Options{})
			id := createSession(t, s)
			body, ct := tt.body(t)

			rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/parse", body, ct)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestSubmitRow(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	id := createSession(t, s)
	rows := parseCSV(t, s, id).Rows
	path := "/api/sessions/" + id + "/rows/" + rows[0].ID + "/submit"

	rec := do(t, s, http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var row core.ParsedRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, core.StatusSuccess, row.Status)
	assert.Equal(t, "Emitido - CAE 74123456789012", row.Message)

	rec = do(t, s, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "BAT003", decodeError(t, rec).Code)

	rec = do(t, s, http.MethodPost, "/api/sessions/"+id+"/rows/nope/submit", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BAT002", decodeError(t, rec).Code)
}

func TestSubmitRow_RejectedIsNotAnHTTPError(t *testing.T) {
	rejecting := issuerFunc(func(context.Context, core.IssueRequest) (*core.IssueResult, error) {
		return nil, &core.IssueError{Code: "10015", Message: "CUIT del receptor invalido", StatusCode: 422}
	})
	s := newTestServer(t, rejecting, nil, Options{})
	id := createSession(t, s)
	rows := parseCSV(t, s, id).Rows

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/rows/"+rows[1].ID+"/submit", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var row core.ParsedRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, core.StatusError, row.Status)
	assert.Equal(t, "CUIT del receptor invalido", row.Message)
}

func TestSubmitAll_Async(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	id := createSession(t, s)
	parseCSV(t, s, id)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/submit", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"processing"`)

	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, "/api/sessions/"+id, nil, "")
		var snap core.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Counts.Success == 2 && !snap.Busy
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitAll_BusyRejected(t *testing.T) {
	release := make(chan struct{})
	blocking := issuerFunc(func(context.Context, core.IssueRequest) (*core.IssueResult, error) {
		<-release
		return &core.IssueResult{}, nil
	})
	s := newTestServer(t, blocking, nil, Options{})
	id := createSession(t, s)
	rows := parseCSV(t, s, id).Rows

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/submit", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	for _, path := range []string{
		"/api/sessions/" + id + "/submit",
		"/api/sessions/" + id + "/rows/" + rows[1].ID + "/submit",
		"/api/sessions/" + id + "/reset",
	} {
		rec := do(t, s, http.MethodPost, path, nil, "")
		assert.Equal(t, http.StatusConflict, rec.Code, path)
		assert.Equal(t, "BAT001", decodeError(t, rec).Code, path)
	}

	rec = do(t, s, http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	require.Eventually(t, func() bool {
		return do(t, s, http.MethodPost, "/api/sessions/"+id+"/reset", nil, "").Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReset(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	id := createSession(t, s)
	parseCSV(t, s, id)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/reset", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Empty(t, snap.Rows)
	assert.Zero(t, snap.Counts.Total)
}

func TestErrorFormats(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Codigo: BAT004")
}

func TestFormFields(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	rec := do(t, s, http.MethodGet, "/api/form-fields", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fields []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	assert.NotEmpty(t, fields)
}

type fakeAttempts struct {
	gotLimit int
	err      error
}

func (f *fakeAttempts) Attempts(_ context.Context, sessionID string, limit int) ([]core.Attempt, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []core.Attempt{{SessionID: sessionID, Status: core.StatusSuccess, AuthCode: "74"}}, nil
}

func TestAttempts(t *testing.T) {
	lister := &fakeAttempts{}
	s := newTestServer(t, okIssuer(), nil, Options{Attempts: lister})

	rec := do(t, s, http.MethodGet, "/api/sessions/abc/attempts?limit=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, lister.gotLimit)
	assert.Contains(t, rec.Body.String(), `"AuthCode":"74"`)

	lister.err = errors.New("db down")
	rec = do(t, s, http.MethodGet, "/api/sessions/abc/attempts", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ERR000", decodeError(t, rec).Code)
}

func TestOptionalRoutes(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/sessions/abc/attempts", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics", nil, "").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	s = newTestServer(t, okIssuer(), nil, Options{Metrics: metrics})
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/metrics", nil, "").Code)
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	s := newTestServer(t, okIssuer(), cfg, Options{})
	id := createSession(t, s)

	parseCSV(t, s, id)

	body, ct := multipartFile(t, "facturas.csv", invoicesCSV)
	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/parse", body, ct)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not counted against the upload budget.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/sessions/"+id, nil, "").Code)
}

func TestEvents(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	id := createSession(t, s)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/sessions/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	waitLine := func(want string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream ended before %q", want)
				if line == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitLine("event: parsed")

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id, nil)
	require.NoError(t, err)
	delResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	waitLine("event: closed")
}

// An open event stream must not hold up a graceful shutdown.
func TestShutdown_ClosesEventStreams(t *testing.T) {
	s := newTestServer(t, okIssuer(), nil, Options{})
	id := createSession(t, s)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.server = &http.Server{Handler: s.router}
	go s.server.Serve(ln)

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/sessions/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	require.Eventually(t, func() bool {
		select {
		case line := <-lines:
			return line == "event: parsed"
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, s.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second, "shutdown waited on the stream")

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	assert.Contains(t, got, "event: closed")
}
