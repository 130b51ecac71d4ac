package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/emotune/internal/account"
	"github.com/your-org/emotune/internal/models"
	"github.com/your-org/emotune/internal/recommend"
	"github.com/your-org/emotune/internal/vision"
	"github.com/your-org/emotune/pkg/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

// --- Accounts ---

type fakeAccounts struct {
	err   error
	acc   *models.Account
	token string
	found bool
}

func (f *fakeAccounts) Register(context.Context, string, string) (*models.Account, error) {
	return f.acc, f.err
}

func (f *fakeAccounts) Login(context.Context, string, string) (*models.Account, error) {
	return f.acc, f.err
}

func (f *fakeAccounts) RequestReset(context.Context, string) (string, bool, error) {
	return f.token, f.found, f.err
}

func (f *fakeAccounts) ResetPassword(context.Context, string, string) error {
	return f.err
}

func accountRouter(svc AccountService) *gin.Engine {
	h := NewAccountHandler(svc)
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/request-reset", h.RequestReset)
	r.POST("/reset-password", h.ResetPassword)
	return r
}

func TestAccountRoutes(t *testing.T) {
	storageErr := errors.Join(account.ErrStorage, errors.New("db down"))

	tests := []struct {
		name      string
		svc       *fakeAccounts
		path      string
		body      string
		wantCode  int
		wantField string
		wantValue any
	}{
		{"register ok", &fakeAccounts{acc: &models.Account{ID: 1}}, "/register",
			`{"username":"a","password":"b"}`, http.StatusCreated, "message", "Registration successful!"},
		{"register missing field", &fakeAccounts{}, "/register",
			`{"username":"a"}`, http.StatusBadRequest, "error", "Username and password are required"},
		{"register bad json", &fakeAccounts{}, "/register",
			`{`, http.StatusBadRequest, "error", "Username and password are required"},
		{"register taken", &fakeAccounts{err: account.ErrUsernameTaken}, "/register",
			`{"username":"a","password":"b"}`, http.StatusConflict, "error", "Username already exists"},
		{"register storage", &fakeAccounts{err: storageErr}, "/register",
			`{"username":"a","password":"b"}`, http.StatusInternalServerError, "error", "Database error during registration."},
		{"login ok", &fakeAccounts{acc: &models.Account{ID: 17}}, "/login",
			`{"username":"a","password":"b"}`, http.StatusOK, "userId", float64(17)},
		{"login bad credentials", &fakeAccounts{err: account.ErrInvalidCredentials}, "/login",
			`{"username":"a","password":"x"}`, http.StatusUnauthorized, "error", "Invalid username or password"},
		{"login missing field", &fakeAccounts{}, "/login",
			`{"password":"x"}`, http.StatusBadRequest, "error", "Username and password are required"},
		{"login invalid input", &fakeAccounts{err: account.ErrInvalidInput}, "/login",
			`{"username":"a","password":"b"}`, http.StatusBadRequest, "error", "Username and password are required"},
		{"login storage", &fakeAccounts{err: storageErr}, "/login",
			`{"username":"a","password":"b"}`, http.StatusInternalServerError, "error", "A server error occurred during login."},
		{"request reset known", &fakeAccounts{token: "tok", found: true}, "/request-reset",
			`{"username":"a"}`, http.StatusOK, "reset_token", "tok"},
		{"request reset missing", &fakeAccounts{}, "/request-reset",
			`{}`, http.StatusBadRequest, "error", "Username is required"},
		{"reset ok", &fakeAccounts{}, "/reset-password",
			`{"token":"t","new_password":"p"}`, http.StatusOK, "message", "Password has been reset successfully."},
		{"reset invalid token", &fakeAccounts{err: account.ErrInvalidResetToken}, "/reset-password",
			`{"token":"t","new_password":"p"}`, http.StatusBadRequest, "error", "Invalid or expired reset token"},
		{"reset missing field", &fakeAccounts{}, "/reset-password",
			`{"token":"t"}`, http.StatusBadRequest, "error", "Token and new password are required"},
		{"reset storage", &fakeAccounts{err: storageErr}, "/reset-password",
			`{"token":"t","new_password":"p"}`, http.StatusInternalServerError, "error", "Failed to update password in database."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, accountRouter(tt.svc), http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			body := decode(t, w)
			if body[tt.wantField] != tt.wantValue {
				t.Fatalf("%s: got %v, want %v", tt.wantField, body[tt.wantField], tt.wantValue)
			}
		})
	}
}

func TestRequestResetUnknownUserHasNoToken(t *testing.T) {
	w := doJSON(t, accountRouter(&fakeAccounts{}), http.MethodPost, "/request-reset", `{"username":"ghost"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	body := decode(t, w)
	if _, ok := body["reset_token"]; ok {
		t.Fatalf("reset_token present for unknown user: %v", body)
	}
	if body["message"] == "" {
		t.Fatal("missing message")
	}
}

// --- Emotion detection ---

type fixedClassifier struct {
	probs []float32
	err   error
}

func (f fixedClassifier) Predict(vision.Tensor) ([]float32, error) {
	return f.probs, f.err
}

type recordingArchive struct {
	calls int
	err   error
}

func (a *recordingArchive) PutCapture(_ context.Context, _ []byte, _, _ string, _ float64, _ time.Time) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return "captures/2026/01/01/x.png", nil
}

type recordingPublisher struct {
	events []dto.DetectionEvent
	err    error
}

func (p *recordingPublisher) PublishDetection(_ context.Context, evt dto.DetectionEvent) error {
	p.events = append(p.events, evt)
	return p.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	img.Set(0, 0, color.Gray{Y: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

var happyProbs = []float32{0.01, 0.01, 0.02, 0.8, 0.1, 0.03, 0.03}

func emotionRouter(h *EmotionHandler) *gin.Engine {
	r := gin.New()
	r.POST("/detect-emotion", h.Detect)
	return r
}

func TestDetectEmotionJSON(t *testing.T) {
	pub := &recordingPublisher{}
	archive := &recordingArchive{}
	h := NewEmotionHandler(fixedClassifier{probs: happyProbs}, 1<<20)
	h.Publisher = pub
	h.Archive = archive

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
	body, _ := json.Marshal(dto.DetectEmotionRequest{Image: payload})

	w := doJSON(t, emotionRouter(h), http.MethodPost, "/detect-emotion", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d (body %s)", w.Code, w.Body.String())
	}

	var resp dto.DetectEmotionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Emotion != "Happy" {
		t.Errorf("emotion: got %q, want Happy", resp.Emotion)
	}
	if resp.Confidence < 0.79 || resp.Confidence > 0.81 {
		t.Errorf("confidence: got %f, want 0.8", resp.Confidence)
	}

	if archive.calls != 1 {
		t.Errorf("archive calls: got %d, want 1", archive.calls)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published events: got %d, want 1", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Source != dto.SourceBase64 || evt.Emotion != "Happy" || evt.CaptureKey == "" {
		t.Errorf("event: got %+v", evt)
	}
}

func TestDetectEmotionMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "face.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(pngBytes(t)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	pub := &recordingPublisher{}
	h := NewEmotionHandler(fixedClassifier{probs: happyProbs}, 1<<20)
	h.Publisher = pub

	req := httptest.NewRequest(http.MethodPost, "/detect-emotion", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	emotionRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d (body %s)", w.Code, w.Body.String())
	}
	if len(pub.events) != 1 || pub.events[0].Source != dto.SourceUpload {
		t.Fatalf("events: got %+v", pub.events)
	}
	if pub.events[0].CaptureKey != "" {
		t.Fatalf("capture key without archive: %q", pub.events[0].CaptureKey)
	}
}

func TestDetectEmotionErrors(t *testing.T) {
	validImage := base64.StdEncoding.EncodeToString(pngBytes(t))

	tests := []struct {
		name       string
		classifier vision.Classifier
		body       string
		wantCode   int
		wantError  string
	}{
		{"no model", nil, `{"image":"` + validImage + `"}`, http.StatusInternalServerError, "Model is not loaded"},
		{"missing image", fixedClassifier{probs: happyProbs}, `{}`, http.StatusBadRequest, "No image data"},
		{"empty body", fixedClassifier{probs: happyProbs}, ``, http.StatusBadRequest, "No image data"},
		{"bad base64", fixedClassifier{probs: happyProbs}, `{"image":"%%%"}`, http.StatusBadRequest, "Invalid base64"},
		{"not an image", fixedClassifier{probs: happyProbs},
			`{"image":"` + base64.StdEncoding.EncodeToString([]byte("hello")) + `"}`,
			http.StatusBadRequest, "Invalid image data"},
		{"inference failure", fixedClassifier{err: errors.New("session closed")},
			`{"image":"` + validImage + `"}`, http.StatusInternalServerError, "Failed to process image."},
		{"wrong output size", fixedClassifier{probs: []float32{1, 0}},
			`{"image":"` + validImage + `"}`, http.StatusInternalServerError, "Failed to process image."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			h := NewEmotionHandler(tt.classifier, 1<<20)
			h.Publisher = pub

			w := doJSON(t, emotionRouter(h), http.MethodPost, "/detect-emotion", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if got := decode(t, w)["error"]; got != tt.wantError {
				t.Fatalf("error: got %v, want %q", got, tt.wantError)
			}
			if len(pub.events) != 0 {
				t.Fatalf("event published for failed detection")
			}
		})
	}
}

func TestDetectEmotionSideChannelFailuresIgnored(t *testing.T) {
	h := NewEmotionHandler(fixedClassifier{probs: happyProbs}, 1<<20)
	h.Archive = &recordingArchive{err: errors.New("bucket missing")}
	h.Publisher = &recordingPublisher{err: errors.New("nats down")}

	body := `{"image":"` + base64.StdEncoding.EncodeToString(pngBytes(t)) + `"}`
	w := doJSON(t, emotionRouter(h), http.MethodPost, "/detect-emotion", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d (body %s)", w.Code, w.Body.String())
	}
}

func TestDetectEmotionTooLarge(t *testing.T) {
	h := NewEmotionHandler(fixedClassifier{probs: happyProbs}, 64)
	body := `{"image":"` + strings.Repeat("A", 256) + `"}`
	w := doJSON(t, emotionRouter(h), http.MethodPost, "/detect-emotion", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, want 413", w.Code)
	}
}

// --- Recommendations ---

type fakeRecommender struct {
	available bool
	tracks    []recommend.Track
	err       error
	gotArgs   [2]string
}

func (f *fakeRecommender) Available() bool { return f.available }

func (f *fakeRecommender) Recommend(_ context.Context, emotion, language string) ([]recommend.Track, error) {
	f.gotArgs = [2]string{emotion, language}
	return f.tracks, f.err
}

func recommendationRouter(rec Recommender) *gin.Engine {
	h := NewRecommendationHandler(rec)
	r := gin.New()
	r.GET("/recommendations/:emotion/:language", h.Get)
	r.GET("/languages", h.Languages)
	return r
}

func TestRecommendations(t *testing.T) {
	rec := &fakeRecommender{available: true, tracks: []recommend.Track{{Name: "Song", Artist: "Band"}}}
	w := doJSON(t, recommendationRouter(rec), http.MethodGet, "/recommendations/Happy/hi", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if rec.gotArgs != [2]string{"Happy", "hi"} {
		t.Fatalf("args: got %v", rec.gotArgs)
	}

	var resp struct {
		Tracks []map[string]any `json:"tracks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tracks) != 1 {
		t.Fatalf("tracks: got %d", len(resp.Tracks))
	}
	track := resp.Tracks[0]
	for _, key := range []string{"name", "artist", "spotify_url", "image", "preview_url", "embed_url"} {
		if _, ok := track[key]; !ok {
			t.Errorf("missing key %q in %v", key, track)
		}
	}
	if track["image"] != nil {
		t.Errorf("image: got %v, want null", track["image"])
	}
}

func TestRecommendationsEmptyList(t *testing.T) {
	rec := &fakeRecommender{available: true, tracks: []recommend.Track{}}
	w := doJSON(t, recommendationRouter(rec), http.MethodGet, "/recommendations/Sad/en", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"tracks":[]}` {
		t.Fatalf("body: got %s", w.Body.String())
	}
}

func TestRecommendationsFailures(t *testing.T) {
	tests := []struct {
		name      string
		rec       Recommender
		wantError string
	}{
		{"no handler dependency", nil, "Spotify service unavailable"},
		{"no provider", &fakeRecommender{}, "Spotify service unavailable"},
		{"provider error", &fakeRecommender{available: true, err: recommend.ErrProviderUnavailable},
			"Could not fetch recommendations."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, recommendationRouter(tt.rec), http.MethodGet, "/recommendations/Happy/en", "")
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status: got %d", w.Code)
			}
			if got := decode(t, w)["error"]; got != tt.wantError {
				t.Fatalf("error: got %v, want %q", got, tt.wantError)
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	w := doJSON(t, recommendationRouter(nil), http.MethodGet, "/languages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp dto.LanguagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Languages) != 4 || resp.Languages[0].Code != "en" {
		t.Fatalf("languages: got %+v", resp.Languages)
	}
}

// --- System ---

func TestReadyz(t *testing.T) {
	failing := func(context.Context) error { return errors.New("dial tcp 10.0.0.5:5432: connection refused") }
	passing := func(context.Context) error { return nil }

	tests := []struct {
		name     string
		checks   map[string]Check
		wantCode int
	}{
		{"all ok", map[string]Check{"postgres": passing}, http.StatusOK},
		{"one failing", map[string]Check{"postgres": passing, "nats": failing}, http.StatusServiceUnavailable},
		{"no checks", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler(tt.checks, map[string]bool{"classifier": false})
			r := gin.New()
			r.GET("/readyz", h.Readyz)

			w := doJSON(t, r, http.MethodGet, "/readyz", "")
			if w.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", w.Code, tt.wantCode)
			}
			if strings.Contains(w.Body.String(), "10.0.0.5") {
				t.Fatalf("check error leaked into body: %s", w.Body.String())
			}
			body := decode(t, w)
			if checks, ok := body["checks"].(map[string]any); ok {
				for name, v := range checks {
					if v != "ok" && v != "unavailable" {
						t.Fatalf("check %s: got %v", name, v)
					}
				}
			}
			features, _ := body["features"].(map[string]any)
			if features["classifier"] != "disabled" {
				t.Fatalf("features: got %v", body["features"])
			}
		})
	}
}
