package controllers_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"greenexchange/controllers"
	"greenexchange/middleware"
	"greenexchange/models"
	"greenexchange/routes"
	"greenexchange/services"
	"greenexchange/store"
	"greenexchange/utils"
	"greenexchange/views"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "greenexchange"

type testServer struct {
	router    *mux.Router
	store     *store.MemoryStore
	trees     *services.TreeService
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	logger := zaptest.NewLogger(t)
	metrics := utils.NewMetrics()
	auth := services.NewAuthService(st, utils.NewTokenSigner("test-secret"), utils.NoopMailer{}, metrics, logger, services.AuthOptions{
		BcryptCost: bcrypt.MinCost,
	})
	trees := services.NewTreeService(st, utils.NoopMailer{}, metrics, logger, "http://localhost:3000")
	renderer, err := views.New()
	require.NoError(t, err)
	uploadDir := t.TempDir()

	router := mux.NewRouter()
	routes.RegisterRoutes(router,
		controllers.NewUserController(auth, trees, renderer, logger, controllers.CookieOptions{Name: cookieName}, time.Second),
		controllers.NewTreeController(trees, renderer, logger, uploadDir, 1<<20, time.Second),
		controllers.NewCertificateController(trees, logger, time.Second),
		controllers.NewPageController(trees, renderer, logger, time.Second),
		uploadDir, metrics)
	router.Use(middleware.SessionMiddleware(auth, cookieName, logger))
	router.Use(middleware.RequestLogger(logger, metrics))

	return &testServer{router: router, store: st, trees: trees, uploadDir: uploadDir}
}

func (s *testServer) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func (s *testServer) postForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, cookie)
}

// login signs a user up and returns their session cookie.
func (s *testServer) login(t *testing.T, name, email string) *http.Cookie {
	t.Helper()
	rec := s.postForm("/signup", url.Values{"name": {name}, "email": {email}, "password": {"pa55word"}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	rec = s.postForm("/login", url.Values{"email": {email}, "password": {"pa55word"}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func plantForm() url.Values {
	return url.Values{
		"Adhar":   {"123456789012"},
		"State":   {"Maharashtra"},
		"Distric": {"Pune"},
		"PinCode": {"411001"},
		"price":   {"500"},
	}
}

func multipartPlant(t *testing.T, form url.Values, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range form {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/trees", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) onlyTree(t *testing.T) models.Tree {
	t.Helper()
	trees, err := s.store.Trees().List(context.Background())
	require.NoError(t, err)
	require.Len(t, trees, 1)
	return trees[0]
}

func TestMarketplaceFlow(t *testing.T) {
	s := newTestServer(t)
	planter := s.login(t, "Asha", "asha@example.com")
	buyer := s.login(t, "Ravi", "ravi@example.com")

	rec := s.do(multipartPlant(t, plantForm(), "neem.png", []byte("png-bytes")), planter)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	tree := s.onlyTree(t)
	assert.Equal(t, models.StatusPending, tree.Status)
	require.True(t, strings.HasPrefix(tree.Image, utils.UploadURLPrefix))

	img := s.get(tree.Image, nil)
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "png-bytes", img.Body.String())

	rec = s.postForm("/trees/"+tree.ID.Hex()+"/buy", nil, buyer)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot buy this tree")

	_, err := s.trees.Verify(context.Background(), tree.ID)
	require.NoError(t, err)

	rec = s.postForm("/trees/"+tree.ID.Hex()+"/buy", nil, buyer)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	rec = s.get("/profile", buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/certificate/"+tree.ID.Hex()+"/download")

	rec = s.get("/certificate/"+tree.ID.Hex()+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=Tree-Certificate-"+tree.ID.Hex()+".pdf", rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = s.postForm("/resell/"+tree.ID.Hex(), nil, planter)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.postForm("/resell/"+tree.ID.Hex(), nil, buyer)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, models.StatusVerified, s.onlyTree(t).Status)

	rec = s.get("/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Maharashtra, Pune")
	assert.Contains(t, rec.Body.String(), "INR 500")
}

func TestCreateTree(t *testing.T) {
	t.Run("url-encoded form without image", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, "Asha", "asha@example.com")

		rec := s.postForm("/trees", plantForm(), cookie)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Empty(t, s.onlyTree(t).Image)
	})

	t.Run("missing fields", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, "Asha", "asha@example.com")
		form := plantForm()
		form.Del("State")

		rec := s.do(multipartPlant(t, form, "neem.png", []byte("png")), cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "State is required")

		count, err := s.store.Trees().Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
		entries, err := os.ReadDir(s.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("non numeric price", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, "Asha", "asha@example.com")
		form := plantForm()
		form.Set("price", "lots")

		rec := s.postForm("/trees", form, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "price must be a number")
	})

	t.Run("unsupported image", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, "Asha", "asha@example.com")

		rec := s.do(multipartPlant(t, plantForm(), "script.sh", []byte("#!/bin/sh")), cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		_, err := os.Stat(filepath.Join(s.uploadDir, "script.sh"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("anonymous", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.postForm("/trees", plantForm(), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Please log in first")
	})
}

func TestAuthPages(t *testing.T) {
	s := newTestServer(t)

	t.Run("duplicate signup", func(t *testing.T) {
		s.login(t, "Asha", "asha@example.com")
		rec := s.postForm("/signup", url.Values{"name": {"Other"}, "email": {"asha@example.com"}, "password": {"x"}}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := s.postForm("/login", url.Values{"email": {"asha@example.com"}, "password": {"nope"}}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid email or password")
	})

	t.Run("profile redirects when anonymous", func(t *testing.T) {
		rec := s.get("/profile", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("logout invalidates the session", func(t *testing.T) {
		cookie := s.login(t, "Ravi", "ravi@example.com")
		require.Equal(t, http.StatusOK, s.get("/profile", cookie).Code)

		rec := s.postForm("/logout", nil, cookie)
		assert.Equal(t, http.StatusSeeOther, rec.Code)

		rec = s.get("/profile", cookie)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("forged cookie is ignored", func(t *testing.T) {
		rec := s.get("/profile", &http.Cookie{Name: cookieName, Value: "not-a-token"})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})
}

func TestTreeLookups(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"malformed id", "/trees/not-an-id", http.StatusBadRequest},
		{"unknown tree", "/trees/" + primitive.NewObjectID().Hex(), http.StatusNotFound},
		{"unknown certificate", "/certificate/" + primitive.NewObjectID().Hex() + "/download", http.StatusNotFound},
		{"new form needs session", "/trees/new", http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.get(tt.path, nil).Code)
		})
	}
}

func TestPages(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "Asha", "asha@example.com")
	require.Equal(t, http.StatusSeeOther, s.postForm("/trees", plantForm(), cookie).Code)

	for _, path := range []string{"/about", "/team", "/farmer-simulator", "/signup", "/login"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusOK, s.get(path, nil).Code)
		})
	}

	rec := s.get("/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Total trees: 1")
	assert.Contains(t, rec.Body.String(), "Total users: 1")
	assert.Contains(t, rec.Body.String(), "Pending: 1")

	rec = s.get("/trees/new", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Asha")

	rec = s.get("/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "greenexchange_http_requests_total")
}
