package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"food-ordering-api/apperr"
	"food-ordering-api/models"
	"food-ordering-api/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func (f *fixture) upload(t *testing.T, bucket, filename string, content []byte, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/"+bucket, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, as))
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func withStore(t *testing.T, f *fixture) string {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStore(root, "http://localhost:8080/uploads", "http://localhost:8080/api/uploads")
	require.NoError(t, err)
	f.h.Files = store
	return root
}

func TestUploadStoresImage(t *testing.T) {
	f := newFixture(t)
	root := withStore(t, f)

	w := f.upload(t, storage.BucketMenuImages, "pizza.png", pngHeader, f.owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		File storage.Object `json:"file"`
	}
	decode(t, w, &res)
	assert.Equal(t, "image/png", res.File.ContentType)
	assert.True(t, strings.HasPrefix(res.File.URL, "http://localhost:8080/uploads/menu-images/"), res.File.URL)
	assert.True(t, strings.HasSuffix(res.File.Name, ".png"), res.File.Name)

	stored, err := os.ReadFile(filepath.Join(root, storage.BucketMenuImages, res.File.Name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)
}

func TestUploadRejections(t *testing.T) {
	f := newFixture(t)
	withStore(t, f)

	w := f.upload(t, storage.BucketMenuImages, "notes.txt", []byte("just some text"), f.owner)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, apperr.CodeFileTypeNotAllowed, decodeError(t, w).Error.Code)

	w = f.upload(t, storage.BucketMenuImages, "pizza.png", pngHeader, f.customer)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = f.upload(t, "secrets", "pizza.png", pngHeader, f.owner)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	big := append(append([]byte{}, pngHeader...), make([]byte, 5*storage.MB+1024)...)
	w = f.upload(t, storage.BucketUserAvatars, "huge.png", big, f.customer)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, apperr.CodeFileTooLarge, decodeError(t, w).Error.Code)
}

func TestDriverDocumentsArePrivate(t *testing.T) {
	f := newFixture(t)
	withStore(t, f)
	d := f.user(t, "driver@example.ch", models.RoleDriver)
	other := f.user(t, "other.driver@example.ch", models.RoleDriver)

	w := f.upload(t, storage.BucketDriverDocuments, "licence.png", pngHeader, d)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		File storage.Object `json:"file"`
	}
	decode(t, w, &res)
	path := "/api/uploads/" + storage.BucketDriverDocuments + "/" + res.File.Name
	assert.Equal(t, "http://localhost:8080"+path, res.File.URL)

	w = f.do(t, http.MethodGet, path, nil, d)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, pngHeader, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = f.do(t, http.MethodGet, path, nil, f.admin)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, nil, other).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, nil, f.customer).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, path, nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/uploads/"+storage.BucketMenuImages+"/x.png", nil, f.admin).Code)
}
