package handlers

import (
	"errors"
	"io"
	"net/http"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// bucketRoles limits who may write to each bucket.
var bucketRoles = map[string][]models.UserRole{
	storage.BucketRestaurantImages: {models.RoleRestaurantOwner, models.RoleSuperAdmin},
	storage.BucketMenuImages:       {models.RoleRestaurantOwner, models.RoleSuperAdmin},
	storage.BucketUserAvatars:      {models.RoleCustomer, models.RoleRestaurantOwner, models.RoleDriver, models.RoleSuperAdmin},
	storage.BucketDriverDocuments:  {models.RoleDriver, models.RoleSuperAdmin},
}

func allowedInBucket(bucket string, c *gin.Context) bool {
	role := middleware.GetRole(c)
	if _, member := middleware.GetRestaurantID(c); member && (bucket == storage.BucketMenuImages || bucket == storage.BucketRestaurantImages) {
		return true
	}
	for _, r := range bucketRoles[bucket] {
		if r == role {
			return true
		}
	}
	return false
}

// Upload stores the multipart "file" field in the named bucket.
func (h *Handler) Upload(c *gin.Context) {
	b, ok := storage.LookupBucket(c.Param("bucket"))
	if !ok {
		fail(c, apperr.NotFound("Bucket"))
		return
	}
	if !allowedInBucket(b.Name, c) {
		fail(c, apperr.Forbidden("You cannot upload to "+b.Name))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, b.MaxBytes+storage.MB)
	fh, err := c.FormFile("file")
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		fail(c, apperr.New(apperr.CodeFileTooLarge, http.StatusBadRequest, "File is too large").
			WithDetails(map[string]interface{}{"maxBytes": b.MaxBytes}))
		return
	}
	if err != nil {
		fail(c, apperr.New(apperr.CodeFileUpload, http.StatusBadRequest, "A file must be sent in the \"file\" field").Wrap(err))
		return
	}
	if fh.Size > b.MaxBytes {
		fail(c, apperr.New(apperr.CodeFileTooLarge, http.StatusBadRequest, "File is too large").
			WithDetails(map[string]interface{}{"maxBytes": b.MaxBytes}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, apperr.New(apperr.CodeFileUpload, http.StatusBadRequest, "Could not read uploaded file").Wrap(err))
		return
	}
	defer f.Close()

	obj, err := h.Files.Put(c.Request.Context(), b, middleware.GetUserID(c), f, fh.Header.Get("Content-Type"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": obj})
}

// GetUpload returns an object from a private bucket. Owners see their own
// files and admins see all of them.
func (h *Handler) GetUpload(c *gin.Context) {
	b, ok := storage.LookupBucket(c.Param("bucket"))
	if !ok || b.Public {
		fail(c, apperr.NotFound("Bucket"))
		return
	}
	name := c.Param("name")
	if middleware.GetRole(c) != models.RoleSuperAdmin {
		owner, ok := storage.OwnerOf(name)
		if !ok || owner != middleware.GetUserID(c) {
			fail(c, apperr.Forbidden("You cannot read this file"))
			return
		}
	}

	rc, err := h.Files.Open(c.Request.Context(), b.Name, name)
	if err != nil {
		fail(c, err)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, b.MaxBytes))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}
