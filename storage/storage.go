// Package storage validates uploaded files and keeps them in named buckets.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"food-ordering-api/apperr"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	MB = 1 << 20

	BucketRestaurantImages = "restaurant-images"
	BucketMenuImages       = "menu-images"
	BucketUserAvatars      = "user-avatars"
	BucketDriverDocuments  = "driver-documents"
)

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

type Bucket struct {
	Name         string
	MaxBytes     int64
	AllowedTypes []string
	// Public buckets are served without authentication. Objects in private
	// buckets carry their owner's id in the name.
	Public bool
}

var buckets = map[string]Bucket{
	BucketRestaurantImages: {BucketRestaurantImages, 5 * MB, imageTypes, true},
	BucketMenuImages:       {BucketMenuImages, 5 * MB, imageTypes, true},
	BucketUserAvatars:      {BucketUserAvatars, 5 * MB, imageTypes, true},
	BucketDriverDocuments:  {BucketDriverDocuments, 10 * MB, []string{"application/pdf", "image/jpeg", "image/png"}, false},
}

func LookupBucket(name string) (Bucket, bool) {
	b, ok := buckets[name]
	return b, ok
}

// PublicBuckets returns the names of the buckets that may be served
// statically, sorted.
func PublicBuckets() []string {
	var names []string
	for name, b := range buckets {
		if b.Public {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// OwnerOf returns the user id encoded in a private object name.
func OwnerOf(name string) (uint, bool) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Validate checks the size and the sniffed content type. declared is the
// client-supplied Content-Type and must agree with the content when present.
func (b Bucket) Validate(data []byte, declared string) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.CodeFileUpload, http.StatusBadRequest, "file is empty")
	}
	if int64(len(data)) > b.MaxBytes {
		return nil, apperr.New(apperr.CodeFileTooLarge, http.StatusBadRequest,
			fmt.Sprintf("file exceeds the %d MB limit", b.MaxBytes/MB)).
			WithDetails(map[string]interface{}{"maxBytes": b.MaxBytes})
	}

	mt := mimetype.Detect(data)
	if !b.allows(mt) {
		return nil, apperr.New(apperr.CodeFileTypeNotAllowed, http.StatusBadRequest,
			fmt.Sprintf("file type %s is not allowed", mt.String())).
			WithDetails(map[string]interface{}{"allowed": b.AllowedTypes})
	}
	if declared != "" && declared != "application/octet-stream" {
		base := strings.TrimSpace(strings.SplitN(declared, ";", 2)[0])
		if !mt.Is(base) {
			return nil, apperr.New(apperr.CodeFileTypeNotAllowed, http.StatusBadRequest,
				fmt.Sprintf("declared type %s does not match content %s", base, mt.String()))
		}
	}
	return mt, nil
}

func (b Bucket) allows(mt *mimetype.MIME) bool {
	for _, t := range b.AllowedTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

// Object describes a stored file.
type Object struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Store interface {
	// Put validates r against the bucket rules and stores it under a generated
	// name. owner is recorded in the name of private objects.
	Put(ctx context.Context, b Bucket, owner uint, r io.Reader, declared string) (*Object, error)
	Open(ctx context.Context, bucket, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, name string) error
}

// LocalStore keeps objects on disk under root/<bucket>/. Public objects are
// linked from publicURL/<bucket>/, private ones from privateURL/<bucket>/.
type LocalStore struct {
	root       string
	publicURL  string
	privateURL string
}

func NewLocalStore(root, publicURL, privateURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", root, err)
	}
	return &LocalStore{
		root:       root,
		publicURL:  strings.TrimRight(publicURL, "/"),
		privateURL: strings.TrimRight(privateURL, "/"),
	}, nil
}

func (s *LocalStore) Put(_ context.Context, b Bucket, owner uint, r io.Reader, declared string) (*Object, error) {
	// One byte past the limit is enough to tell the file is too large.
	data, err := io.ReadAll(io.LimitReader(r, b.MaxBytes+1))
	if err != nil {
		return nil, apperr.New(apperr.CodeFileUpload, http.StatusBadRequest, "could not read uploaded file").Wrap(err)
	}
	mt, err := b.Validate(data, declared)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, b.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.New(apperr.CodeFileUpload, http.StatusInternalServerError, "could not store file").Wrap(err)
	}
	name := uuid.NewString() + mt.Extension()
	base := s.publicURL
	if !b.Public {
		name = strconv.FormatUint(uint64(owner), 10) + "_" + name
		base = s.privateURL
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return nil, apperr.New(apperr.CodeFileUpload, http.StatusInternalServerError, "could not store file").Wrap(err)
	}

	return &Object{
		Bucket:      b.Name,
		Name:        name,
		URL:         base + "/" + b.Name + "/" + name,
		ContentType: mt.String(),
		Size:        int64(len(data)),
	}, nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return apperr.Validation("invalid object name")
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, bucket, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, bucket, name))
	if os.IsNotExist(err) {
		return nil, apperr.NotFound("File")
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s/%s: %w", bucket, name, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, bucket, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, bucket, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s/%s: %w", bucket, name, err)
	}
	return nil
}
