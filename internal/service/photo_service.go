package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog"

	"contactbook/internal/apperr"
	"contactbook/internal/ids"
	"contactbook/internal/media/sniffer"
	"contactbook/internal/storage"
)

// Photo is an uploaded image as received from the client.
type Photo struct {
	File   io.Reader
	Size   int64
	Header http.Header
}

type PhotoService struct {
	store   storage.PhotoStore
	maxSize int64
	now     func() time.Time
	log     zerolog.Logger
}

func NewPhotoService(store storage.PhotoStore, maxSize int64, log zerolog.Logger) *PhotoService {
	return &PhotoService{
		store:   store,
		maxSize: maxSize,
		now:     time.Now,
		log:     log,
	}
}

func (s *PhotoService) tooLarge() *apperr.Error {
	return apperr.InvalidInput(fmt.Sprintf("Photo exceeds the %d MB limit", s.maxSize/(1024*1024)))
}

// Upload checks the photo by its magic bytes, stores it under the owner's
// prefix and returns its public url.
func (s *PhotoService) Upload(ctx context.Context, userID string, photo Photo) (string, error) {
	if photo.File == nil {
		return "", apperr.InvalidInput("Photo is empty")
	}
	if photo.Size > s.maxSize {
		return "", s.tooLarge()
	}

	result, head, err := sniffer.Detect(photo.File)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return "", ErrUnsupportedPhoto
		}
		return "", apperr.Internal(fmt.Errorf("read photo: %w", err))
	}

	if declared := sniffer.MimeTypeFromHTTP(photo.Header); declared != "" && declared != result.MIME {
		return "", ErrPhotoMismatch
	}

	// the declared size is advisory; the limit is enforced on the bytes
	data, err := io.ReadAll(io.LimitReader(io.MultiReader(bytes.NewReader(head), photo.File), s.maxSize+1))
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("read photo: %w", err))
	}
	if int64(len(data)) > s.maxSize {
		return "", s.tooLarge()
	}

	key := s.buildObjectKey(userID, result.Extension())
	url, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), result.MIME)
	if err != nil {
		return "", apperr.Internal(err)
	}

	s.log.Debug().Str("user_id", userID).Str("key", key).Int("bytes", len(data)).Msg("photo stored")
	return url, nil
}

// Remove deletes a stored photo. Failures are logged and swallowed, a
// dangling object is preferable to failing the contact operation.
func (s *PhotoService) Remove(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.store.Delete(ctx, url); err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("remove photo failed")
	}
}

func (s *PhotoService) buildObjectKey(userID string, ext string) string {
	datePrefix := s.now().UTC().Format("2006/01/02")
	return path.Join("contacts", userID, datePrefix, fmt.Sprintf("%s.%s", ids.New(), ext))
}
