package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/storage"
)

// FileService stores attachment uploads and issues HMAC-signed
// download tokens binding each file to its owning entity.
type FileService struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
}

// NewFileService constructs a FileService instance.
func NewFileService(store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{storage: store, signer: signer, logger: logger}
}

// Save streams one upload under the given prefix and returns the
// stored relative path.
func (s *FileService) Save(prefix, fileName string, size int64, r io.Reader) (string, error) {
	if !s.storage.Allowed(fileName) {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type of %q is not allowed", fileName))
	}
	if max := s.storage.MaxSize(); max > 0 && size > max {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", max))
	}

	relPath := path.Join(prefix, uuid.NewString()+path.Ext(fileName))
	if _, err := s.storage.SaveStream(relPath, r); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	return relPath, nil
}

// SignedURL returns a download token for the entity's attachment.
func (s *FileService) SignedURL(entityID, relPath string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(entityID, relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expiresAt, nil
}

// OpenSigned validates a download token and opens the referenced file.
func (s *FileService) OpenSigned(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return file, path.Base(relPath), nil
}

// Delete removes a stored attachment, logging failures.
func (s *FileService) Delete(relPath string) {
	if relPath == "" {
		return
	}
	if err := s.storage.Delete(relPath); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("path", relPath), zap.Error(err))
	}
}
