package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"quizzy-service/internal/domain"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadAvatar stores an image as "<userId>_<unixMillis><ext>" and points the
// profile at it. It returns the stored reference.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID int64, filename string, body io.ReadSeeker) (string, error) {
	if userID <= 0 {
		return "", domain.ErrInvalidUserID
	}
	if s.images == nil {
		return "", errors.New("avatar storage not configured")
	}
	if body == nil {
		return "", domain.ErrNoFileUploaded
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return "", domain.ErrUnsupportedFile
	}
	contentType, err := sniffImage(body)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d_%d%s", userID, s.now().UnixMilli(), ext)
	ref, err := s.images.Save(ctx, name, contentType, body)
	if err != nil {
		return "", fmt.Errorf("save avatar: %w", err)
	}
	if _, err := s.UpdateProfile(ctx, userID, ProfileUpdate{ImageURL: &ref}); err != nil {
		return "", err
	}
	s.logger.Info("avatar uploaded", zap.Int64("user_id", userID), zap.String("ref", ref))
	return ref, nil
}

// sniffImage checks the leading bytes and rewinds body.
func sniffImage(body io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return "", domain.ErrNoFileUploaded
	}
	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", domain.ErrUnsupportedFile
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return contentType, nil
}
