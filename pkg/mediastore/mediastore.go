package mediastore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog/log"
)

// Store is the durable media storage contract: the exam engine never keeps
// raw bytes, only the URL returned here.
type Store interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type cloudinaryStore struct {
	client *cloudinary.Cloudinary
	folder string
}

// New constructs a Cloudinary-backed store.
func New(cfg Config) (Store, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &cloudinaryStore{client: cld, folder: cfg.Folder}, nil
}

func (s *cloudinaryStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     buildPublicID(name),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	log.Info().Str("public_id", result.PublicID).Msg("File uploaded to cloudinary")
	return result.SecureURL, nil
}

func (s *cloudinaryStore) Delete(ctx context.Context, url string) error {
	publicID := publicIDFromURL(url, s.folder)
	if publicID == "" {
		return fmt.Errorf("cannot derive public id from url %s", url)
	}
	_, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	return fmt.Sprintf("%s-%d", base, time.Now().Unix())
}

func publicIDFromURL(url, folder string) string {
	idx := strings.Index(url, strings.Trim(folder, "/"))
	if idx == -1 {
		return ""
	}
	id := url[idx:]
	return strings.TrimSuffix(id, filepath.Ext(id))
}
