// Package review handles car model reviews, likes and model wishes for both
// product lines.
package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/objectstore"
	"github.com/ManuelReschke/Vahana/internal/pkg/upload"
)

var (
	ErrUnknownService = errors.New("service must be SUBSCRIPTION or BUTLER")
	ErrNotAuthor      = errors.New("review belongs to another user")
	ErrNoStore        = errors.New("image uploads are not configured")
)

// Image is an uploaded file attached to a review.
type Image struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Detail is a review with its like count as seen by one viewer.
type Detail struct {
	models.Review
	Likes   int64 `json:"likes"`
	IsLiked bool  `json:"is_liked"`
}

type Service struct {
	repos *repository.Repositories
	store objectstore.Store
	now   func() time.Time
}

func NewService(repos *repository.Repositories, store objectstore.Store) *Service {
	return &Service{repos: repos, store: store, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func checkService(service string) error {
	if !models.IsValidService(service) {
		return ErrUnknownService
	}
	return nil
}

func (s *Service) List(ctx context.Context, service string, modelID uint, offset, limit int) ([]models.Review, int64, error) {
	if err := checkService(service); err != nil {
		return nil, 0, err
	}
	return s.repos.Review.List(service, modelID, offset, limit)
}

// Get loads an active review of service. viewerID 0 is an anonymous viewer.
func (s *Service) Get(ctx context.Context, service string, id, viewerID uint) (*Detail, error) {
	rv, err := s.load(service, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Review: *rv}
	if d.Likes, err = s.repos.Review.CountLikes(id); err != nil {
		return nil, err
	}
	if viewerID != 0 {
		if d.IsLiked, err = s.repos.Review.IsReviewLiked(id, viewerID); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (s *Service) load(service string, id uint) (*models.Review, error) {
	if err := checkService(service); err != nil {
		return nil, err
	}
	rv, err := s.repos.Review.GetByID(id)
	if err != nil {
		return nil, err
	}
	if rv.Service != service || !rv.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return rv, nil
}

// Create stores a review. It is marked verified when the author holds a
// contract for a car of the model in the same service.
func (s *Service) Create(ctx context.Context, userID uint, service string, modelID uint, content string, img *Image) (*models.Review, error) {
	if err := checkService(service); err != nil {
		return nil, err
	}
	if _, err := s.repos.Car.GetModel(modelID); err != nil {
		return nil, err
	}

	rv := &models.Review{
		Service:    service,
		CarModelID: modelID,
		UserID:     userID,
		Content:    strings.TrimSpace(content),
		IsActive:   true,
	}
	if err := rv.Validate(); err != nil {
		return nil, err
	}
	verified, err := s.hasContract(userID, service, modelID)
	if err != nil {
		return nil, err
	}
	rv.IsVerified = verified

	if img != nil {
		if rv.Image, err = s.put(ctx, img); err != nil {
			return nil, err
		}
	}
	if err := s.repos.Review.Create(rv); err != nil {
		s.remove(ctx, rv.Image)
		return nil, err
	}
	return rv, nil
}

// UpdateInput changes a review. A nil Content keeps the text; RemoveImage
// drops the picture unless a new Image replaces it.
type UpdateInput struct {
	Content     *string
	Image       *Image
	RemoveImage bool
}

func (s *Service) Update(ctx context.Context, userID uint, service string, id uint, in UpdateInput) (*models.Review, error) {
	rv, err := s.load(service, id)
	if err != nil {
		return nil, err
	}
	if rv.UserID != userID {
		return nil, ErrNotAuthor
	}

	if in.Content != nil {
		rv.Content = strings.TrimSpace(*in.Content)
	}
	if err := rv.Validate(); err != nil {
		return nil, err
	}

	old := rv.Image
	switch {
	case in.Image != nil:
		if rv.Image, err = s.put(ctx, in.Image); err != nil {
			return nil, err
		}
	case in.RemoveImage:
		rv.Image = ""
	}
	if err := s.repos.Review.Update(rv); err != nil {
		if rv.Image != old {
			s.remove(ctx, rv.Image)
		}
		return nil, err
	}
	if rv.Image != old {
		s.remove(ctx, old)
	}
	return rv, nil
}

// Delete hides the review. Likes stay attached to the row.
func (s *Service) Delete(ctx context.Context, userID uint, service string, id uint) error {
	rv, err := s.load(service, id)
	if err != nil {
		return err
	}
	if rv.UserID != userID {
		return ErrNotAuthor
	}
	old := rv.Image
	rv.SoftDelete()
	rv.Image = ""
	if err := s.repos.Review.Update(rv); err != nil {
		return err
	}
	s.remove(ctx, old)
	return nil
}

func (s *Service) LikeReview(ctx context.Context, userID uint, service string, id uint, liked bool) error {
	if _, err := s.load(service, id); err != nil {
		return err
	}
	return s.repos.Review.SetReviewLike(id, userID, liked)
}

func (s *Service) IsReviewLiked(ctx context.Context, userID uint, service string, id uint) (bool, error) {
	if _, err := s.load(service, id); err != nil {
		return false, err
	}
	return s.repos.Review.IsReviewLiked(id, userID)
}

func (s *Service) LikeModel(ctx context.Context, userID uint, service string, modelID uint, liked bool) error {
	if err := checkService(service); err != nil {
		return err
	}
	if _, err := s.repos.Car.GetModel(modelID); err != nil {
		return err
	}
	return s.repos.Review.SetModelLike(service, modelID, userID, liked)
}

func (s *Service) IsModelLiked(ctx context.Context, userID uint, service string, modelID uint) (bool, error) {
	if err := checkService(service); err != nil {
		return false, err
	}
	if _, err := s.repos.Car.GetModel(modelID); err != nil {
		return false, err
	}
	return s.repos.Review.IsModelLiked(service, modelID, userID)
}

// RequestModel records a wish for a model that is not offered yet.
func (s *Service) RequestModel(ctx context.Context, userID uint, service, model string) (*models.ModelRequest, error) {
	if err := checkService(service); err != nil {
		return nil, err
	}
	m := &models.ModelRequest{Service: service, UserID: userID, Model: strings.TrimSpace(model), IsActive: true}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := s.repos.Review.CreateModelRequest(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) hasContract(userID uint, service string, modelID uint) (bool, error) {
	if service == models.SERVICE_BUTLER {
		contracts, err := s.repos.Butler.ListContractsByUser(userID)
		if err != nil {
			return false, err
		}
		for _, c := range contracts {
			if c.Request.Car.CarModelID == modelID {
				return true, nil
			}
		}
		return false, nil
	}
	contracts, err := s.repos.Subscription.ListContractsByUser(userID)
	if err != nil {
		return false, err
	}
	for _, c := range contracts {
		if c.Request.Car.CarModelID == modelID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) put(ctx context.Context, img *Image) (string, error) {
	if s.store == nil {
		return "", ErrNoStore
	}
	br := bufio.NewReaderSize(img.Body, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	contentType, err := upload.DetectImage(img.Filename, head, img.Size)
	if err != nil {
		return "", err
	}
	key := objectstore.ObjectKey("reviews", filepath.Ext(img.Filename), s.now())
	return s.store.Put(ctx, key, contentType, br, img.Size)
}

func (s *Service) remove(ctx context.Context, url string) {
	if url == "" || s.store == nil {
		return
	}
	key := s.store.KeyFor(url)
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warnf("[Review] Failed to delete image %s: %v", key, err)
	}
}
