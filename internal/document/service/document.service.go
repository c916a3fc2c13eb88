package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"coedit/internal/document/model"
	"coedit/internal/document/repository"

	"github.com/google/uuid"
)

// listLimit caps the dashboard listing at the most recently updated documents.
const listLimit = 10

type DocumentService struct {
	Repo *repository.DocumentRepository
}

func NewDocumentService(repo *repository.DocumentRepository) *DocumentService {
	return &DocumentService{Repo: repo}
}

func (s *DocumentService) CreateDocument(ctx context.Context, req model.CreateDocRequest) (*model.Document, error) {
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	return s.Repo.Create(ctx, title, req.Content)
}

func (s *DocumentService) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	if err := validateID(docID); err != nil {
		return nil, err
	}
	return s.Repo.FindByID(ctx, docID)
}

func (s *DocumentService) UpdateDocument(ctx context.Context, docID string, req model.UpdateDocRequest) (*model.Document, error) {
	if err := validateID(docID); err != nil {
		return nil, err
	}
	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		req.Title = &title
	}
	return s.Repo.UpdateByID(ctx, docID, req.Title, req.Content)
}

func (s *DocumentService) ListDocuments(ctx context.Context) ([]model.Document, error) {
	return s.Repo.List(ctx, listLimit)
}

func validateID(docID string) error {
	if _, err := uuid.Parse(docID); err != nil {
		return model.ErrMalformedID
	}
	return nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: document title is required", model.ErrValidation)
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return "", fmt.Errorf("%w: title cannot exceed %d characters", model.ErrValidation, model.MaxTitleLength)
	}
	return title, nil
}
