package repository

import (
	"context"
	"database/sql"
	"errors"

	"coedit/internal/document/model"
	"coedit/pkg/logger"

	"github.com/google/uuid"
)

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

const documentColumns = "id, title, content, created_at, updated_at"

func scanDocument(row *sql.Row) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) Create(ctx context.Context, title, content string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO documents (id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING `+documentColumns,
		uuid.NewString(), title, content)
	doc, err := scanDocument(row)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
	}
	return doc, err
}

func (r *DocumentRepository) FindByID(ctx context.Context, docID string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, docID)
	return scanDocument(row)
}

// UpdateByID applies a partial update; nil fields keep their stored value.
func (r *DocumentRepository) UpdateByID(ctx context.Context, docID string, title, content *string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx,
		`UPDATE documents
		 SET title = COALESCE($2, title), content = COALESCE($3, content), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+documentColumns,
		docID, title, content)
	return scanDocument(row)
}

func (r *DocumentRepository) List(ctx context.Context, limit int) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetContent is the read half of the slice the realtime relay consumes.
func (r *DocumentRepository) GetContent(ctx context.Context, docID string) (string, error) {
	var content string
	err := r.DB.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = $1`, docID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	return content, err
}

// UpdateContent is the write half of the relay slice: a last-write-wins
// overwrite of the stored content.
func (r *DocumentRepository) UpdateContent(ctx context.Context, docID, content string) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE documents SET content = $1, updated_at = NOW() WHERE id = $2`, content, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for doc %s: %v", docID, err)
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return model.ErrNotFound
	}
	return nil
}
