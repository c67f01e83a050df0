package db

import (
	"context"
	"fmt"

	"github.com/bobarin/interject/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateInteraction(ctx context.Context, in *models.Interaction) error {
	query := `
		INSERT INTO interactions (
			id, session_id, episode_id, query, asked_at, status, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		in.ID, in.SessionID, in.EpisodeID, in.Query, in.AskedAt, in.Status, in.Details,
	).Scan(&in.CreatedAt)
}

// FinishInteraction stores the outcome of a question. insertAt and addedDuration
// are nil unless the answer was committed.
func (db *DB) FinishInteraction(
	ctx context.Context,
	id uuid.UUID,
	status models.QuestionStatus,
	insertAt, addedDuration *float64,
	details models.JSONB,
	errorMessage *string,
) error {
	query := `
		UPDATE interactions
		SET status = $2,
		    insert_at = $3,
		    added_duration = $4,
		    details = COALESCE($5, details),
		    error_message = $6
		WHERE id = $1
	`

	var detailsArg interface{}
	if details != nil {
		detailsArg = details
	}

	_, err := db.ExecContext(ctx, query, id, status, insertAt, addedDuration, detailsArg, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update interaction: %w", err)
	}
	return nil
}

func (db *DB) ListSessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.Interaction, error) {
	query := `
		SELECT
			id, session_id, episode_id, query, asked_at, insert_at,
			added_duration, status, details, error_message, created_at
		FROM interactions
		WHERE session_id = $1
		ORDER BY created_at
	`

	rows, err := db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		var in models.Interaction
		err := rows.Scan(
			&in.ID, &in.SessionID, &in.EpisodeID, &in.Query, &in.AskedAt, &in.InsertAt,
			&in.AddedDuration, &in.Status, &in.Details, &in.ErrorMessage, &in.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}

	return out, nil
}
