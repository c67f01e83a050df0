package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bobarin/interject/internal/models"
	"github.com/bobarin/interject/internal/timeline"
	"github.com/google/uuid"
)

var ErrEpisodeNotFound = errors.New("episode not found")

func (db *DB) ListEpisodes(ctx context.Context) ([]models.Episode, error) {
	query := `
		SELECT id, title, audio_url, duration_seconds, created_at
		FROM episodes
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	episodes := []models.Episode{}
	for rows.Next() {
		var ep models.Episode
		if err := rows.Scan(&ep.ID, &ep.Title, &ep.AudioURL, &ep.DurationSeconds, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate episodes: %w", err)
	}

	return episodes, nil
}

// GetEpisode loads an episode together with its transcript in playback order.
func (db *DB) GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error) {
	query := `
		SELECT id, title, audio_url, duration_seconds, created_at
		FROM episodes
		WHERE id = $1
	`

	ep := &models.Episode{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&ep.ID, &ep.Title, &ep.AudioURL, &ep.DurationSeconds, &ep.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEpisodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	lines, err := db.getEpisodeLines(ctx, id)
	if err != nil {
		return nil, err
	}
	ep.Transcript = lines

	return ep, nil
}

func (db *DB) getEpisodeLines(ctx context.Context, episodeID uuid.UUID) ([]timeline.TranscriptLine, error) {
	query := `
		SELECT speaker, content, seconds, timestamp
		FROM episode_lines
		WHERE episode_id = $1
		ORDER BY seconds, line_index
	`

	rows, err := db.QueryContext(ctx, query, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episode lines: %w", err)
	}
	defer rows.Close()

	var lines []timeline.TranscriptLine
	for rows.Next() {
		line := timeline.TranscriptLine{Kind: timeline.KindOriginal}
		if err := rows.Scan(&line.Speaker, &line.Content, &line.Seconds, &line.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan episode line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate episode lines: %w", err)
	}

	return lines, nil
}
