package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// ErrInvalidGameID is returned for ids that cannot name an object.
var ErrInvalidGameID = errors.New("s3blob: invalid game id")

// Transcript is the archived form of a finished game.
type Transcript struct {
	Version int `json:"version"`
	domain.GameResult
}

const transcriptVersion = 1

// TranscriptArchiver writes finished games to object storage as JSON and
// reads them back. It depends only on the blob interfaces, so any
// domain.BlobWriter/BlobReader pair works.
type TranscriptArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	prefix string
	logger *slog.Logger
}

// NewTranscriptArchiver creates an archiver storing objects under prefix.
func NewTranscriptArchiver(w domain.BlobWriter, r domain.BlobReader, prefix string, logger *slog.Logger) *TranscriptArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptArchiver{
		writer: w,
		reader: r,
		prefix: prefix,
		logger: logger.With(slog.String("component", "transcript_archiver")),
	}
}

// Path returns the object key for gameID.
func (a *TranscriptArchiver) Path(gameID string) string {
	return a.prefix + "games/" + gameID + ".json"
}

// Archive uploads the transcript of result.
func (a *TranscriptArchiver) Archive(ctx context.Context, result domain.GameResult) error {
	if !validID(result.GameID) {
		return ErrInvalidGameID
	}
	data, err := json.Marshal(Transcript{Version: transcriptVersion, GameResult: result})
	if err != nil {
		return fmt.Errorf("s3blob: marshal transcript: %w", err)
	}
	path := a.Path(result.GameID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive %s: %w", result.GameID, err)
	}
	a.logger.InfoContext(ctx, "transcript archived",
		slog.String("game_id", result.GameID),
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// Load reads back the transcript of gameID. A missing transcript yields
// domain.ErrNotFound.
func (a *TranscriptArchiver) Load(ctx context.Context, gameID string) (Transcript, error) {
	if !validID(gameID) {
		return Transcript{}, ErrInvalidGameID
	}
	body, err := a.reader.Get(ctx, a.Path(gameID))
	if err != nil {
		return Transcript{}, err
	}
	defer body.Close()

	var t Transcript
	if err := json.NewDecoder(body).Decode(&t); err != nil {
		return Transcript{}, fmt.Errorf("s3blob: decode transcript %s: %w", gameID, err)
	}
	return t, nil
}

// validID accepts the characters a uuid can contain.
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
