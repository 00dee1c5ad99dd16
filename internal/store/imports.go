package store

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/pavelanni/literable/internal/model"
)

// ImportResult describes what ImportPassages did with a file.
type ImportResult struct {
	Source    string `json:"source"`
	Passages  int    `json:"passages"`
	Questions int    `json:"questions"`
	// Skipped is set when the file was imported before. Changed tells
	// whether its content differs from that import.
	Skipped bool `json:"skipped"`
	Changed bool `json:"changed"`
}

// ImportPassages loads passages with their questions from JSON data (an array
// of passages or a single passage) in one transaction. A source already
// imported is skipped; re-importing a changed file would duplicate passages.
func (s *Store) ImportPassages(source string, data []byte) (ImportResult, error) {
	res := ImportResult{Source: source}

	hash := sha256sum(data)
	storedHash, err := s.GetImportedFileHash(source)
	if err != nil {
		return res, fmt.Errorf("check import status for %s: %w", source, err)
	}
	if storedHash != "" {
		res.Skipped = true
		res.Changed = storedHash != hash
		if res.Changed {
			slog.Warn("passages file changed since last import, skipping to avoid duplicates", "source", source)
		} else {
			slog.Info("passages file unchanged, skipping", "source", source)
		}
		return res, nil
	}

	imports, err := decodePassageImports(data)
	if err != nil {
		return res, fmt.Errorf("%w: parse %s: %w", model.ErrInvalid, source, err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	for i, pi := range imports {
		p, qs, err := pi.Convert()
		if err != nil {
			return ImportResult{Source: source}, fmt.Errorf("%s entry %d: %w", source, i+1, err)
		}
		if _, err := insertPassage(tx, p, qs); err != nil {
			return ImportResult{Source: source}, fmt.Errorf("%s entry %d: %w", source, i+1, err)
		}
		res.Passages++
		res.Questions += len(qs)
	}

	if err := setImportedFileHash(tx, source, hash); err != nil {
		return ImportResult{Source: source}, fmt.Errorf("record import for %s: %w", source, err)
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{Source: source}, err
	}

	slog.Info("imported passages", "source", source, "passages", res.Passages, "questions", res.Questions)
	return res, nil
}

func decodePassageImports(data []byte) ([]model.PassageImport, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var one model.PassageImport
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		return []model.PassageImport{one}, nil
	}
	var many []model.PassageImport
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, err
	}
	return many, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// GetImportedFileHash returns the SHA-256 recorded for an imported file,
// or an empty string if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.Get(&hash, `SELECT sha256 FROM imported_files WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// setImportedFileHash records the SHA-256 of an imported file.
func setImportedFileHash(e sqlx.Execer, path, hash string) error {
	_, err := e.Exec(
		`INSERT INTO imported_files (path, sha256) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = excluded.sha256`,
		path, hash,
	)
	return err
}
