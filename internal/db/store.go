package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/timecode"
)

var ErrNotFound = errors.New("run not found")

// Store keeps completed analyses so they can be listed and reopened later.
type Store struct {
	db *sql.DB
}

type RunSummary struct {
	ID           string    `json:"id" yaml:"id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	Model        string    `json:"model" yaml:"model"`
	AudioPath    string    `json:"audio_path" yaml:"audio_path"`
	Participants []string  `json:"participants" yaml:"participants"`
	Examples     int       `json:"examples" yaml:"examples"`
	TotalTokens  int       `json:"total_tokens" yaml:"total_tokens"`
}

type IndicatorStat struct {
	Kind         analysis.IndicatorKind `json:"kind" yaml:"kind"`
	Examples     int                    `json:"examples" yaml:"examples"`
	Runs         int                    `json:"runs" yaml:"runs"`
	Participants int                    `json:"participants" yaml:"participants"`
}

// Open opens the history database; an empty path keeps it in memory.
func Open(path string) (*Store, error) {
	db, err := openDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveRun(ctx context.Context, run *analysis.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}

	participants, err := json.Marshal(nonNil(run.Participants))
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	warnings, err := json.Marshal(nonNil(run.Warnings))
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, model, audio_path, audio_mime, participants, report,
			prompt_tokens, output_tokens, total_tokens, duration_ms, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC(), run.Model, run.AudioPath, run.AudioMIME,
		string(participants), string(report),
		run.Usage.PromptTokens, run.Usage.OutputTokens, run.Usage.TotalTokens,
		run.Duration.Milliseconds(), string(warnings),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if run.Report != nil {
		for _, p := range run.Report.ParticipantsAnalysis {
			for _, ind := range p.Detected() {
				for _, ex := range ind.Examples {
					var offset any
					if sec, err := timecode.ParseSeconds(ex.Timestamp); err == nil {
						offset = sec
					}
					_, err := tx.ExecContext(ctx, `
						INSERT INTO indicator_examples (run_id, participant, indicator, quote, ts, offset_sec, explanation, context)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
						run.ID, p.Name, string(ind.Kind), ex.Quote, ex.Timestamp, offset, ex.Explanation, ex.Context,
					)
					if err != nil {
						return fmt.Errorf("failed to insert example for run %s: %w", run.ID, err)
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*analysis.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, model, audio_path, audio_mime, participants, report,
			prompt_tokens, output_tokens, total_tokens, duration_ms, warnings
		FROM runs WHERE id = ?`, id)

	var (
		run          analysis.Run
		audioMIME    sql.NullString
		participants string
		report       string
		durationMS   int64
		warnings     sql.NullString
	)
	err := row.Scan(&run.ID, &run.CreatedAt, &run.Model, &run.AudioPath, &audioMIME,
		&participants, &report,
		&run.Usage.PromptTokens, &run.Usage.OutputTokens, &run.Usage.TotalTokens,
		&durationMS, &warnings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	run.AudioMIME = audioMIME.String
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.CreatedAt = run.CreatedAt.UTC()

	if err := json.Unmarshal([]byte(participants), &run.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report of run %s: %w", id, err)
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings of run %s: %w", id, err)
		}
	}
	if len(run.Warnings) == 0 {
		run.Warnings = nil
	}

	return &run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.created_at, r.model, r.audio_path, r.participants, r.total_tokens,
			(SELECT count(*) FROM indicator_examples e WHERE e.run_id = r.id) AS examples
		FROM runs r
		ORDER BY r.created_at DESC, r.id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}
	for rows.Next() {
		var (
			sum          RunSummary
			participants string
		)
		if err := rows.Scan(&sum.ID, &sum.CreatedAt, &sum.Model, &sum.AudioPath, &participants, &sum.TotalTokens, &sum.Examples); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(participants), &sum.Participants); err != nil {
			return nil, fmt.Errorf("failed to decode participants of run %s: %w", sum.ID, err)
		}
		sum.CreatedAt = sum.CreatedAt.UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return summaries, nil
}

// IndicatorStats aggregates stored examples per indicator across all runs,
// most frequent first.
func (s *Store) IndicatorStats(ctx context.Context) ([]IndicatorStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT indicator,
			count(*) AS examples,
			count(DISTINCT run_id) AS runs,
			count(DISTINCT run_id || '/' || participant) AS participants
		FROM indicator_examples
		GROUP BY indicator
		ORDER BY examples DESC, indicator`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator stats: %w", err)
	}
	defer rows.Close()

	stats := []IndicatorStat{}
	for rows.Next() {
		var (
			stat IndicatorStat
			kind string
		)
		if err := rows.Scan(&kind, &stat.Examples, &stat.Runs, &stat.Participants); err != nil {
			return nil, fmt.Errorf("failed to scan indicator stats: %w", err)
		}
		stat.Kind = analysis.IndicatorKind(kind)
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query indicator stats: %w", err)
	}

	return stats, nil
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM indicator_examples WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete examples of run %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
