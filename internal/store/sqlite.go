package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/zash3dit/zashedit/internal/db"
	"github.com/zash3dit/zashedit/internal/timeline"
)

const mappingVersionKey = "enum_mapping_version"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteBackend stores projects in the schema created by package db.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend records the enum mapping version on first use and refuses
// a database written with a different one.
func NewSQLiteBackend(ctx context.Context, database *db.DB) (*SQLiteBackend, error) {
	stored, ok, err := database.ConfigValue(ctx, mappingVersionKey)
	if err != nil {
		return nil, err
	}
	want := strconv.Itoa(timeline.MappingVersion)
	if !ok {
		if err := database.SetConfigValue(ctx, mappingVersionKey, want); err != nil {
			return nil, err
		}
	} else if stored != want {
		return nil, fmt.Errorf("database uses enum mapping version %s, this build understands %s", stored, want)
	}
	return &SQLiteBackend{db: database.Conn()}, nil
}

func (b *SQLiteBackend) ListProjects(ctx context.Context) ([]*timeline.Project, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, name, created_at, modified_at, resolution, frame_rate
		FROM projects ORDER BY modified_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	var projects []*timeline.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range projects {
		if err := loadChildren(ctx, b.db, p); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (b *SQLiteBackend) LoadProject(ctx context.Context, id int64) (*timeline.Project, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, modified_at, resolution, frame_rate
		FROM projects WHERE id = ?
	`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, b.db, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *SQLiteBackend) InsertProject(ctx context.Context, p *timeline.Project) error {
	return b.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO projects (name, created_at, modified_at, resolution, frame_rate)
			VALUES (?, ?, ?, ?, ?)
		`, p.Name, p.CreatedAt, p.ModifiedAt, p.Resolution.String(), p.FrameRate)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = id
		return insertChildren(ctx, tx, p)
	})
}

func (b *SQLiteBackend) UpdateProject(ctx context.Context, p *timeline.Project) (bool, error) {
	found := false
	err := b.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET name = ?, modified_at = ?, resolution = ?, frame_rate = ?
			WHERE id = ?
		`, p.Name, p.ModifiedAt, p.Resolution.String(), p.FrameRate, p.ID)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true

		for _, table := range []string{"video_clips", "audio_clips", "text_overlays"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE project_id = ?", p.ID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return insertChildren(ctx, tx, p)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (b *SQLiteBackend) DeleteProject(ctx context.Context, id int64) (bool, error) {
	res, err := b.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (b *SQLiteBackend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*timeline.Project, error) {
	var p timeline.Project
	var resolution string
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.ModifiedAt, &resolution, &p.FrameRate); err != nil {
		return nil, err
	}
	res, err := timeline.ParseResolution(resolution)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", p.ID, err)
	}
	p.Resolution = res
	return &p, nil
}

func loadChildren(ctx context.Context, q querier, p *timeline.Project) error {
	var err error
	if p.VideoClips, err = loadVideoClips(ctx, q, p.ID); err != nil {
		return fmt.Errorf("load video clips: %w", err)
	}
	if p.AudioClips, err = loadAudioClips(ctx, q, p.ID); err != nil {
		return fmt.Errorf("load audio clips: %w", err)
	}
	if p.TextOverlays, err = loadTextOverlays(ctx, q, p.ID); err != nil {
		return fmt.Errorf("load text overlays: %w", err)
	}
	return nil
}

func loadVideoClips(ctx context.Context, q querier, projectID int64) ([]timeline.VideoClip, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, file_path, start_time, duration, position, trim_start, trim_end,
		       filter, brightness, contrast, saturation, playback_speed, transition_type, transition_duration
		FROM video_clips WHERE project_id = ? ORDER BY position, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clips := []timeline.VideoClip{}
	for rows.Next() {
		var c timeline.VideoClip
		var filter, transition string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.FilePath, &c.StartTime, &c.Duration, &c.Position,
			&c.TrimStart, &c.TrimEnd, &filter, &c.Brightness, &c.Contrast, &c.Saturation,
			&c.PlaybackSpeed, &transition, &c.TransitionDuration); err != nil {
			return nil, err
		}
		if c.Filter, err = timeline.ParseFilter(filter); err != nil {
			return nil, fmt.Errorf("video clip %d: %w", c.ID, err)
		}
		if c.TransitionType, err = timeline.ParseTransition(transition); err != nil {
			return nil, fmt.Errorf("video clip %d: %w", c.ID, err)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func loadAudioClips(ctx context.Context, q querier, projectID int64) ([]timeline.AudioClip, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, file_path, start_time, duration, position, volume
		FROM audio_clips WHERE project_id = ? ORDER BY position, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clips := []timeline.AudioClip{}
	for rows.Next() {
		var a timeline.AudioClip
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.FilePath, &a.StartTime, &a.Duration, &a.Position, &a.Volume); err != nil {
			return nil, err
		}
		clips = append(clips, a)
	}
	return clips, rows.Err()
}

func loadTextOverlays(ctx context.Context, q querier, projectID int64) ([]timeline.TextOverlay, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, text, start_time, duration, position, x, y, font_size, color
		FROM text_overlays WHERE project_id = ? ORDER BY position, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overlays := []timeline.TextOverlay{}
	for rows.Next() {
		var o timeline.TextOverlay
		if err := rows.Scan(&o.ID, &o.ProjectID, &o.Text, &o.StartTime, &o.Duration, &o.Position,
			&o.X, &o.Y, &o.FontSize, &o.Color); err != nil {
			return nil, err
		}
		overlays = append(overlays, o)
	}
	return overlays, rows.Err()
}

// insertChildren writes every child row, letting SQLite allocate ids for
// children that have none. AUTOINCREMENT never hands out a deleted id again.
func insertChildren(ctx context.Context, q querier, p *timeline.Project) error {
	for i := range p.VideoClips {
		c := &p.VideoClips[i]
		c.ProjectID = p.ID
		id, err := insertRow(ctx, q, "video_clips", c.ID,
			[]string{"project_id", "file_path", "start_time", "duration", "position", "trim_start", "trim_end",
				"filter", "brightness", "contrast", "saturation", "playback_speed", "transition_type", "transition_duration"},
			c.ProjectID, c.FilePath, c.StartTime, c.Duration, c.Position, c.TrimStart, c.TrimEnd,
			c.Filter.String(), c.Brightness, c.Contrast, c.Saturation, c.PlaybackSpeed,
			c.TransitionType.String(), c.TransitionDuration)
		if err != nil {
			return fmt.Errorf("insert video clip: %w", err)
		}
		c.ID = id
	}
	for i := range p.AudioClips {
		a := &p.AudioClips[i]
		a.ProjectID = p.ID
		id, err := insertRow(ctx, q, "audio_clips", a.ID,
			[]string{"project_id", "file_path", "start_time", "duration", "position", "volume"},
			a.ProjectID, a.FilePath, a.StartTime, a.Duration, a.Position, a.Volume)
		if err != nil {
			return fmt.Errorf("insert audio clip: %w", err)
		}
		a.ID = id
	}
	for i := range p.TextOverlays {
		o := &p.TextOverlays[i]
		o.ProjectID = p.ID
		id, err := insertRow(ctx, q, "text_overlays", o.ID,
			[]string{"project_id", "text", "start_time", "duration", "position", "x", "y", "font_size", "color"},
			o.ProjectID, o.Text, o.StartTime, o.Duration, o.Position, o.X, o.Y, o.FontSize, o.Color)
		if err != nil {
			return fmt.Errorf("insert text overlay: %w", err)
		}
		o.ID = id
	}
	return nil
}

func insertRow(ctx context.Context, q querier, table string, id int64, cols []string, vals ...any) (int64, error) {
	if id != 0 {
		cols = append([]string{"id"}, cols...)
		vals = append([]any{id}, vals...)
	}
	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (?" + strings.Repeat(", ?", len(cols)-1) + ")"
	res, err := q.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}
	return res.LastInsertId()
}
