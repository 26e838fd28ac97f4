// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite 以 SQLite（modernc.org/sqlite，純 Go、免 cgo）實作 store.Store。
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/settings"
	"github.com/zintix-labs/drawlab/store"
	_ "modernc.org/sqlite"
)

// 每條連線都會套用的 pragma。
const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

// Store 是 SQLite 版的 store.Store。
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

// Open 開啟（必要時建立）資料庫檔案並套用 schema。
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errs.NewFatal("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+pragmas)
	if err != nil {
		return nil, errs.Wrap(err, "open sqlite db")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "ping sqlite db")
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "run migrations")
	}
	return &Store{db: db}, nil
}

// Close 關閉底層連線。重複呼叫安全。
func (s *Store) Close() error {
	if s == nil || s.db == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context, session string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.db == nil || s.closed.Load() {
		return "", store.ErrClosed
	}
	return store.CheckID(session)
}

func now() int64 { return time.Now().UTC().UnixMilli() }

// touch 建立 session 列或更新其 updated_at。
func touch(ctx context.Context, tx *sql.Tx, id string) error {
	ts := now()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		id, ts, ts,
	)
	if err != nil {
		return errs.Wrap(err, "touch session")
	}
	return nil
}

// inTx 在交易中執行 fn，並先確保 session 列存在。
func (s *Store) inTx(ctx context.Context, id string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, "begin tx")
	}
	if err := touch(ctx, tx, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Store) LoadSettings(ctx context.Context, session string) (settings.Settings, error) {
	id, err := s.check(ctx, session)
	if err != nil {
		return settings.Settings{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session_settings WHERE session_id = ?`, id)
	if err != nil {
		return settings.Settings{}, errs.Wrap(err, "query settings")
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return settings.Settings{}, errs.Wrap(err, "scan settings")
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return settings.Settings{}, errs.Wrap(err, "iterate settings")
	}
	if len(kv) == 0 {
		return settings.Settings{}, store.ErrNotFound
	}
	return settings.FromKV(kv)
}

func (s *Store) SaveSettings(ctx context.Context, session string, st settings.Settings) error {
	id, err := s.check(ctx, session)
	if err != nil {
		return err
	}
	if err := st.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, id, func(tx *sql.Tx) error {
		for k, v := range st.ToKV() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_settings (session_id, key, value) VALUES (?, ?, ?)
				 ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value`,
				id, k, v,
			); err != nil {
				return errs.WrapWithExtra(err, "save setting", k)
			}
		}
		return nil
	})
}

func (s *Store) AppendHistory(ctx context.Context, session string, values ...int) error {
	id, err := s.check(ctx, session)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	return s.inTx(ctx, id, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO draw_history (session_id, value, drawn_at) VALUES (?, ?, ?)`)
		if err != nil {
			return errs.Wrap(err, "prepare history insert")
		}
		defer stmt.Close()
		ts := now()
		for _, v := range values {
			if _, err := stmt.ExecContext(ctx, id, v, ts); err != nil {
				return errs.Wrap(err, "append history")
			}
		}
		return nil
	})
}

func (s *Store) LoadHistory(ctx context.Context, session string) ([]int, error) {
	id, err := s.check(ctx, session)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM draw_history WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, errs.Wrap(err, "query history")
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, errs.Wrap(err, "scan history")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate history")
	}
	return out, nil
}

func (s *Store) ClearHistory(ctx context.Context, session string) error {
	id, err := s.check(ctx, session)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM draw_history WHERE session_id = ?`, id); err != nil {
		return errs.Wrap(err, "clear history")
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context, session string) (*draw.State, error) {
	id, err := s.check(ctx, session)
	if err != nil {
		return nil, err
	}
	var blob []byte
	err = s.db.QueryRowContext(ctx, `SELECT state_zstd FROM engine_snapshots WHERE session_id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errs.Wrap(err, "query snapshot")
	}
	base, err := store.DecodeSnapshot(blob)
	if err != nil {
		return nil, err
	}

	var cur *store.Cursor
	var c store.Cursor
	err = s.db.QueryRowContext(ctx, `SELECT cycle, core FROM engine_cursor WHERE session_id = ?`, id).Scan(&c.Cycle, &c.Core)
	switch {
	case err == nil:
		cur = &c
	case err != sql.ErrNoRows:
		return nil, errs.Wrap(err, "query cursor")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT cycle, value FROM cycle_progress WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, errs.Wrap(err, "query cycle progress")
	}
	defer rows.Close()
	var steps []store.Progress
	for rows.Next() {
		var p store.Progress
		if err := rows.Scan(&p.Cycle, &p.Value); err != nil {
			return nil, errs.Wrap(err, "scan cycle progress")
		}
		steps = append(steps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate cycle progress")
	}
	if cur == nil && len(steps) == 0 {
		return base, nil
	}
	return store.Replay(base, cur, steps), nil
}

// SaveSnapshot 取代快照並清掉之前累積的週期進度。
func (s *Store) SaveSnapshot(ctx context.Context, session string, st *draw.State) error {
	id, err := s.check(ctx, session)
	if err != nil {
		return err
	}
	blob, err := store.EncodeSnapshot(st)
	if err != nil {
		return err
	}
	return s.inTx(ctx, id, func(tx *sql.Tx) error {
		return replaceSnapshot(ctx, tx, id, blob)
	})
}

func replaceSnapshot(ctx context.Context, tx *sql.Tx, id string, blob []byte) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO engine_snapshots (session_id, state_zstd, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET state_zstd = excluded.state_zstd, updated_at = excluded.updated_at`,
		id, blob, now(),
	); err != nil {
		return errs.Wrap(err, "save snapshot")
	}
	for _, q := range []string{
		`DELETE FROM cycle_progress WHERE session_id = ?`,
		`DELETE FROM engine_cursor WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return errs.Wrap(err, "clear cycle progress")
		}
	}
	return nil
}

// CommitDraw 在一個交易內寫入紀錄列與週期進度（或新的快照）。
//
// 只更新既有的 session 列，不會建立：已刪除的 session 回傳 store.ErrNotFound。
func (s *Store) CommitDraw(ctx context.Context, session string, c store.DrawCommit) error {
	id, err := s.check(ctx, session)
	if err != nil {
		return err
	}
	var blob []byte
	if c.Base != nil {
		base := *c.Base
		base.History = nil
		if blob, err = store.EncodeSnapshot(&base); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, "begin tx")
	}
	if err := commitDraw(ctx, tx, id, c, blob); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, "commit tx")
	}
	return nil
}

func commitDraw(ctx context.Context, tx *sql.Tx, id string, c store.DrawCommit, blob []byte) error {
	ts := now()
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, ts, id)
	if err != nil {
		return errs.Wrap(err, "touch session")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errs.Wrap(err, "touch session")
	} else if n == 0 {
		return errs.With(store.ErrNotFound, id)
	}
	if blob == nil {
		var found int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM engine_snapshots WHERE session_id = ?`, id).Scan(&found)
		if err == sql.ErrNoRows {
			return errs.With(store.ErrNotFound, id)
		}
		if err != nil {
			return errs.Wrap(err, "query snapshot")
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO draw_history (session_id, value, drawn_at) VALUES (?, ?, ?)`, id, c.Value, ts,
	); err != nil {
		return errs.Wrap(err, "append history")
	}
	if blob != nil {
		return replaceSnapshot(ctx, tx, id, blob)
	}
	if c.InCycle {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycle_progress (session_id, cycle, value) VALUES (?, ?, ?)`, id, c.Cycle, c.Value,
		); err != nil {
			return errs.Wrap(err, "append cycle progress")
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO engine_cursor (session_id, cycle, core, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET cycle = excluded.cycle, core = excluded.core, updated_at = excluded.updated_at`,
		id, c.Cycle, c.Core, ts,
	); err != nil {
		return errs.Wrap(err, "save cursor")
	}
	return nil
}

func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil || s.closed.Load() {
		return nil, store.ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY id`)
	if err != nil {
		return nil, errs.Wrap(err, "query sessions")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(err, "scan session")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate sessions")
	}
	return ids, nil
}

// DeleteSession 刪除 session 的所有資料。不依賴 ON DELETE CASCADE，逐表刪除。
func (s *Store) DeleteSession(ctx context.Context, session string) error {
	id, err := s.check(ctx, session)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, "begin tx")
	}
	for _, q := range []string{
		`DELETE FROM engine_cursor WHERE session_id = ?`,
		`DELETE FROM cycle_progress WHERE session_id = ?`,
		`DELETE FROM engine_snapshots WHERE session_id = ?`,
		`DELETE FROM draw_history WHERE session_id = ?`,
		`DELETE FROM session_settings WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			_ = tx.Rollback()
			return errs.Wrap(err, "delete session")
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, "commit tx")
	}
	return nil
}
