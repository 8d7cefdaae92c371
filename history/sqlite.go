package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const eventBuffer = 256

// SQLiteRecorder 由单个后台协程把事件写入本地 sqlite 文件
type SQLiteRecorder struct {
	db     *sql.DB
	events chan Event
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewSQLiteRecorder 打开数据库并建表，父目录不存在时自动创建
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite 数据库路径为空")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &SQLiteRecorder{
		db:     db,
		events: make(chan Event, eventBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go r.run()
	return r, nil
}

// ensureSchema 初始化表结构
func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS game_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    round INTEGER NOT NULL,
    phase TEXT NOT NULL,
    handle INTEGER NOT NULL DEFAULT 0,
    detail TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL
)`); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_game_events_game ON game_events(game_id, id)`)
	return err
}

// Record 事件入队，缓冲区满时丢弃事件
func (r *SQLiteRecorder) Record(e Event) {
	select {
	case <-r.quit:
		return
	default:
	}

	select {
	case r.events <- e:
	default:
		r.logger.Warn("归档缓冲区已满，丢弃事件",
			zap.String("game_id", e.GameID),
			zap.String("kind", e.Kind))
	}
}

func (r *SQLiteRecorder) run() {
	defer close(r.done)
	for {
		select {
		case e := <-r.events:
			r.insert(e)
		case <-r.quit:
			for {
				select {
				case e := <-r.events:
					r.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (r *SQLiteRecorder) insert(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO game_events (game_id, kind, round, phase, handle, detail, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.GameID, e.Kind, e.Round, e.Phase, e.Handle, e.Detail, e.At.UnixMilli())
	if err != nil {
		r.logger.Error("归档事件失败",
			zap.String("game_id", e.GameID),
			zap.String("kind", e.Kind),
			zap.Error(err))
	}
}

// Events 按写入顺序返回某局游戏的事件
func (r *SQLiteRecorder) Events(ctx context.Context, gameID string) ([]Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT game_id, kind, round, phase, handle, detail, created_at_ms
FROM game_events
WHERE game_id = ?
ORDER BY id ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e  Event
			ms int64
		)
		if err := rows.Scan(&e.GameID, &e.Kind, &e.Round, &e.Phase, &e.Handle, &e.Detail, &ms); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(ms)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close 写完队列中的事件后关闭数据库
func (r *SQLiteRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	r.once.Do(func() {
		close(r.quit)
	})
	<-r.done
	return r.db.Close()
}
