// Package migration はサービスごとのSQLiteスキーマをembedされたSQLファイルから構築する。
//
// 適用したファイルはバージョンとSHA-256チェックサムをschema_migrationsに記録する。
// 適用済みのファイルが後から書き換えられた場合は起動時にエラーとして検出する。
package migration

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
)

// ErrChecksumMismatch は適用済みのマイグレーションの内容が変更されていることを表す。
var ErrChecksumMismatch = errors.New("適用済みのマイグレーションが変更されています")

// File は1つのマイグレーションファイルを表す。
type File struct {
	// Version はファイル名先頭の連番。
	Version int
	// Name はバージョンを除いた説明部分。
	Name string
	// Path はfs.FS内のパス。
	Path string
	// Checksum はファイル内容のSHA-256（16進数）。
	Checksum string
}

// Migrator は1つのデータベースに対するマイグレーションの適用を管理する。
type Migrator struct {
	db     *sql.DB
	fsys   fs.FS
	dir    string
	logger *slog.Logger
}

// New は新しいMigratorを生成する。
// dirはfsys内のディレクトリで、000001_description.up.sql 形式のファイルを読み込む。
func New(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		fsys:   fsys,
		dir:    dir,
		logger: logger.With(slog.String("component", "migration")),
	}
}

// Up は未適用のマイグレーションをバージョン順に適用し、適用したファイルを返す。
// 適用済みファイルのチェックサムが記録と異なる場合は何も適用せずErrChecksumMismatchを返す。
func (m *Migrator) Up(ctx context.Context) ([]File, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]File, 0, len(pending))
	for _, f := range pending {
		if err := m.apply(ctx, f); err != nil {
			return applied, fmt.Errorf("マイグレーション %06d の適用に失敗: %w", f.Version, err)
		}
		m.logger.Info("マイグレーションを適用しました",
			slog.Int("version", f.Version),
			slog.String("name", f.Name),
		)
		applied = append(applied, f)
	}
	return applied, nil
}

// Pending は未適用のマイグレーションをバージョン順に返す。
func (m *Migrator) Pending(ctx context.Context) ([]File, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	recorded, err := m.recorded(ctx)
	if err != nil {
		return nil, fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	files, err := Collect(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	var pending []File
	for _, f := range files {
		sum, ok := recorded[f.Version]
		if !ok {
			pending = append(pending, f)
			continue
		}
		if sum != f.Checksum {
			return nil, fmt.Errorf("%w: %06d_%s", ErrChecksumMismatch, f.Version, f.Name)
		}
	}
	return pending, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// recorded は適用済みバージョンとそのチェックサムを返す。
func (m *Migrator) recorded(ctx context.Context) (map[int]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int]string)
	for rows.Next() {
		var (
			version  int
			checksum string
		)
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		out[version] = checksum
	}
	return out, rows.Err()
}

// apply は1つのマイグレーションとその記録を同じトランザクションで書き込む。
func (m *Migrator) apply(ctx context.Context, f File) error {
	content, err := fs.ReadFile(m.fsys, f.Path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
		f.Version, f.Name, f.Checksum,
	); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}
	return tx.Commit()
}

// Collect はディレクトリからup.sqlファイルを収集し、チェックサムを付けてバージョン順に並べる。
// 同じバージョンが重複している場合はエラーを返す。
func Collect(fsys fs.FS, dir string) ([]File, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []File
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("バージョン %06d が重複しています: %s, %s", version, other, entry.Name())
		}
		seen[version] = entry.Name()

		p := path.Join(dir, entry.Name())
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("%sの読み込みに失敗: %w", p, err)
		}
		sum := sha256.Sum256(content)

		files = append(files, File{
			Version:  version,
			Name:     strings.TrimSuffix(rest, ".up.sql"),
			Path:     p,
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	slices.SortFunc(files, func(a, b File) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return files, nil
}
