package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/memberbook/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用した会員リポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// Insert は会員を1行作成し、採番されたIDを返す。
// 単一のINSERT文のため部分的な行の状態は観測されない。
func (r *PostgresMemberRepo) Insert(ctx context.Context, member *model.Member) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO members (title, first_name, last_name, birthdate, profile_image_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		member.Title, member.FirstName, member.LastName, member.Birthdate, member.ProfileImageURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert member: %w", err)
	}

	return id, nil
}

// List は全会員を取得する。明示的なORDER BYは付けない。
func (r *PostgresMemberRepo) List(ctx context.Context) ([]*model.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, first_name, last_name, birthdate, profile_image_url, last_updated
		 FROM members`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*model.Member{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// FindByID は指定IDの会員を取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByID(ctx context.Context, id int64) (*model.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, first_name, last_name, birthdate, profile_image_url, last_updated
		 FROM members WHERE id = $1`,
		id,
	)

	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member by ID: %w", err)
	}

	return member, nil
}

// Update は指定IDの会員の全フィールドを上書きし、last_updatedをNOW()で更新する。
func (r *PostgresMemberRepo) Update(ctx context.Context, member *model.Member) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE members
		 SET title = $1, first_name = $2, last_name = $3, birthdate = $4,
		     profile_image_url = $5, last_updated = NOW()
		 WHERE id = $6`,
		member.Title, member.FirstName, member.LastName, member.Birthdate,
		member.ProfileImageURL, member.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}

	return nil
}

// Delete は指定IDの会員を削除し、削除された行数を返す。
func (r *PostgresMemberRepo) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM members WHERE id = $1`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ListImageURLs は画像参照を持つ全会員の画像パスを返す。
func (r *PostgresMemberRepo) ListImageURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT profile_image_url FROM members WHERE profile_image_url IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list image URLs: %w", err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan image URL: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate image URLs: %w", err)
	}

	return urls, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMember は1行を*model.Memberに読み出す。
func scanMember(row rowScanner) (*model.Member, error) {
	member := &model.Member{}
	var imageURL sql.NullString
	var lastUpdated sql.NullTime

	if err := row.Scan(
		&member.ID, &member.Title, &member.FirstName, &member.LastName,
		&member.Birthdate, &imageURL, &lastUpdated,
	); err != nil {
		return nil, err
	}

	if imageURL.Valid {
		member.ProfileImageURL = &imageURL.String
	}
	if lastUpdated.Valid {
		member.LastUpdated = &lastUpdated.Time
	}

	return member, nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
