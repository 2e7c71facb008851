// internal/infra/database/postgres_member_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"membership_compliance_bot/internal/domain/member"
)

type PostgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

func (r *PostgresMemberRepository) Upsert(ctx context.Context, m *member.Member) error {
	query := `INSERT INTO group_members (group_id, user_id, username, first_name, is_bot, joined_at)
               VALUES ($1, $2, $3, $4, $5, NOW())
               ON CONFLICT (group_id, user_id) DO UPDATE
                   SET username = EXCLUDED.username,
                       first_name = EXCLUDED.first_name,
                       is_bot = EXCLUDED.is_bot`
	if _, err := r.db.ExecContext(ctx, query, m.GroupID, m.UserID, m.Username, m.FirstName, m.IsBot); err != nil {
		return fmt.Errorf("error upserting group member: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) Remove(ctx context.Context, groupID, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("error removing group member: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) ListByGroup(ctx context.Context, groupID int64) ([]*member.Member, error) {
	query := `SELECT group_id, user_id, username, first_name, is_bot, joined_at
               FROM group_members WHERE group_id = $1 ORDER BY joined_at`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing group members: %w", err)
	}
	defer rows.Close()

	members := make([]*member.Member, 0)
	for rows.Next() {
		m := &member.Member{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Username, &m.FirstName, &m.IsBot, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("error scanning group member: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group members: %w", err)
	}
	return members, nil
}
