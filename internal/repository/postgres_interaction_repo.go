package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eryai/salesdash/internal/model"
)

// PostgresInteractionRepo はPostgreSQLを使用したインタラクションログリポジトリ。
type PostgresInteractionRepo struct {
	db *sql.DB
}

// NewPostgresInteractionRepo はPostgresInteractionRepoを生成する。
func NewPostgresInteractionRepo(db *sql.DB) *PostgresInteractionRepo {
	return &PostgresInteractionRepo{db: db}
}

// Create はインタラクションを追記し、採番されたIDと作成日時をinteractionに設定する。
func (r *PostgresInteractionRepo) Create(ctx context.Context, interaction *model.LeadInteraction) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO lead_interactions (lead_id, type, content, metadata, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		interaction.LeadID, string(interaction.Type), interaction.Content,
		jsonParam(interaction.Metadata), interaction.CreatedBy,
	).Scan(&interaction.ID, &interaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("インタラクションの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByLead はリードのインタラクションをcreated_at降順で取得する。
func (r *PostgresInteractionRepo) ListByLead(ctx context.Context, leadID string) ([]*model.LeadInteraction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lead_id, type, content, metadata, created_by, created_at
		 FROM lead_interactions
		 WHERE lead_id = $1
		 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("インタラクション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	interactions := []*model.LeadInteraction{}
	for rows.Next() {
		in := &model.LeadInteraction{}
		var typ string
		var metadata []byte
		var createdBy sql.NullString
		if err := rows.Scan(&in.ID, &in.LeadID, &typ, &in.Content, &metadata, &createdBy, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("インタラクション行の読み取りに失敗しました: %w", err)
		}
		in.Type = model.InteractionType(typ)
		if len(metadata) > 0 {
			in.Metadata = metadata
		}
		in.CreatedBy = nullStringPtr(createdBy)
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("インタラクション一覧の走査に失敗しました: %w", err)
	}

	return interactions, nil
}

// compile-time interface check
var _ InteractionRepository = (*PostgresInteractionRepo)(nil)
