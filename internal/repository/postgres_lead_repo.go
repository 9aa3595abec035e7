package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/eryai/salesdash/internal/model"
)

// leadColumns はSELECT/RETURNINGで使うカラム順。scanLeadと対応する。
const leadColumns = `id, company_name, industry, website, phone, email,
	contact_person, contact_title, address, city, postal_code, country,
	employee_count, revenue_estimate, social_media, notes,
	status, lead_score, source, created_at, updated_at`

// updatableLeadColumns はUpdateで変更を許可するカラム。
var updatableLeadColumns = map[string]bool{
	"company_name":     true,
	"industry":         true,
	"website":          true,
	"phone":            true,
	"email":            true,
	"contact_person":   true,
	"contact_title":    true,
	"address":          true,
	"city":             true,
	"postal_code":      true,
	"country":          true,
	"employee_count":   true,
	"revenue_estimate": true,
	"social_media":     true,
	"notes":            true,
	"status":           true,
	"lead_score":       true,
}

// PostgresLeadRepo はPostgreSQLを使用したリードリポジトリ。
type PostgresLeadRepo struct {
	db *sql.DB
}

// NewPostgresLeadRepo はPostgresLeadRepoを生成する。
func NewPostgresLeadRepo(db *sql.DB) *PostgresLeadRepo {
	return &PostgresLeadRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s rowScanner) (*model.Lead, error) {
	lead := &model.Lead{}
	var industry, website, phone, email, contactPerson, contactTitle sql.NullString
	var address, city, postalCode, country, revenue, notes sql.NullString
	var employeeCount sql.NullInt64
	var socialMedia []byte
	var status string

	if err := s.Scan(
		&lead.ID, &lead.CompanyName, &industry, &website, &phone, &email,
		&contactPerson, &contactTitle, &address, &city, &postalCode, &country,
		&employeeCount, &revenue, &socialMedia, &notes,
		&status, &lead.LeadScore, &lead.Source, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return nil, err
	}

	lead.Industry = nullStringPtr(industry)
	lead.Website = nullStringPtr(website)
	lead.Phone = nullStringPtr(phone)
	lead.Email = nullStringPtr(email)
	lead.ContactPerson = nullStringPtr(contactPerson)
	lead.ContactTitle = nullStringPtr(contactTitle)
	lead.Address = nullStringPtr(address)
	lead.City = nullStringPtr(city)
	lead.PostalCode = nullStringPtr(postalCode)
	lead.Country = nullStringPtr(country)
	lead.EmployeeCount = nullIntPtr(employeeCount)
	lead.RevenueEstimate = nullStringPtr(revenue)
	lead.Notes = nullStringPtr(notes)
	lead.Status = model.LeadStatus(status)
	if len(socialMedia) > 0 {
		lead.SocialMedia = socialMedia
	}

	return lead, nil
}

// buildLeadWhere はフィルタ条件からWHERE句と引数を組み立てる。
// 条件がない場合は空文字列を返す。
func buildLeadWhere(filter model.LeadFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status::text = $%d", len(args)))
	}
	if filter.Industry != "" {
		args = append(args, filter.Industry)
		conds = append(conds, fmt.Sprintf("industry = $%d", len(args)))
	}
	if filter.City != "" {
		args = append(args, containsPattern(filter.City))
		conds = append(conds, fmt.Sprintf("city ILIKE $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(company_name ILIKE $%d OR contact_person ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List はフィルタ条件に一致するリードと総件数を取得する。
func (r *PostgresLeadRepo) List(ctx context.Context, filter model.LeadFilter) ([]*model.Lead, int, error) {
	where, args := buildLeadWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("リード件数の取得に失敗しました: %w", err)
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("リード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	leads := []*model.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("リード行の読み取りに失敗しました: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("リード一覧の走査に失敗しました: %w", err)
	}

	return leads, total, nil
}

// FindByID は指定IDのリードを取得する。見つからない場合はnilを返す。
func (r *PostgresLeadRepo) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := scanLead(r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リードの取得に失敗しました: %w", err)
	}
	return lead, nil
}

// Create はリードを作成する。statusはDBの既定値（new）になる。
func (r *PostgresLeadRepo) Create(ctx context.Context, in *model.NewLead) (*model.Lead, error) {
	lead, err := scanLead(r.db.QueryRowContext(ctx,
		`INSERT INTO leads (company_name, industry, website, phone, email,
		                    contact_person, contact_title, address, city, postal_code,
		                    country, employee_count, revenue_estimate, social_media,
		                    notes, lead_score, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING `+leadColumns,
		in.CompanyName, in.Industry, in.Website, in.Phone, in.Email,
		in.ContactPerson, in.ContactTitle, in.Address, in.City, in.PostalCode,
		in.Country, in.EmployeeCount, in.RevenueEstimate, jsonParam(in.SocialMedia),
		in.Notes, in.LeadScore, in.Source,
	))
	if err != nil {
		return nil, fmt.Errorf("リードの作成に失敗しました: %w", err)
	}
	return lead, nil
}

// buildLeadUpdate はUPDATE文のSET句と引数を組み立てる。
// 許可リスト外のキーは無視する。引数の先頭はidのために空けておく。
func buildLeadUpdate(patch model.LeadPatch) (string, []any) {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		if updatableLeadColumns[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", nil
	}
	// 引数順を安定させる
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		v := patch[k]
		if raw, ok := v.(json.RawMessage); ok {
			v = jsonParam(raw)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", k, i+2))
	}
	return strings.Join(sets, ", "), args
}

// Update は許可リストのカラムを更新し、更新後の行を返す。
// 該当行がない場合はnilを返す。
func (r *PostgresLeadRepo) Update(ctx context.Context, id string, patch model.LeadPatch) (*model.Lead, error) {
	set, args := buildLeadUpdate(patch)
	if set == "" {
		return nil, fmt.Errorf("更新対象のカラムがありません")
	}

	args = append([]any{id}, args...)
	lead, err := scanLead(r.db.QueryRowContext(ctx,
		`UPDATE leads SET `+set+` WHERE id = $1 RETURNING `+leadColumns,
		args...,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リードの更新に失敗しました: %w", err)
	}
	return lead, nil
}

// Delete は指定IDのリードを削除する。存在しないIDでもエラーにしない。
func (r *PostgresLeadRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("リードの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LeadRepository = (*PostgresLeadRepo)(nil)
