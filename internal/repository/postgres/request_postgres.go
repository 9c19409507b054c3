package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"supplydocs/internal/model"
	"supplydocs/internal/repository"
)

// RequestPostgres is a PostgreSQL implementation of repository.RequestRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type RequestPostgres struct {
	db *sql.DB
}

// NewRequestPostgres creates a new RequestPostgres repository.
func NewRequestPostgres(db *sql.DB) *RequestPostgres {
	return &RequestPostgres{db: db}
}

var _ repository.RequestRepository = (*RequestPostgres)(nil)

// pendingQuery aggregates the item/vendor pairs of each pending request into
// a single comma-joined string and resolves the involved user display names.
// Approver and courier are optional roles, hence the LEFT JOINs.
const pendingQuery = `
	SELECT sr.id, sr.status,
	       string_agg(concat(i.name, ' - ', v.name), ', ') AS items,
	       concat(cu.name, ' ', cu.surname) AS created_by,
	       concat(au.name, ' ', au.surname) AS approved_by,
	       concat(du.name, ' ', du.surname) AS delivered_by,
	       sr.claims_text
	FROM supply_requests sr
	LEFT JOIN users cu ON cu.id = sr.created_by_user_id
	LEFT JOIN users au ON au.id = sr.approved_by_user_id
	LEFT JOIN users du ON du.id = sr.delivered_by_user_id
	JOIN item_supply_requests isr ON isr.supply_request_id = sr.id
	JOIN items i ON isr.item_id = i.id
	JOIN vendors v ON v.id = i.vendor_id
	WHERE sr.status = $1 OR sr.status = $2
	GROUP BY sr.id, sr.status, cu.name, cu.surname, au.name, au.surname, du.name, du.surname, sr.claims_text
`

// FetchPendingDocuments queries every request in Approved or
// DeliveredWithClaims status and maps each row to the matching record type.
func (r *RequestPostgres) FetchPendingDocuments(ctx context.Context) ([]model.PendingDocument, error) {
	rows, err := r.db.QueryContext(ctx, pendingQuery,
		int(model.StatusApproved), int(model.StatusDeliveredWithClaims))
	if err != nil {
		return nil, fmt.Errorf("%w: query pending documents: %w", repository.ErrRepository, err)
	}
	defer rows.Close()

	var pending []model.PendingDocument
	for rows.Next() {
		var (
			id, status                         int
			items                              string
			createdBy, approvedBy, deliveredBy sql.NullString
			claimsText                         sql.NullString
		)
		if err := rows.Scan(&id, &status, &items, &createdBy, &approvedBy, &deliveredBy, &claimsText); err != nil {
			return nil, fmt.Errorf("%w: scan pending document row: %w", repository.ErrRepository, err)
		}

		base := model.SupplyDocument{
			RequestID:    id,
			OwnerName:    strings.TrimSpace(createdBy.String),
			ApproverName: strings.TrimSpace(approvedBy.String),
			Items:        splitItems(items),
		}

		switch model.RequestStatus(status) {
		case model.StatusApproved:
			doc := base
			pending = append(pending, model.PendingDocument{Kind: model.KindSupply, Supply: &doc})
		case model.StatusDeliveredWithClaims:
			pending = append(pending, model.PendingDocument{
				Kind: model.KindClaims,
				Claims: &model.ClaimsDocument{
					SupplyDocument: base,
					CourierName:    strings.TrimSpace(deliveredBy.String),
					ClaimsText:     claimsText.String,
				},
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pending documents: %w", repository.ErrRepository, err)
	}

	return pending, nil
}

// UpdateStatus performs a blind conditional update keyed by request id and
// reports whether a row matched.
func (r *RequestPostgres) UpdateStatus(ctx context.Context, requestID int, status model.RequestStatus) (bool, error) {
	const q = `UPDATE supply_requests SET status = $1, last_updated_at = now() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, q, int(status), requestID)
	if err != nil {
		return false, fmt.Errorf("%w: update status: %w", repository.ErrRepository, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %w", repository.ErrRepository, err)
	}
	return affected > 0, nil
}

// splitItems undoes the string_agg comma join into per-item display lines.
func splitItems(agg string) []string {
	parts := strings.Split(agg, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			items = append(items, s)
		}
	}
	return items
}
