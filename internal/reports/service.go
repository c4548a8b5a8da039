// Package reports exports the issuance ledger and the audit trail as CSV or
// XLSX for operators and auditors.
package reports

import (
	"context"
	"encoding/json"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/issuer"
)

// MintLister is the issuer read the ledger report needs.
type MintLister interface {
	Mints(ctx context.Context) ([]issuer.Mint, error)
}

type Service struct {
	mints  MintLister
	events events.Repository
}

func NewService(mints MintLister, eventsRepo events.Repository) *Service {
	return &Service{mints: mints, events: eventsRepo}
}

// MintLedger lists every mint with the token id range it issued.
func (s *Service) MintLedger(ctx context.Context) (Table, error) {
	mints, err := s.mints.Mints(ctx)
	if err != nil {
		return Table{}, err
	}

	table := Table{
		Name:    "Mints",
		Columns: []string{"mint_id", "project_id", "to", "tokens_minted", "first_token_id", "last_token_id", "minted_at"},
		Rows:    make([][]any, 0, len(mints)),
	}
	for _, m := range mints {
		table.Rows = append(table.Rows, []any{
			m.ID, m.ProjectID, m.To.Hex(), m.Count, m.FirstTokenID, m.FirstTokenID + m.Count - 1, m.MintedAt,
		})
	}
	return table, nil
}

// AuditTrail lists the stored events matching filter.
func (s *Service) AuditTrail(ctx context.Context, filter events.Filter) (Table, error) {
	records, err := s.events.List(ctx, filter)
	if err != nil {
		return Table{}, err
	}

	table := Table{
		Name:    "Events",
		Columns: []string{"id", "type", "component", "emitted_at", "data"},
		Rows:    make([][]any, 0, len(records)),
	}
	for _, r := range records {
		data := string(r.Data)
		if compact, err := json.Marshal(json.RawMessage(r.Data)); err == nil {
			data = string(compact)
		}
		table.Rows = append(table.Rows, []any{r.ID, string(r.Type), r.Component, r.EmittedAt, data})
	}
	return table, nil
}
