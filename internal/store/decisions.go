package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"conductor/internal/types"
)

// UpsertDecision persists a decision. Re-recording a decision id replaces its
// metadata but never orphans snapshots that reference it.
func (s *Store) UpsertDecision(ctx context.Context, d *types.Decision) error {
	if d.ID == "" || d.TaskID == "" {
		return &types.DomainError{Kind: types.ErrValidation, Message: "decision requires id and taskId"}
	}
	considered := make(map[string]bool, len(d.Considered))
	for _, ref := range d.Considered {
		if considered[ref.ProposalID] {
			return &types.DomainError{Kind: types.ErrValidation, Message: "duplicate proposal in considered", TaskID: d.TaskID}
		}
		considered[ref.ProposalID] = true
	}
	for _, id := range d.SelectedIDs {
		if !considered[id] {
			return &types.DomainError{Kind: types.ErrValidation, Message: "selected proposal not in considered", TaskID: d.TaskID}
		}
	}
	if d.WinnerProposalID != "" {
		if len(d.SelectedIDs) > 0 {
			found := false
			for _, id := range d.SelectedIDs {
				if id == d.WinnerProposalID {
					found = true
				}
			}
			if !found {
				return &types.DomainError{Kind: types.ErrValidation, Message: "winner not in selected", TaskID: d.TaskID}
			}
		} else if !considered[d.WinnerProposalID] {
			return &types.DomainError{Kind: types.ErrValidation, Message: "winner not in considered", TaskID: d.TaskID}
		}
	}

	consideredJSON, _ := json.Marshal(d.Considered)
	achieved := 0
	if d.ConsensusAchieved {
		achieved = 1
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO decisions (id, task_id, considered, selected, winner_proposal_id,
			consensus_achieved, agreement_rate, rationale, decided_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			considered=excluded.considered, selected=excluded.selected,
			winner_proposal_id=excluded.winner_proposal_id,
			consensus_achieved=excluded.consensus_achieved,
			agreement_rate=excluded.agreement_rate, rationale=excluded.rationale,
			metadata=excluded.metadata`,
		d.ID, d.TaskID, string(consideredJSON), marshalJSON(d.SelectedIDs),
		nullString(d.WinnerProposalID), achieved, d.AgreementRate,
		nullString(d.Rationale), d.DecidedAt, marshalJSON(d.Metadata))
	if err != nil {
		return fmt.Errorf("upsert decision %s: %w", d.ID, err)
	}
	return nil
}

// LatestDecisionForTask returns the most recent decision for a task, or a
// not_found error.
func (s *Store) LatestDecisionForTask(ctx context.Context, taskID string) (*types.Decision, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, task_id, considered, selected, winner_proposal_id,
			consensus_achieved, agreement_rate, rationale, decided_at, metadata
		FROM decisions WHERE task_id = ? ORDER BY decided_at DESC, id DESC LIMIT 1`, taskID)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, &types.DomainError{Kind: types.ErrNotFound, Message: "no decision for task", TaskID: taskID}
	}
	return d, err
}

func scanDecision(r rowScanner) (*types.Decision, error) {
	var (
		d                               types.Decision
		considered, selected, winner    sql.NullString
		rationale, md                   sql.NullString
		achieved                        int
		agreement                       sql.NullFloat64
	)
	err := r.Scan(&d.ID, &d.TaskID, &considered, &selected, &winner,
		&achieved, &agreement, &rationale, &d.DecidedAt, &md)
	if err != nil {
		return nil, err
	}
	if considered.Valid {
		_ = json.Unmarshal([]byte(considered.String), &d.Considered)
	}
	d.SelectedIDs = unmarshalStrings(selected)
	d.WinnerProposalID = winner.String
	d.ConsensusAchieved = achieved != 0
	d.AgreementRate = agreement.Float64
	d.Rationale = rationale.String
	d.Metadata = unmarshalStringMap(md)
	return &d, nil
}
