package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"conductor/internal/types"
)

// InsertProposal persists a proposal. Proposals are immutable once created.
func (s *Store) InsertProposal(ctx context.Context, p *types.Proposal) error {
	if p.ID == "" || p.TaskID == "" || p.AgentID == "" {
		return &types.DomainError{Kind: types.ErrValidation, Message: "proposal requires id, taskId and agentId"}
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return &types.DomainError{Kind: types.ErrValidation, Message: "confidence outside [0,1]", TaskID: p.TaskID}
	}
	if p.Tokens.In < 0 || p.Tokens.Out < 0 {
		return &types.DomainError{Kind: types.ErrValidation, Message: "negative token usage", TaskID: p.TaskID}
	}
	content, err := types.CanonicalContent(p.Content)
	if err != nil {
		return err
	}

	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO proposals (id, task_id, agent_id, input_type, content,
			confidence, tokens_in, tokens_out, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TaskID, p.AgentID, nullString(p.InputType), content,
		p.Confidence, p.Tokens.In, p.Tokens.Out, p.CreatedAt, marshalJSON(p.Metadata))
	if err != nil {
		return fmt.Errorf("insert proposal %s: %w", p.ID, err)
	}
	return nil
}

// GetProposal loads a proposal by id.
func (s *Store) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, task_id, agent_id, input_type, content, confidence,
			tokens_in, tokens_out, created_at, metadata
		FROM proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, &types.DomainError{Kind: types.ErrNotFound, Message: "proposal not found"}
	}
	return p, err
}

// ProposalsForTask returns all proposals for a task in insertion order.
// Consensus relies on this ordering.
func (s *Store) ProposalsForTask(ctx context.Context, taskID string) ([]*types.Proposal, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, task_id, agent_id, input_type, content, confidence,
			tokens_in, tokens_out, created_at, metadata
		FROM proposals WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("proposals for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []*types.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProposal(r rowScanner) (*types.Proposal, error) {
	var (
		p                      types.Proposal
		inputType, content, md sql.NullString
	)
	err := r.Scan(&p.ID, &p.TaskID, &p.AgentID, &inputType, &content,
		&p.Confidence, &p.Tokens.In, &p.Tokens.Out, &p.CreatedAt, &md)
	if err != nil {
		return nil, err
	}
	p.InputType = inputType.String
	p.Metadata = unmarshalStringMap(md)
	if content.Valid {
		var v interface{}
		if err := json.Unmarshal([]byte(content.String), &v); err != nil {
			return nil, fmt.Errorf("proposal %s content corrupt: %w", p.ID, err)
		}
		p.Content = v
	}
	return &p, nil
}
