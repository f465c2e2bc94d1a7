package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/deptrack/deptrack/pkg/types"
)

// SaveMatrix replaces the persisted dependency matrix for a session.
func (s *Store) SaveMatrix(ctx context.Context, sessionID string, sources []types.SourceStats, sinks []types.SinkStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin matrix tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"sources", "sinks", "attribution"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, src := range sources {
		tj, err := json.Marshal(src.Target)
		if err != nil {
			return fmt.Errorf("marshal source target: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sources(session_id, idx, target, target_json, total_reads, total_bytes, labeled_bytes)
			VALUES(?,?,?,?,?,?,?);`,
			sessionID, src.Index, src.Target.String(), string(tj),
			int64(src.TotalReads), int64(src.TotalBytes), int64(src.LabeledBytes),
		); err != nil {
			return fmt.Errorf("insert source %d: %w", src.Index, err)
		}
	}

	for _, snk := range sinks {
		tj, err := json.Marshal(snk.Target)
		if err != nil {
			return fmt.Errorf("marshal sink target: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sinks(session_id, idx, target, target_json, total_writes, total_bytes, total_taint_bytes)
			VALUES(?,?,?,?,?,?,?);`,
			sessionID, snk.Index, snk.Target.String(), string(tj),
			int64(snk.TotalWrites), int64(snk.TotalBytes), int64(snk.TotalTaintBytes),
		); err != nil {
			return fmt.Errorf("insert sink %d: %w", snk.Index, err)
		}
		for srcIdx, bytes := range snk.LabeledBytes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO attribution(session_id, sink_idx, source_idx, bytes)
				VALUES(?,?,?,?);`,
				sessionID, snk.Index, int64(srcIdx), int64(bytes),
			); err != nil {
				return fmt.Errorf("insert attribution %d->%d: %w", srcIdx, snk.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit matrix: %w", err)
	}
	return nil
}

// LoadMatrix reads back a persisted dependency matrix.
func (s *Store) LoadMatrix(ctx context.Context, sessionID string) ([]types.SourceStats, []types.SinkStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, target_json, total_reads, total_bytes, labeled_bytes
		FROM sources WHERE session_id = ? ORDER BY idx ASC`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("query sources: %w", err)
	}
	sources, err := scanSources(rows)
	if err != nil {
		return nil, nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT idx, target_json, total_writes, total_bytes, total_taint_bytes
		FROM sinks WHERE session_id = ? ORDER BY idx ASC`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("query sinks: %w", err)
	}
	sinks, err := scanSinks(rows)
	if err != nil {
		return nil, nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT sink_idx, source_idx, bytes
		FROM attribution WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("query attribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sinkIdx, sourceIdx, bytes int64
		if err := rows.Scan(&sinkIdx, &sourceIdx, &bytes); err != nil {
			return nil, nil, fmt.Errorf("scan attribution: %w", err)
		}
		for i := range sinks {
			if int64(sinks[i].Index) != sinkIdx {
				continue
			}
			if sinks[i].LabeledBytes == nil {
				sinks[i].LabeledBytes = make(map[uint32]uint32)
			}
			sinks[i].LabeledBytes[uint32(sourceIdx)] = uint32(bytes)
		}
	}
	return sources, sinks, rows.Err()
}

// Sessions lists session IDs with a persisted matrix, newest-created
// rows last.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM sinks ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanSources(rows *sql.Rows) ([]types.SourceStats, error) {
	defer rows.Close()
	var out []types.SourceStats
	for rows.Next() {
		var (
			idx                             int
			targetJSON                      string
			totalReads, totalBytes, labeled int64
		)
		if err := rows.Scan(&idx, &targetJSON, &totalReads, &totalBytes, &labeled); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		var t types.Target
		if err := json.Unmarshal([]byte(targetJSON), &t); err != nil {
			return nil, fmt.Errorf("unmarshal source target: %w", err)
		}
		out = append(out, types.SourceStats{
			Index:        idx,
			Target:       t,
			TotalReads:   uint32(totalReads),
			TotalBytes:   uint32(totalBytes),
			LabeledBytes: uint32(labeled),
		})
	}
	return out, rows.Err()
}

func scanSinks(rows *sql.Rows) ([]types.SinkStats, error) {
	defer rows.Close()
	var out []types.SinkStats
	for rows.Next() {
		var (
			idx                            int
			targetJSON                     string
			totalWrites, totalBytes, taint int64
		)
		if err := rows.Scan(&idx, &targetJSON, &totalWrites, &totalBytes, &taint); err != nil {
			return nil, fmt.Errorf("scan sink: %w", err)
		}
		var t types.Target
		if err := json.Unmarshal([]byte(targetJSON), &t); err != nil {
			return nil, fmt.Errorf("unmarshal sink target: %w", err)
		}
		out = append(out, types.SinkStats{
			Index:           idx,
			Target:          t,
			TotalWrites:     uint32(totalWrites),
			TotalBytes:      uint32(totalBytes),
			TotalTaintBytes: uint32(taint),
		})
	}
	return out, rows.Err()
}
