package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"meetcore/internal/infra/persistence/memory"
	"meetcore/pkg/domain"
)

// execer abstracts *sql.DB and *sql.Tx for statement execution.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// normalizedTables lists every persisted table in foreign-key-safe insert order.
var normalizedTables = []string{
	"competitors",
	"events",
	"relay_teams",
	"relay_team_members",
	"individual_results",
	"team_results",
	"intake_sequence",
}

// persistNormalized rewrites the normalized tables from the snapshot inside a
// single SQL transaction. Referential defects reject the whole snapshot.
func persistNormalized(ctx context.Context, db *sql.DB, snapshot memory.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(normalizedTables, ", ")); err != nil {
		return fmt.Errorf("truncate state: %w", err)
	}
	if err := insertCompetitors(ctx, tx, snapshot.Competitors); err != nil {
		return err
	}
	if err := insertEvents(ctx, tx, snapshot.Events); err != nil {
		return err
	}
	if err := insertRelayTeams(ctx, tx, snapshot.RelayTeams); err != nil {
		return err
	}
	if err := insertIndividualResults(ctx, tx, snapshot.IndividualResults); err != nil {
		return err
	}
	if err := insertTeamResults(ctx, tx, snapshot.TeamResults); err != nil {
		return err
	}
	if err := insertSequence(ctx, tx, snapshot.LastSeq); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func insertCompetitors(ctx context.Context, exec execer, competitors map[string]domain.Competitor) error {
	for _, id := range sortedKeys(competitors) {
		c := competitors[id]
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO competitors (id, bib_number, name, gender, house, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ID, c.BibNumber, c.Name, string(c.Gender), c.House, c.CreatedAt, c.UpdatedAt); err != nil {
			return fmt.Errorf("insert competitor %s: %w", id, err)
		}
	}
	return nil
}

func insertEvents(ctx context.Context, exec execer, events map[string]domain.Event) error {
	for _, id := range sortedKeys(events) {
		event := events[id]
		allocations := []byte("{}")
		if event.Allocations != nil {
			data, err := json.Marshal(event.Allocations)
			if err != nil {
				return fmt.Errorf("marshal allocations for event %s: %w", id, err)
			}
			allocations = data
		}
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO events (id, name, discipline, team_event, unit, allocations, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			event.ID, event.Name, string(event.Discipline), event.TeamEvent, event.Unit, allocations, event.CreatedAt, event.UpdatedAt); err != nil {
			return fmt.Errorf("insert event %s: %w", id, err)
		}
	}
	return nil
}

func insertRelayTeams(ctx context.Context, exec execer, teams map[string]domain.RelayTeam) error {
	for _, id := range sortedKeys(teams) {
		team := teams[id]
		if team.EventID == "" {
			return fmt.Errorf("relay team %s missing required event_id", id)
		}
		if len(team.MemberIDs) == 0 {
			return fmt.Errorf("relay team %s missing required member_ids", id)
		}
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO relay_teams (id, name, event_id, house, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			team.ID, team.Name, team.EventID, team.House, team.CreatedAt, team.UpdatedAt); err != nil {
			return fmt.Errorf("insert relay team %s: %w", id, err)
		}
		for i, competitorID := range team.MemberIDs {
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO relay_team_members (team_id, competitor_id, position) VALUES ($1,$2,$3)`,
				team.ID, competitorID, i+1); err != nil {
				return fmt.Errorf("insert relay team member %s: %w", id, err)
			}
		}
	}
	return nil
}

func insertIndividualResults(ctx context.Context, exec execer, results map[string]domain.IndividualResult) error {
	for _, id := range sortedKeys(results) {
		res := results[id]
		if res.CompetitorID == "" {
			return fmt.Errorf("individual result %s missing required competitor_id", id)
		}
		if res.EventID == "" {
			return fmt.Errorf("individual result %s missing required event_id", id)
		}
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO individual_results (id, competitor_id, event_id, measure, rank, points, seq, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			res.ID, res.CompetitorID, res.EventID, res.Measure, res.Rank, res.Points, int64(res.Seq), res.CreatedAt, res.UpdatedAt); err != nil {
			return fmt.Errorf("insert individual result %s: %w", id, err)
		}
	}
	return nil
}

func insertTeamResults(ctx context.Context, exec execer, results map[string]domain.TeamResult) error {
	for _, id := range sortedKeys(results) {
		res := results[id]
		if res.TeamID == "" {
			return fmt.Errorf("team result %s missing required team_id", id)
		}
		if res.EventID == "" {
			return fmt.Errorf("team result %s missing required event_id", id)
		}
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO team_results (id, team_id, event_id, measure, rank, points, seq, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			res.ID, res.TeamID, res.EventID, res.Measure, res.Rank, res.Points, int64(res.Seq), res.CreatedAt, res.UpdatedAt); err != nil {
			return fmt.Errorf("insert team result %s: %w", id, err)
		}
	}
	return nil
}

func insertSequence(ctx context.Context, exec execer, lastSeq uint64) error {
	if _, err := exec.ExecContext(ctx,
		`INSERT INTO intake_sequence (id, last_seq) VALUES ($1,$2)`,
		1, int64(lastSeq)); err != nil {
		return fmt.Errorf("insert intake_sequence: %w", err)
	}
	return nil
}

// loadNormalizedSnapshot reads the normalized tables back into a snapshot the
// in-memory store can import.
func loadNormalizedSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	competitors, err := loadCompetitors(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	events, err := loadEvents(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	teams, err := loadRelayTeams(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	if err := loadRelayTeamMembers(ctx, db, teams); err != nil {
		return memory.Snapshot{}, err
	}
	individual, err := loadIndividualResults(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	teamResults, err := loadTeamResults(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	lastSeq, err := loadSequence(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	return memory.Snapshot{
		Competitors:       competitors,
		Events:            events,
		RelayTeams:        teams,
		IndividualResults: individual,
		TeamResults:       teamResults,
		LastSeq:           lastSeq,
	}, nil
}

func loadCompetitors(ctx context.Context, db *sql.DB) (map[string]domain.Competitor, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, bib_number, name, gender, house, created_at, updated_at FROM competitors`)
	if err != nil {
		return nil, fmt.Errorf("query competitors: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]domain.Competitor{}
	for rows.Next() {
		var c domain.Competitor
		if err := rows.Scan(&c.ID, &c.BibNumber, &c.Name, &c.Gender, &c.House, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competitors: %w", err)
	}
	return out, nil
}

func loadEvents(ctx context.Context, db *sql.DB) (map[string]domain.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, discipline, team_event, unit, allocations, created_at, updated_at FROM events`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]domain.Event{}
	for rows.Next() {
		var event domain.Event
		var allocations []byte
		if err := rows.Scan(&event.ID, &event.Name, &event.Discipline, &event.TeamEvent, &event.Unit, &allocations, &event.CreatedAt, &event.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(allocations) > 0 {
			if err := json.Unmarshal(allocations, &event.Allocations); err != nil {
				return nil, fmt.Errorf("decode allocations for event %s: %w", event.ID, err)
			}
		}
		out[event.ID] = event
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func loadRelayTeams(ctx context.Context, db *sql.DB) (map[string]domain.RelayTeam, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, event_id, house, created_at, updated_at FROM relay_teams`)
	if err != nil {
		return nil, fmt.Errorf("query relay_teams: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]domain.RelayTeam{}
	for rows.Next() {
		var team domain.RelayTeam
		if err := rows.Scan(&team.ID, &team.Name, &team.EventID, &team.House, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan relay team: %w", err)
		}
		out[team.ID] = team
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relay_teams: %w", err)
	}
	return out, nil
}

func loadRelayTeamMembers(ctx context.Context, db *sql.DB, teams map[string]domain.RelayTeam) error {
	rows, err := db.QueryContext(ctx, `SELECT team_id, competitor_id, position FROM relay_team_members`)
	if err != nil {
		return fmt.Errorf("query relay_team_members: %w", err)
	}
	defer func() { _ = rows.Close() }()
	type member struct {
		competitorID string
		position     int
	}
	byTeam := map[string][]member{}
	for rows.Next() {
		var teamID, competitorID string
		var position int
		if err := rows.Scan(&teamID, &competitorID, &position); err != nil {
			return fmt.Errorf("scan relay team member: %w", err)
		}
		if _, ok := teams[teamID]; !ok {
			return fmt.Errorf("relay team member references missing relay team %s", teamID)
		}
		byTeam[teamID] = append(byTeam[teamID], member{competitorID: competitorID, position: position})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate relay_team_members: %w", err)
	}
	for id, team := range teams {
		members := byTeam[id]
		if len(members) == 0 {
			return fmt.Errorf("relay team %s missing required member_ids", id)
		}
		sort.Slice(members, func(i, j int) bool { return members[i].position < members[j].position })
		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.competitorID)
		}
		team.MemberIDs = ids
		teams[id] = team
	}
	return nil
}

func loadIndividualResults(ctx context.Context, db *sql.DB) (map[string]domain.IndividualResult, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, competitor_id, event_id, measure, rank, points, seq, created_at, updated_at FROM individual_results`)
	if err != nil {
		return nil, fmt.Errorf("query individual_results: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]domain.IndividualResult{}
	for rows.Next() {
		var res domain.IndividualResult
		var seq int64
		if err := rows.Scan(&res.ID, &res.CompetitorID, &res.EventID, &res.Measure, &res.Rank, &res.Points, &seq, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan individual result: %w", err)
		}
		res.Seq = uint64(seq)
		out[res.ID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate individual_results: %w", err)
	}
	return out, nil
}

func loadTeamResults(ctx context.Context, db *sql.DB) (map[string]domain.TeamResult, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, team_id, event_id, measure, rank, points, seq, created_at, updated_at FROM team_results`)
	if err != nil {
		return nil, fmt.Errorf("query team_results: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]domain.TeamResult{}
	for rows.Next() {
		var res domain.TeamResult
		var seq int64
		if err := rows.Scan(&res.ID, &res.TeamID, &res.EventID, &res.Measure, &res.Rank, &res.Points, &seq, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team result: %w", err)
		}
		res.Seq = uint64(seq)
		out[res.ID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team_results: %w", err)
	}
	return out, nil
}

func loadSequence(ctx context.Context, db *sql.DB) (uint64, error) {
	rows, err := db.QueryContext(ctx, `SELECT last_seq FROM intake_sequence`)
	if err != nil {
		return 0, fmt.Errorf("query intake_sequence: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var last int64
	for rows.Next() {
		if err := rows.Scan(&last); err != nil {
			return 0, fmt.Errorf("scan intake_sequence: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate intake_sequence: %w", err)
	}
	return uint64(last), nil
}
