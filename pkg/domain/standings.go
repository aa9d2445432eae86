package domain

import "sort"

// Standing is one row of a pool's ranked standings, joined with entrant
// identity for presentation.
type Standing struct {
	ResultID    string  `json:"result_id"`
	EntrantID   string  `json:"entrant_id"`
	EntrantName string  `json:"entrant_name"`
	House       string  `json:"house"`
	Measure     float64 `json:"measure"`
	Rank        int     `json:"rank"`
	Points      int     `json:"points"`
}

// HouseTally aggregates persisted points for one house.
type HouseTally struct {
	House            string `json:"house"`
	IndividualPoints int    `json:"individual_points"`
	RelayPoints      int    `json:"relay_points"`
	TotalPoints      int    `json:"total_points"`
}

// CompetitorStanding summarises one competitor across individual events.
type CompetitorStanding struct {
	Competitor  Competitor `json:"competitor"`
	EventCount  int        `json:"event_count"`
	TotalPoints int        `json:"total_points"`
	Gold        int        `json:"gold"`
	Silver      int        `json:"silver"`
	Bronze      int        `json:"bronze"`
}

// BuildPoolStandings assembles the ranked standings of one pool from
// persisted results, ordered by rank. Unknown events, unknown partitions and
// empty pools yield an empty slice; the read side never raises business
// errors.
func BuildPoolStandings(view RuleView, key PoolKey) []Standing {
	event, ok := view.FindEvent(key.EventID)
	if !ok {
		return nil
	}
	var rows []Standing
	if key.Partition == PartitionTeam {
		for _, res := range view.ListTeamResults() {
			if res.EventID != event.ID {
				continue
			}
			team, ok := view.FindRelayTeam(res.TeamID)
			if !ok {
				continue
			}
			rows = append(rows, Standing{
				ResultID:    res.ID,
				EntrantID:   team.ID,
				EntrantName: team.Name,
				House:       team.House,
				Measure:     res.Measure,
				Rank:        res.Rank,
				Points:      res.Points,
			})
		}
	} else {
		for _, res := range view.ListIndividualResults() {
			if res.EventID != event.ID {
				continue
			}
			comp, ok := view.FindCompetitor(res.CompetitorID)
			if !ok || string(comp.Gender) != key.Partition {
				continue
			}
			rows = append(rows, Standing{
				ResultID:    res.ID,
				EntrantID:   comp.ID,
				EntrantName: comp.Name,
				House:       comp.House,
				Measure:     res.Measure,
				Rank:        res.Rank,
				Points:      res.Points,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return rows
}

// TallyHouses totals persisted points per house: individual points from
// non-team events plus relay points attributed to the team's house. Each
// persisted result is counted exactly once. Whether an event is a team event
// derives solely from the stored Event record. Sorted by total points
// descending, then house name.
func TallyHouses(view RuleView) []HouseTally {
	byHouse := map[string]*HouseTally{}
	tally := func(house string) *HouseTally {
		t, ok := byHouse[house]
		if !ok {
			t = &HouseTally{House: house}
			byHouse[house] = t
		}
		return t
	}
	for _, res := range view.ListIndividualResults() {
		event, ok := view.FindEvent(res.EventID)
		if !ok || event.TeamEvent {
			// individual rows under team events are participation records
			continue
		}
		comp, ok := view.FindCompetitor(res.CompetitorID)
		if !ok {
			continue
		}
		tally(comp.House).IndividualPoints += res.Points
	}
	for _, res := range view.ListTeamResults() {
		team, ok := view.FindRelayTeam(res.TeamID)
		if !ok {
			continue
		}
		tally(team.House).RelayPoints += res.Points
	}
	out := make([]HouseTally, 0, len(byHouse))
	for _, t := range byHouse {
		t.TotalPoints = t.IndividualPoints + t.RelayPoints
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].House < out[j].House
	})
	return out
}

// TallyCompetitors summarises points and podium finishes per competitor in
// individual (non-team) events. A non-empty gender restricts the listing to
// that pool family. Sorted by points, then medals, then name.
func TallyCompetitors(view RuleView, gender Gender) []CompetitorStanding {
	byID := map[string]*CompetitorStanding{}
	for _, comp := range view.ListCompetitors() {
		if gender != "" && comp.Gender != gender {
			continue
		}
		byID[comp.ID] = &CompetitorStanding{Competitor: comp}
	}
	for _, res := range view.ListIndividualResults() {
		st, ok := byID[res.CompetitorID]
		if !ok {
			continue
		}
		event, ok := view.FindEvent(res.EventID)
		if !ok || event.TeamEvent {
			continue
		}
		st.EventCount++
		st.TotalPoints += res.Points
		switch res.Rank {
		case 1:
			st.Gold++
		case 2:
			st.Silver++
		case 3:
			st.Bronze++
		}
	}
	out := make([]CompetitorStanding, 0, len(byID))
	for _, st := range byID {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Gold != b.Gold {
			return a.Gold > b.Gold
		}
		if a.Silver != b.Silver {
			return a.Silver > b.Silver
		}
		if a.Bronze != b.Bronze {
			return a.Bronze > b.Bronze
		}
		return a.Competitor.Name < b.Competitor.Name
	})
	return out
}
