package core

import (
	"context"
	"fmt"

	"meetcore/pkg/domain"
)

// NewRelayMembershipRule returns the default in-transaction rule enforcing
// relay squad composition: exactly RelayTeamSize distinct registered members,
// every member belonging to the team's house, attached to a team event.
func NewRelayMembershipRule() domain.Rule {
	return relayMembershipRule{}
}

type relayMembershipRule struct{}

func (relayMembershipRule) Name() string { return "relay_membership" }

func (relayMembershipRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(teamID, message string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "relay_membership",
			Severity: domain.SeverityBlock,
			Message:  message,
			Entity:   domain.EntityRelayTeam,
			EntityID: teamID,
		})
	}

	for _, team := range view.ListRelayTeams() {
		event, ok := view.FindEvent(team.EventID)
		if !ok {
			block(team.ID, fmt.Sprintf("team %s (%s) references missing event %s", team.Name, team.ID, team.EventID))
		} else if !event.TeamEvent {
			block(team.ID, fmt.Sprintf("team %s (%s) registered for %s, which is not a team event", team.Name, team.ID, event.Name))
		}

		if len(team.MemberIDs) != domain.RelayTeamSize {
			block(team.ID, fmt.Sprintf("team %s (%s) has %d members, relay squads require %d", team.Name, team.ID, len(team.MemberIDs), domain.RelayTeamSize))
		}

		seen := make(map[string]struct{}, len(team.MemberIDs))
		for _, memberID := range team.MemberIDs {
			if _, dup := seen[memberID]; dup {
				block(team.ID, fmt.Sprintf("team %s (%s) lists competitor %s more than once", team.Name, team.ID, memberID))
				continue
			}
			seen[memberID] = struct{}{}
			member, ok := view.FindCompetitor(memberID)
			if !ok {
				block(team.ID, fmt.Sprintf("team %s (%s) references missing competitor %s", team.Name, team.ID, memberID))
				continue
			}
			if member.House != team.House {
				block(team.ID, fmt.Sprintf("competitor %s (%s) runs for house %s, team %s belongs to %s", member.Name, member.ID, member.House, team.Name, team.House))
			}
		}
	}
	return res, nil
}
