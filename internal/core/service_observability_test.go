package core

import (
	"bytes"
	"context"
	"expvar"
	"fmt"
	"strings"
	"testing"
	"time"

	"meetcore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op {
			if success && record.err == nil {
				return true
			}
			if !success && record.err != nil {
				return true
			}
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservabilityComplianceOperations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}

	svc := NewInMemoryService(NewDefaultRulesEngine(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)

	const updatedName = "updated"

	sprint, _, err := svc.CreateEvent(ctx, domain.Event{Name: "100m Sprint", Discipline: domain.DisciplineTrack, Unit: "s"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if !audit.has("create_event", AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == sprint.ID }) {
		t.Fatalf("expected audit entry for create_event success")
	}

	if _, _, err := svc.UpdateEvent(ctx, sprint.ID, func(e *domain.Event) error {
		e.Name = "100m Sprint Final"
		return nil
	}); err != nil {
		t.Fatalf("update event: %v", err)
	}
	if !audit.has("update_event", AuditStatusSuccess, nil) {
		t.Fatalf("expected audit entry for update_event success")
	}

	if _, err := svc.DeleteEvent(ctx, "missing-event"); err == nil {
		t.Fatalf("expected delete_event error for missing id")
	}
	if !audit.has("delete_event", AuditStatusError, nil) {
		t.Fatalf("expected audit error entry for delete_event")
	}
	if !metrics.has("delete_event", false) {
		t.Fatalf("expected metrics entry for failed delete_event")
	}
	if !tracer.has("delete_event", false) {
		t.Fatalf("expected trace span for failed delete_event")
	}

	if _, _, err := svc.SetAllocationTable(ctx, sprint.ID, domain.VariantFemale, map[string]any{"1": 12, "2": 8, "3": 4}); err != nil {
		t.Fatalf("set allocation table: %v", err)
	}

	runners := make([]domain.Competitor, 0, domain.RelayTeamSize)
	for i := 0; i < domain.RelayTeamSize; i++ {
		runner, _, err := svc.RegisterCompetitor(ctx, domain.Competitor{
			BibNumber: 101 + i,
			Name:      fmt.Sprintf("Runner %d", i+1),
			Gender:    domain.GenderFemale,
			House:     "Ignis",
		})
		if err != nil {
			t.Fatalf("register competitor %d: %v", i, err)
		}
		runners = append(runners, runner)
	}
	if !audit.has("register_competitor", AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == runners[0].ID }) {
		t.Fatalf("expected audit entry for register_competitor")
	}

	spare, _, err := svc.RegisterCompetitor(ctx, domain.Competitor{BibNumber: 200, Name: "Spare", Gender: domain.GenderMale, House: "Nereus"})
	if err != nil {
		t.Fatalf("register spare competitor: %v", err)
	}
	if _, _, err := svc.UpdateCompetitor(ctx, spare.ID, func(c *domain.Competitor) error {
		c.Name = updatedName
		return nil
	}); err != nil {
		t.Fatalf("update competitor: %v", err)
	}

	result, _, err := svc.SubmitIndividualResult(ctx, domain.IndividualResult{EventID: sprint.ID, CompetitorID: runners[0].ID, Measure: 12.84})
	if err != nil {
		t.Fatalf("submit individual result: %v", err)
	}
	if _, _, err := svc.UpdateIndividualResult(ctx, result.ID, 12.61); err != nil {
		t.Fatalf("update individual result: %v", err)
	}
	if _, err := svc.DeleteIndividualResult(ctx, result.ID); err != nil {
		t.Fatalf("delete individual result: %v", err)
	}

	relay, _, err := svc.CreateEvent(ctx, domain.Event{Name: "4x100m Relay", Discipline: domain.DisciplineTrack, TeamEvent: true, Unit: "s"})
	if err != nil {
		t.Fatalf("create relay event: %v", err)
	}
	members := make([]string, 0, domain.RelayTeamSize)
	for _, runner := range runners {
		members = append(members, runner.ID)
	}
	team, _, err := svc.RegisterRelayTeam(ctx, domain.RelayTeam{Name: "Ignis A", EventID: relay.ID, House: "Ignis", MemberIDs: members})
	if err != nil {
		t.Fatalf("register relay team: %v", err)
	}
	if _, _, err := svc.UpdateRelayTeam(ctx, team.ID, func(rt *domain.RelayTeam) error {
		rt.Name = updatedName
		return nil
	}); err != nil {
		t.Fatalf("update relay team: %v", err)
	}

	teamResult, _, err := svc.SubmitTeamResult(ctx, domain.TeamResult{EventID: relay.ID, TeamID: team.ID, Measure: 50.12})
	if err != nil {
		t.Fatalf("submit team result: %v", err)
	}
	if _, _, err := svc.UpdateTeamResult(ctx, teamResult.ID, 49.87); err != nil {
		t.Fatalf("update team result: %v", err)
	}
	if _, err := svc.DeleteTeamResult(ctx, teamResult.ID); err != nil {
		t.Fatalf("delete team result: %v", err)
	}

	if _, _, err := svc.RebuildEventRankings(ctx, sprint.ID); err != nil {
		t.Fatalf("rebuild event rankings: %v", err)
	}

	if _, err := svc.DeleteRelayTeam(ctx, team.ID); err != nil {
		t.Fatalf("delete relay team: %v", err)
	}
	if _, err := svc.DeleteCompetitor(ctx, spare.ID); err != nil {
		t.Fatalf("delete competitor: %v", err)
	}
	if _, err := svc.DeleteEvent(ctx, relay.ID); err != nil {
		t.Fatalf("delete event success: %v", err)
	}

	successOps := []string{
		"register_competitor",
		"update_competitor",
		"delete_competitor",
		"create_event",
		"update_event",
		"delete_event",
		"set_allocation_table",
		"register_relay_team",
		"update_relay_team",
		"delete_relay_team",
		"submit_individual_result",
		"update_individual_result",
		"delete_individual_result",
		"submit_team_result",
		"update_team_result",
		"delete_team_result",
		"rebuild_event_rankings",
	}

	for _, op := range successOps {
		if !metrics.has(op, true) {
			t.Fatalf("expected metrics success entry for %s", op)
		}
		if !tracer.has(op, true) {
			t.Fatalf("expected finished span for %s", op)
		}
		if !audit.has(op, AuditStatusSuccess, nil) {
			t.Fatalf("expected audit success entry for %s", op)
		}
	}
}

const entryStatusSuccess = "success"
const entryStatusError = "error"

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["test_op"] <= 0 {
		t.Fatalf("expected positive duration, snapshot=%+v", snapshot)
	}
	if snapshot.Results["test_op"][entryStatusSuccess] != 1 || snapshot.Results["test_op"][entryStatusError] != 1 {
		t.Fatalf("unexpected results snapshot=%+v", snapshot)
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "test_op") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "trace_op")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected single span entry, got %d", len(entries))
	}
	if entries[0].Operation != "trace_op" || entries[0].Status != entryStatusSuccess {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if !strings.Contains(buf.String(), "\"operation\":\"trace_op\"") {
		t.Fatalf("expected JSON output to contain operation: %q", buf.String())
	}
}
