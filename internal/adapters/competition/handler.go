// Package competition exposes the ranking engine over HTTP: entity CRUD,
// result intake, derived standings reads, and snapshot administration under
// /api/v1, plus the embedded OpenAPI document.
package competition

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"meetcore/docs/schema/openapi"
	"meetcore/internal/core"
	"meetcore/pkg/domain"
)

const apiPrefix = "/api/v1"

// Handler provides HTTP access to the competition service.
type Handler struct {
	Service *core.Service
}

// NewHandler constructs a competition HTTP handler.
func NewHandler(svc *core.Service) *Handler {
	return &Handler{Service: svc}
}

// validate checks request structs. Field names in messages follow the JSON
// wire names, not the Go field names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "competition service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/openapi.yaml":
		h.handleOpenAPI(w, r)
	case path == apiPrefix+"/competitors" || strings.HasPrefix(path, apiPrefix+"/competitors/"):
		h.handleCompetitors(w, r, strings.TrimPrefix(path, apiPrefix+"/competitors"))
	case path == apiPrefix+"/events" || strings.HasPrefix(path, apiPrefix+"/events/"):
		h.handleEvents(w, r, strings.TrimPrefix(path, apiPrefix+"/events"))
	case path == apiPrefix+"/relay-teams" || strings.HasPrefix(path, apiPrefix+"/relay-teams/"):
		h.handleRelayTeams(w, r, strings.TrimPrefix(path, apiPrefix+"/relay-teams"))
	case path == apiPrefix+"/results/individual" || strings.HasPrefix(path, apiPrefix+"/results/individual/"):
		h.handleIndividualResults(w, r, strings.TrimPrefix(path, apiPrefix+"/results/individual"))
	case path == apiPrefix+"/results/team" || strings.HasPrefix(path, apiPrefix+"/results/team/"):
		h.handleTeamResults(w, r, strings.TrimPrefix(path, apiPrefix+"/results/team"))
	case path == apiPrefix+"/houses/standings":
		h.handleHouseStandings(w, r)
	case path == apiPrefix+"/admin/snapshots" || strings.HasPrefix(path, apiPrefix+"/admin/snapshots/"):
		h.handleSnapshots(w, r, strings.TrimPrefix(path, apiPrefix+"/admin/snapshots"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.Spec())
}

// --- competitors ---

type competitorRequest struct {
	BibNumber int    `json:"bib_number" validate:"required,min=1"`
	Name      string `json:"name" validate:"required"`
	Gender    string `json:"gender" validate:"required"`
	House     string `json:"house" validate:"required"`
}

type competitorUpdateRequest struct {
	BibNumber *int    `json:"bib_number"`
	Name      *string `json:"name"`
	Gender    *string `json:"gender"`
	House     *string `json:"house"`
}

func (h *Handler) handleCompetitors(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.handleCompetitorList(w, r)
		case http.MethodPost:
			h.handleCompetitorCreate(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case rest == "/standings":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleCompetitorStandings(w, r)
	default:
		id := strings.TrimPrefix(rest, "/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			competitor, ok := h.Service.Competitor(id)
			if !ok {
				writeNotFound(w, domain.EntityCompetitor, id)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"competitor": competitor})
		case http.MethodPatch:
			h.handleCompetitorUpdate(w, r, id)
		case http.MethodDelete:
			if _, err := h.Service.DeleteCompetitor(r.Context(), id); err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func (h *Handler) handleCompetitorList(w http.ResponseWriter, r *http.Request) {
	competitors := h.Service.Competitors(r.URL.Query().Get("house"), domain.Gender(r.URL.Query().Get("gender")))
	sort.Slice(competitors, func(i, j int) bool { return competitors[i].BibNumber < competitors[j].BibNumber })
	writeJSON(w, http.StatusOK, map[string]any{"competitors": competitors})
}

func (h *Handler) handleCompetitorCreate(w http.ResponseWriter, r *http.Request) {
	var req competitorRequest
	if !decode(w, r, &req) {
		return
	}
	competitor, _, err := h.Service.RegisterCompetitor(r.Context(), domain.Competitor{
		BibNumber: req.BibNumber,
		Name:      req.Name,
		Gender:    domain.Gender(req.Gender),
		House:     req.House,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"competitor": competitor})
}

func (h *Handler) handleCompetitorUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req competitorUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	competitor, _, err := h.Service.UpdateCompetitor(r.Context(), id, func(c *domain.Competitor) error {
		if req.BibNumber != nil {
			c.BibNumber = *req.BibNumber
		}
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.Gender != nil {
			c.Gender = domain.Gender(*req.Gender)
		}
		if req.House != nil {
			c.House = *req.House
		}
		return nil
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitor": competitor})
}

func (h *Handler) handleCompetitorStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.Service.CompetitorStandings(r.Context(), domain.Gender(r.URL.Query().Get("gender")), r.URL.Query().Get("house"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if standings == nil {
		standings = []domain.CompetitorStanding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"standings": standings})
}

// --- events ---

type eventRequest struct {
	Name        string                                              `json:"name" validate:"required"`
	Discipline  string                                              `json:"discipline" validate:"required"`
	TeamEvent   bool                                                `json:"team_event"`
	Unit        string                                              `json:"unit"`
	Allocations map[domain.AllocationVariant]domain.AllocationTable `json:"allocations"`
}

type eventUpdateRequest struct {
	Name       *string `json:"name"`
	Discipline *string `json:"discipline"`
	TeamEvent  *bool   `json:"team_event"`
	Unit       *string `json:"unit"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			events := h.Service.Events()
			sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })
			writeJSON(w, http.StatusOK, map[string]any{"events": events})
		case http.MethodPost:
			h.handleEventCreate(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	segments := strings.Split(strings.TrimPrefix(rest, "/"), "/")
	switch {
	case len(segments) == 1:
		h.handleEvent(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "standings":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleEventStandings(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "rebuild":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		event, _, err := h.Service.RebuildEventRankings(r.Context(), segments[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": event})
	case len(segments) == 3 && segments[1] == "allocations":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleSetAllocation(w, r, segments[0], segments[2])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		event, ok := h.Service.Event(id)
		if !ok {
			writeNotFound(w, domain.EntityEvent, id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": event})
	case http.MethodPatch:
		var req eventUpdateRequest
		if !decode(w, r, &req) {
			return
		}
		event, _, err := h.Service.UpdateEvent(r.Context(), id, func(e *domain.Event) error {
			if req.Name != nil {
				e.Name = *req.Name
			}
			if req.Discipline != nil {
				e.Discipline = domain.Discipline(*req.Discipline)
			}
			if req.TeamEvent != nil {
				e.TeamEvent = *req.TeamEvent
			}
			if req.Unit != nil {
				e.Unit = *req.Unit
			}
			return nil
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": event})
	case http.MethodDelete:
		if _, err := h.Service.DeleteEvent(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleEventCreate(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	event, _, err := h.Service.CreateEvent(r.Context(), domain.Event{
		Name:        req.Name,
		Discipline:  domain.Discipline(req.Discipline),
		TeamEvent:   req.TeamEvent,
		Unit:        req.Unit,
		Allocations: req.Allocations,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"event": event})
}

func (h *Handler) handleSetAllocation(w http.ResponseWriter, r *http.Request, eventID, variant string) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation table payload")
		return
	}
	event, res, err := h.Service.SetAllocationTable(r.Context(), eventID, domain.AllocationVariant(variant), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event":      event,
		"violations": violationPayload(res.Violations),
	})
}

func (h *Handler) handleEventStandings(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.Service.Event(id); !ok {
		writeNotFound(w, domain.EntityEvent, id)
		return
	}
	partition := strings.TrimSpace(r.URL.Query().Get("partition"))
	var pools []core.PoolStandings
	if partition != "" {
		rows, err := h.Service.PoolStandings(r.Context(), domain.PoolKey{EventID: id, Partition: partition})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if rows == nil {
			rows = []domain.Standing{}
		}
		pools = []core.PoolStandings{{EventID: id, Partition: partition, Standings: rows}}
	} else {
		var err error
		pools, err = h.Service.EventStandings(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	if pools == nil {
		pools = []core.PoolStandings{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

// --- relay teams ---

type relayTeamRequest struct {
	Name      string   `json:"name" validate:"required"`
	EventID   string   `json:"event_id" validate:"required"`
	House     string   `json:"house" validate:"required"`
	MemberIDs []string `json:"member_ids" validate:"required"`
}

type relayTeamUpdateRequest struct {
	Name      *string  `json:"name"`
	EventID   *string  `json:"event_id"`
	House     *string  `json:"house"`
	MemberIDs []string `json:"member_ids"`
}

func (h *Handler) handleRelayTeams(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			teams := h.Service.RelayTeams(r.URL.Query().Get("event"))
			sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
			writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
		case http.MethodPost:
			h.handleRelayTeamCreate(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	id := strings.TrimPrefix(rest, "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		team, ok := h.Service.RelayTeam(id)
		if !ok {
			writeNotFound(w, domain.EntityRelayTeam, id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"team": team})
	case http.MethodPatch:
		h.handleRelayTeamUpdate(w, r, id)
	case http.MethodDelete:
		if _, err := h.Service.DeleteRelayTeam(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleRelayTeamCreate(w http.ResponseWriter, r *http.Request) {
	var req relayTeamRequest
	if !decode(w, r, &req) {
		return
	}
	team, _, err := h.Service.RegisterRelayTeam(r.Context(), domain.RelayTeam{
		Name:      req.Name,
		EventID:   req.EventID,
		House:     req.House,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"team": team})
}

func (h *Handler) handleRelayTeamUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req relayTeamUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	team, _, err := h.Service.UpdateRelayTeam(r.Context(), id, func(t *domain.RelayTeam) error {
		if req.Name != nil {
			t.Name = *req.Name
		}
		if req.EventID != nil {
			t.EventID = *req.EventID
		}
		if req.House != nil {
			t.House = *req.House
		}
		if req.MemberIDs != nil {
			t.MemberIDs = req.MemberIDs
		}
		return nil
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": team})
}

// --- results ---

type individualResultRequest struct {
	CompetitorID string          `json:"competitor_id" validate:"required"`
	EventID      string          `json:"event_id" validate:"required"`
	Measure      json.RawMessage `json:"measure" validate:"required"`
}

type teamResultRequest struct {
	TeamID  string          `json:"team_id" validate:"required"`
	EventID string          `json:"event_id" validate:"required"`
	Measure json.RawMessage `json:"measure" validate:"required"`
}

type resultCorrectionRequest struct {
	Measure json.RawMessage `json:"measure" validate:"required"`
}

func (h *Handler) handleIndividualResults(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			results, err := h.Service.IndividualResults(r.Context(), r.URL.Query().Get("event"), r.URL.Query().Get("house"), domain.Gender(r.URL.Query().Get("gender")))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			sortIndividualResults(results)
			if results == nil {
				results = []domain.IndividualResult{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"results": results})
		case http.MethodPost:
			h.handleIndividualResultCreate(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	id := strings.TrimPrefix(rest, "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		h.handleIndividualResultUpdate(w, r, id)
	case http.MethodDelete:
		if _, err := h.Service.DeleteIndividualResult(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleIndividualResultCreate(w http.ResponseWriter, r *http.Request) {
	var req individualResultRequest
	if !decode(w, r, &req) {
		return
	}
	measure, err := h.parseMeasure(req.EventID, req.Measure)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid measure: %s", err))
		return
	}
	result, _, err := h.Service.SubmitIndividualResult(r.Context(), domain.IndividualResult{
		CompetitorID: req.CompetitorID,
		EventID:      req.EventID,
		Measure:      measure,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"result": result})
}

func (h *Handler) handleIndividualResultUpdate(w http.ResponseWriter, r *http.Request, id string) {
	current, ok := h.Service.IndividualResult(r.Context(), id)
	if !ok {
		writeNotFound(w, domain.EntityIndividualResult, id)
		return
	}
	var req resultCorrectionRequest
	if !decode(w, r, &req) {
		return
	}
	measure, err := h.parseMeasure(current.EventID, req.Measure)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid measure: %s", err))
		return
	}
	result, _, err := h.Service.UpdateIndividualResult(r.Context(), id, measure)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (h *Handler) handleTeamResults(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			results := h.Service.TeamResults(r.URL.Query().Get("event"))
			sortTeamResults(results)
			writeJSON(w, http.StatusOK, map[string]any{"results": results})
		case http.MethodPost:
			h.handleTeamResultCreate(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	id := strings.TrimPrefix(rest, "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		h.handleTeamResultUpdate(w, r, id)
	case http.MethodDelete:
		if _, err := h.Service.DeleteTeamResult(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleTeamResultCreate(w http.ResponseWriter, r *http.Request) {
	var req teamResultRequest
	if !decode(w, r, &req) {
		return
	}
	measure, err := h.parseMeasure(req.EventID, req.Measure)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid measure: %s", err))
		return
	}
	result, _, err := h.Service.SubmitTeamResult(r.Context(), domain.TeamResult{
		TeamID:  req.TeamID,
		EventID: req.EventID,
		Measure: measure,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"result": result})
}

func (h *Handler) handleTeamResultUpdate(w http.ResponseWriter, r *http.Request, id string) {
	current, ok := h.Service.TeamResult(r.Context(), id)
	if !ok {
		writeNotFound(w, domain.EntityTeamResult, id)
		return
	}
	var req resultCorrectionRequest
	if !decode(w, r, &req) {
		return
	}
	measure, err := h.parseMeasure(current.EventID, req.Measure)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid measure: %s", err))
		return
	}
	result, _, err := h.Service.UpdateTeamResult(r.Context(), id, measure)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// parseMeasure accepts a measurement as a JSON number or as a string in the
// event's human notation: "MM:SS.cc" track times, plain decimals for field
// distances. Numeric values pass through untouched; the engine enforces
// positivity.
func (h *Handler) parseMeasure(eventID string, raw json.RawMessage) (float64, error) {
	var numeric float64
	if err := json.Unmarshal(raw, &numeric); err == nil {
		return numeric, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("measure must be a number or string")
	}
	if event, ok := h.Service.Event(eventID); ok && event.Discipline == domain.DisciplineTrack {
		return domain.ParseTrackTime(text)
	}
	return domain.ParseFieldDistance(text)
}

// --- standings and snapshots ---

func (h *Handler) handleHouseStandings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tallies, err := h.Service.HouseTotals(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tallies == nil {
		tallies = []domain.HouseTally{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"houses": tallies})
}

func (h *Handler) handleSnapshots(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			snapshots, err := h.Service.ListSnapshots(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if snapshots == nil {
				snapshots = []core.SnapshotInfo{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
		case http.MethodPost:
			info, err := h.Service.ArchiveSnapshot(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"snapshot": info})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	// Archive keys contain slashes, so the key is everything between the
	// snapshots base path and the trailing /restore action.
	key, ok := strings.CutSuffix(strings.TrimPrefix(rest, "/"), "/restore")
	if !ok || key == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.Service.RestoreSnapshot(r.Context(), key); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- shared helpers ---

func sortIndividualResults(results []domain.IndividualResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].EventID != results[j].EventID {
			return results[i].EventID < results[j].EventID
		}
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		return results[i].Seq < results[j].Seq
	})
}

func sortTeamResults(results []domain.TeamResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].EventID != results[j].EventID {
			return results[i].EventID < results[j].EventID
		}
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		return results[i].Seq < results[j].Seq
	})
}

// decode unmarshals the request body into dst and checks its validate tags.
// A false return means the error response has already been written.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
	}
	return strings.Join(parts, "; ")
}

type violationBody struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func violationPayload(violations []domain.Violation) []violationBody {
	out := make([]violationBody, 0, len(violations))
	for _, v := range violations {
		out = append(out, violationBody{Rule: v.Rule, Severity: string(v.Severity), Message: v.Message})
	}
	return out
}

// writeServiceError maps service and domain errors onto HTTP statuses:
// missing entities 404, invariant rejections 422 (rule violations carry their
// violation list), ranking consistency breaches and everything unexpected 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var notFound core.ErrNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	var rule domain.RuleViolationError
	if errors.As(err, &rule) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      rule.Error(),
			"violations": violationPayload(rule.Result.Violations),
		})
		return
	}
	var invalid domain.ValidationError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusUnprocessableEntity, invalid.Error())
		return
	}
	var config domain.ConfigurationError
	if errors.As(err, &config) {
		writeError(w, http.StatusUnprocessableEntity, config.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeNotFound(w http.ResponseWriter, entity domain.EntityType, id string) {
	writeError(w, http.StatusNotFound, core.ErrNotFound{Entity: entity, ID: id}.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
