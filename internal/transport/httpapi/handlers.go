package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"orthotracker/internal/usecase/tracker"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.svc.RegisterUser(r.Context(), tracker.RegisterUserInput{
		Email:    input.Email,
		FullName: input.FullName,
		Password: input.Password,
		Role:     tracker.RoleRep,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.svc.Authenticate(r.Context(), input.Email, input.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

// procedureFilter scopes reps to their own procedures. Admins see everything
// unless they pass mine=1 or rep=<email>.
func procedureFilter(r *http.Request) (tracker.ProcedureFilter, error) {
	principal, _ := principalFrom(r.Context())
	query := r.URL.Query()

	var filter tracker.ProcedureFilter
	switch {
	case principal.Role != tracker.RoleAdmin, query.Get("mine") == "1":
		filter.RepEmail = principal.Email
	default:
		filter.RepEmail = query.Get("rep")
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return tracker.ProcedureFilter{}, fmt.Errorf("%w: limit must be a non-negative integer", tracker.ErrInvalidInput)
		}
		filter.Limit = limit
	}
	if raw := query.Get("ids"); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			return tracker.ProcedureFilter{}, err
		}
		filter.IDs = ids
	}
	return filter, nil
}

func (s *Server) handleListProcedures(w http.ResponseWriter, r *http.Request) {
	filter, err := procedureFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	procedures, err := s.svc.ListProcedures(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, procedures)
}

type attachmentPayload struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

type procedurePayload struct {
	RepEmail      string              `json:"rep_email"`
	RepName       string              `json:"rep_name"`
	Hospital      string              `json:"hospital"`
	Surgeon       string              `json:"surgeon"`
	ProcedureType string              `json:"procedure_type"`
	Date          string              `json:"date"`
	Revenue       float64             `json:"revenue"`
	Notes         string              `json:"notes"`
	Attachments   []attachmentPayload `json:"attachments"`
}

func (s *Server) handleLogProcedure(w http.ResponseWriter, r *http.Request) {
	var payload procedurePayload
	if err := readJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	principal, _ := principalFrom(r.Context())
	repEmail := principal.Email
	if principal.Role == tracker.RoleAdmin && strings.TrimSpace(payload.RepEmail) != "" {
		repEmail = payload.RepEmail
	}

	uploads := make([]tracker.AttachmentUpload, 0, len(payload.Attachments))
	for _, attachment := range payload.Attachments {
		body, err := base64.StdEncoding.DecodeString(attachment.ContentBase64)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: attachment %q is not valid base64", tracker.ErrInvalidInput, attachment.Filename))
			return
		}
		uploads = append(uploads, tracker.AttachmentUpload{Filename: attachment.Filename, Body: body})
	}

	result, err := s.svc.LogProcedure(r.Context(), tracker.ProcedureInput{
		RepEmail:      repEmail,
		RepName:       payload.RepName,
		Hospital:      payload.Hospital,
		Surgeon:       payload.Surgeon,
		ProcedureType: payload.ProcedureType,
		Date:          payload.Date,
		Revenue:       payload.Revenue,
		Notes:         payload.Notes,
		Attachments:   uploads,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetProcedure(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := s.svc.GetProcedure(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleExportProcedures(w http.ResponseWriter, r *http.Request) {
	filter, err := procedureFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf strings.Builder
	if err := s.svc.ExportProceduresCSV(r.Context(), &buf, filter); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=procedures.csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) handleListHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := s.svc.ListHospitals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hospitals)
}

func (s *Server) handleAddHospital(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		GeoLat  string `json:"geo_lat"`
		GeoLng  string `json:"geo_lng"`
	}
	if err := readJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	principal, _ := principalFrom(r.Context())
	hospital, err := s.svc.AddHospital(r.Context(), tracker.HospitalInput{
		Name:    input.Name,
		Address: input.Address,
		GeoLat:  input.GeoLat,
		GeoLng:  input.GeoLng,
		Actor:   principal.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hospital)
}

func (s *Server) handleListSurgeons(w http.ResponseWriter, r *http.Request) {
	var hospitalID uint64
	if raw := r.URL.Query().Get("hospital_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: hospital_id must be a positive integer", tracker.ErrInvalidInput))
			return
		}
		hospitalID = id
	}
	surgeons, err := s.svc.ListSurgeons(r.Context(), hospitalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, surgeons)
}

func (s *Server) handleAddSurgeon(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name       string `json:"name"`
		HospitalID uint64 `json:"hospital_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	principal, _ := principalFrom(r.Context())
	surgeon, err := s.svc.AddSurgeon(r.Context(), tracker.SurgeonInput{
		Name:       input.Name,
		HospitalID: input.HospitalID,
		Actor:      principal.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, surgeon)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.svc.ListRules(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name          string         `json:"name"`
		Condition     map[string]any `json:"condition"`
		Mode          string         `json:"mode"`
		Value         float64        `json:"value"`
		Active        *bool          `json:"active"`
		EffectiveFrom string         `json:"effective_from"`
		EffectiveTo   string         `json:"effective_to"`
	}
	if err := readJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	conditionJSON := ""
	if input.Condition != nil {
		raw, err := json.Marshal(input.Condition)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: condition: %v", tracker.ErrInvalidInput, err))
			return
		}
		conditionJSON = string(raw)
	}

	principal, _ := principalFrom(r.Context())
	rule, err := s.svc.CreateRule(r.Context(), tracker.RuleInput{
		Name:          input.Name,
		ConditionJSON: conditionJSON,
		Mode:          input.Mode,
		Value:         input.Value,
		Active:        input.Active,
		EffectiveFrom: input.EffectiveFrom,
		EffectiveTo:   input.EffectiveTo,
		Actor:         principal.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handlePreviewCommission(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Attributes map[string]string `json:"attributes"`
		At         string            `json:"at"`
	}
	if err := readJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	var at time.Time
	if input.At != "" {
		parsed, err := time.Parse(time.RFC3339, input.At)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: at must be RFC3339", tracker.ErrInvalidInput))
			return
		}
		at = parsed
	}

	preview, err := s.svc.PreviewCommission(r.Context(), input.Attributes, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleSetRuleActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		principal, _ := principalFrom(r.Context())
		if err := s.svc.SetRuleActive(r.Context(), id, active, principal.Email); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": active})
	}
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ProcedureID uint64 `json:"procedure_id"`
	}
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			writeError(w, r, err)
			return
		}
	}

	principal, _ := principalFrom(r.Context())
	result, err := s.svc.RecomputeCommission(r.Context(), tracker.RecomputeInput{
		ProcedureID: input.ProcedureID,
		Actor:       principal.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: limit must be an integer", tracker.ErrInvalidInput))
			return
		}
		limit = parsed
	}
	entries, err := s.svc.ListAuditLogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func pathID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer, got %q", tracker.ErrInvalidInput, raw)
	}
	return id, nil
}

func parseIDList(raw string) ([]uint64, error) {
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ids must be comma separated integers, got %q", tracker.ErrInvalidInput, part)
		}
		out = append(out, id)
	}
	return out, nil
}
