package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"orthotracker/internal/domain/commission"
	"orthotracker/internal/ports"
)

func seedScenarioRules(t *testing.T, svc *Service) (RuleView, RuleView) {
	t.Helper()
	knee := mustCreateRule(t, svc, "knee 5%", `{"procedure_type":"Knee Arthroplasty"}`, "percentage", 5)
	county := mustCreateRule(t, svc, "county bonus", `{"hospital":"County Hospital"}`, "fixed", 1000)
	return knee, county
}

func TestLogProcedureStoresCommissionSnapshot(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	rep := mustRegister(t, env.svc, "ann@example.com", "")
	seedScenarioRules(t, env.svc)

	result, err := env.svc.LogProcedure(ctx, ProcedureInput{
		RepEmail:      "ANN@example.com",
		Hospital:      " County Hospital ",
		Surgeon:       "Dr. Kamau",
		ProcedureType: "Knee Arthroplasty",
		Date:          "2025-03-01",
		Revenue:       200000,
		Attachments:   []AttachmentUpload{{Filename: "C:\\scans\\scan.png", Body: []byte("png")}},
	})
	if err != nil {
		t.Fatalf("LogProcedure() error = %v", err)
	}
	if result.Commission != 11000 {
		t.Fatalf("LogProcedure() commission = %v, want 11000", result.Commission)
	}

	detail, err := env.svc.GetProcedure(ctx, result.ProcedureID)
	if err != nil {
		t.Fatalf("GetProcedure() error = %v", err)
	}
	if detail.Procedure.Hospital != "County Hospital" || detail.Procedure.Status != StatusPending {
		t.Fatalf("GetProcedure() = %#v", detail.Procedure)
	}
	if detail.Procedure.RepID != rep.RepID || detail.Procedure.RepName != "User ann@example.com" {
		t.Fatalf("GetProcedure() rep = %d %q", detail.Procedure.RepID, detail.Procedure.RepName)
	}
	if detail.Procedure.Commission != 11000 || detail.CalculatedAt != formatTime(fixedNow) {
		t.Fatalf("GetProcedure() commission = %v at %q", detail.Procedure.Commission, detail.CalculatedAt)
	}

	wantName := fmt.Sprintf("%d_scan.png", fixedNow.Unix())
	if len(detail.Attachments) != 1 || detail.Attachments[0].Filename != wantName || detail.Attachments[0].Location != "mem://"+wantName {
		t.Fatalf("GetProcedure() attachments = %#v", detail.Attachments)
	}
	if string(env.store.files[wantName]) != "png" {
		t.Fatalf("stored attachment = %q", env.store.files[wantName])
	}

	if len(env.publisher.events) != 1 || env.publisher.events[0].subject != ports.SubjectProcedureLogged {
		t.Fatalf("published events = %#v", env.publisher.events)
	}
	if !strings.Contains(env.publisher.events[0].payload, `"commission":11000`) {
		t.Fatalf("event payload = %s", env.publisher.events[0].payload)
	}
	if env.cache.deletes != 1 {
		t.Fatalf("cache deletes = %d, want 1", env.cache.deletes)
	}
	if env.metrics.logged[SourceOnline] != 1 {
		t.Fatalf("metrics logged = %#v", env.metrics.logged)
	}
	if !containsAction(auditActions(t, env.svc), "create_procedure") {
		t.Fatalf("audit missing create_procedure")
	}
}

func TestLogProcedureDefaultsDate(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()
	mustRegister(t, env.svc, "ann@example.com", "")

	result, err := env.svc.LogProcedure(ctx, ProcedureInput{
		RepEmail:      "ann@example.com",
		RepName:       "Ann O.",
		Hospital:      "Mater",
		ProcedureType: "Other",
	})
	if err != nil {
		t.Fatalf("LogProcedure() error = %v", err)
	}
	if result.Commission != 0 {
		t.Fatalf("LogProcedure() commission = %v, want 0 without rules", result.Commission)
	}
	detail, err := env.svc.GetProcedure(ctx, result.ProcedureID)
	if err != nil {
		t.Fatalf("GetProcedure() error = %v", err)
	}
	if detail.Procedure.Date != "2025-03-14" || detail.Procedure.RepName != "Ann O." {
		t.Fatalf("GetProcedure() = %#v", detail.Procedure)
	}
}

func TestLogProcedureValidation(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()
	mustRegister(t, env.svc, "ann@example.com", "")

	base := ProcedureInput{RepEmail: "ann@example.com", Hospital: "Mater", ProcedureType: "Other", Date: "2025-03-01", Revenue: 10}
	testCases := []struct {
		name   string
		mutate func(in *ProcedureInput)
		want   error
	}{
		{name: "no email", mutate: func(in *ProcedureInput) { in.RepEmail = " " }, want: ErrInvalidInput},
		{name: "no hospital", mutate: func(in *ProcedureInput) { in.Hospital = "" }, want: ErrInvalidInput},
		{name: "no type", mutate: func(in *ProcedureInput) { in.ProcedureType = "" }, want: ErrInvalidInput},
		{name: "bad date", mutate: func(in *ProcedureInput) { in.Date = "14/03/2025" }, want: ErrInvalidInput},
		{name: "negative revenue", mutate: func(in *ProcedureInput) { in.Revenue = -1 }, want: ErrInvalidInput},
		{name: "unknown rep", mutate: func(in *ProcedureInput) { in.RepEmail = "ghost@example.com" }, want: ErrUserNotFound},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			input := base
			testCase.mutate(&input)
			if _, err := env.svc.LogProcedure(ctx, input); !errors.Is(err, testCase.want) {
				t.Fatalf("LogProcedure() error = %v, want %v", err, testCase.want)
			}
		})
	}

	procedures, err := env.svc.ListProcedures(ctx, ProcedureFilter{})
	if err != nil {
		t.Fatalf("ListProcedures() error = %v", err)
	}
	if len(procedures) != 0 {
		t.Fatalf("ListProcedures() len = %d after rejected input", len(procedures))
	}
}

func TestLogProcedureKeepsAttachmentsWithSameBasename(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()
	mustRegister(t, env.svc, "ann@example.com", "")

	result, err := env.svc.LogProcedure(ctx, ProcedureInput{
		RepEmail:      "ann@example.com",
		Hospital:      "Mater",
		ProcedureType: "Other",
		Attachments: []AttachmentUpload{
			{Filename: "front/scan.png", Body: []byte("front")},
			{Filename: "back/scan.png", Body: []byte("back")},
			{Filename: "scan.png", Body: []byte("side")},
		},
	})
	if err != nil {
		t.Fatalf("LogProcedure() error = %v", err)
	}

	detail, err := env.svc.GetProcedure(ctx, result.ProcedureID)
	if err != nil {
		t.Fatalf("GetProcedure() error = %v", err)
	}
	stamp := fixedNow.Unix()
	want := map[string]string{
		fmt.Sprintf("%d_scan.png", stamp):   "front",
		fmt.Sprintf("%d_scan-2.png", stamp): "back",
		fmt.Sprintf("%d_scan-3.png", stamp): "side",
	}
	if len(detail.Attachments) != len(want) {
		t.Fatalf("GetProcedure() attachments = %#v", detail.Attachments)
	}
	for _, attachment := range detail.Attachments {
		body, ok := want[attachment.Filename]
		if !ok || attachment.Location != "mem://"+attachment.Filename {
			t.Fatalf("unexpected attachment %#v", attachment)
		}
		if got := string(env.store.files[attachment.Filename]); got != body {
			t.Fatalf("stored %s = %q, want %q", attachment.Filename, got, body)
		}
	}
}

func TestLogProcedureAttachmentFailureWritesNothing(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()
	mustRegister(t, env.svc, "ann@example.com", "")
	env.store.err = errors.New("bucket unavailable")

	_, err := env.svc.LogProcedure(ctx, ProcedureInput{
		RepEmail:      "ann@example.com",
		Hospital:      "Mater",
		ProcedureType: "Other",
		Attachments:   []AttachmentUpload{{Filename: "x.pdf", Body: []byte("x")}},
	})
	if err == nil {
		t.Fatalf("LogProcedure() expected storage error")
	}
	procedures, err := env.svc.ListProcedures(ctx, ProcedureFilter{})
	if err != nil {
		t.Fatalf("ListProcedures() error = %v", err)
	}
	if len(procedures) != 0 {
		t.Fatalf("ListProcedures() len = %d, want 0", len(procedures))
	}
}

func TestCommissionSnapshotSurvivesRuleChangesUntilRecompute(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()
	mustRegister(t, env.svc, "ann@example.com", "")
	knee, county := seedScenarioRules(t, env.svc)

	logged, err := env.svc.LogProcedure(ctx, ProcedureInput{
		RepEmail:      "ann@example.com",
		Hospital:      "County Hospital",
		ProcedureType: "Knee Arthroplasty",
		Revenue:       200000,
	})
	if err != nil {
		t.Fatalf("LogProcedure() error = %v", err)
	}

	if err := env.svc.SetRuleActive(ctx, county.RuleID, false, "admin@example.com"); err != nil {
		t.Fatalf("SetRuleActive() error = %v", err)
	}
	detail, err := env.svc.GetProcedure(ctx, logged.ProcedureID)
	if err != nil {
		t.Fatalf("GetProcedure() error = %v", err)
	}
	if detail.Procedure.Commission != 11000 {
		t.Fatalf("commission after rule change = %v, want stored 11000", detail.Procedure.Commission)
	}

	result, err := env.svc.RecomputeCommission(ctx, RecomputeInput{ProcedureID: logged.ProcedureID, Actor: "admin@example.com"})
	if err != nil {
		t.Fatalf("RecomputeCommission() error = %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("RecomputeCommission() updated = %d", result.Updated)
	}
	change := result.Changes[0]
	if change.Old != 11000 || change.New != 10000 || len(change.RuleIDs) != 1 || change.RuleIDs[0] != knee.RuleID {
		t.Fatalf("RecomputeCommission() change = %#v", change)
	}

	detail, err = env.svc.GetProcedure(ctx, logged.ProcedureID)
	if err != nil {
		t.Fatalf("GetProcedure() error = %v", err)
	}
	if detail.Procedure.Commission != 10000 {
		t.Fatalf("commission after recompute = %v, want 10000", detail.Procedure.Commission)
	}

	entries, err := env.svc.ListAuditLogs(ctx, 1)
	if err != nil {
		t.Fatalf("ListAuditLogs() error = %v", err)
	}
	wantDetails := fmt.Sprintf("11000 -> 10000 rules=[%d]", knee.RuleID)
	if entries[0].Action != "recompute_commission" || entries[0].Details != wantDetails {
		t.Fatalf("audit = %#v, want details %q", entries[0], wantDetails)
	}

	last := env.publisher.events[len(env.publisher.events)-1]
	if last.subject != ports.SubjectCommissionRecomputed {
		t.Fatalf("last event subject = %s", last.subject)
	}
	if env.metrics.recomputed != 1 {
		t.Fatalf("metrics recomputed = %d", env.metrics.recomputed)
	}
}

func TestRecomputeAllProcedures(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()
	mustRegister(t, env.svc, "ann@example.com", "")

	for _, procedureType := range []string{"Knee Arthroplasty", "Hip Arthroplasty"} {
		if _, err := env.svc.LogProcedure(ctx, ProcedureInput{
			RepEmail:      "ann@example.com",
			Hospital:      "Mater",
			ProcedureType: procedureType,
			Revenue:       1000,
		}); err != nil {
			t.Fatalf("LogProcedure() error = %v", err)
		}
	}
	mustCreateRule(t, env.svc, "flat", `{}`, "fixed", 50)

	result, err := env.svc.RecomputeCommission(ctx, RecomputeInput{})
	if err != nil {
		t.Fatalf("RecomputeCommission() error = %v", err)
	}
	if result.Updated != 2 {
		t.Fatalf("RecomputeCommission() updated = %d, want 2", result.Updated)
	}
	for _, change := range result.Changes {
		if change.Old != 0 || change.New != 50 {
			t.Fatalf("RecomputeCommission() change = %#v", change)
		}
	}

	if _, err := env.svc.RecomputeCommission(ctx, RecomputeInput{ProcedureID: 999}); !errors.Is(err, ErrProcedureNotFound) {
		t.Fatalf("RecomputeCommission(missing) error = %v", err)
	}
}

func TestListProceduresFilters(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()
	mustRegister(t, env.svc, "ann@example.com", "")
	mustRegister(t, env.svc, "ben@example.com", "")

	var annIDs []uint64
	for _, email := range []string{"ann@example.com", "ben@example.com", "ann@example.com"} {
		logged, err := env.svc.LogProcedure(ctx, ProcedureInput{RepEmail: email, Hospital: "Mater", ProcedureType: "Other", Revenue: 100})
		if err != nil {
			t.Fatalf("LogProcedure() error = %v", err)
		}
		if email == "ann@example.com" {
			annIDs = append(annIDs, logged.ProcedureID)
		}
	}

	annOnly, err := env.svc.ListProcedures(ctx, ProcedureFilter{RepEmail: "ann@example.com"})
	if err != nil {
		t.Fatalf("ListProcedures() error = %v", err)
	}
	if len(annOnly) != 2 || annOnly[0].ProcedureID != annIDs[1] {
		t.Fatalf("ListProcedures(ann) = %#v", annOnly)
	}

	limited, err := env.svc.ListProcedures(ctx, ProcedureFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListProcedures() error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("ListProcedures(limit=1) len = %d", len(limited))
	}

	if _, err := env.svc.GetProcedure(ctx, 999); !errors.Is(err, ErrProcedureNotFound) {
		t.Fatalf("GetProcedure(missing) error = %v", err)
	}
}
