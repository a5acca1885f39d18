package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/ports"
)

// RecomputeCommission overwrites stored commissions with the amount the
// current rules produce. Commissions never change any other way.
func (s *Service) RecomputeCommission(ctx context.Context, input RecomputeInput) (RecomputeResult, error) {
	if err := checkContext(ctx); err != nil {
		return RecomputeResult{}, err
	}

	now := s.nowUTC()
	nowText := formatTime(now)
	result := RecomputeResult{Changes: []RecomputeChange{}}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var targets []ports.Procedure
		if input.ProcedureID > 0 {
			procedure, err := s.procedures.GetProcedure(txCtx, input.ProcedureID)
			if err != nil {
				return err
			}
			targets = []ports.Procedure{procedure}
		} else {
			all, err := s.procedures.ListProcedures(txCtx, ports.ProcedureFilter{})
			if err != nil {
				return err
			}
			targets = all
		}

		rules, err := s.loadRuleSnapshot(txCtx)
		if err != nil {
			return err
		}

		for _, procedure := range targets {
			oldAmount := 0.0
			stored, err := s.procedures.GetCommission(txCtx, procedure.ProcedureID)
			switch {
			case err == nil:
				oldAmount = stored.Amount
			case errors.Is(err, ports.ErrCommissionNotFound):
			default:
				return err
			}

			parts := s.evaluator.Explain(domainProcedure(procedure), rules, now)
			newAmount := 0.0
			ruleIDs := make([]uint64, 0, len(parts))
			for _, part := range parts {
				newAmount += part.Amount
				ruleIDs = append(ruleIDs, part.RuleID)
			}

			if _, err := s.procedures.SaveCommission(txCtx, ports.Commission{
				ProcedureID:  procedure.ProcedureID,
				RepID:        procedure.RepID,
				Amount:       newAmount,
				CalculatedAt: nowText,
			}); err != nil {
				return err
			}

			details := fmt.Sprintf("%s -> %s rules=[%s]", formatAmount(oldAmount), formatAmount(newAmount), joinIDs(ruleIDs))
			if err := appendAuditTx(txCtx, s.audit, input.Actor, "recompute_commission", "procedure", strconv.FormatUint(procedure.ProcedureID, 10), details, nowText); err != nil {
				return err
			}

			result.Changes = append(result.Changes, RecomputeChange{
				ProcedureID: procedure.ProcedureID,
				Old:         oldAmount,
				New:         newAmount,
				RuleIDs:     ruleIDs,
			})
		}
		result.Updated = len(result.Changes)
		return nil
	}); err != nil {
		return RecomputeResult{}, err
	}

	s.invalidateDashboard(ctx)
	if payload, err := json.Marshal(result); err == nil {
		s.publishBestEffort(ctx, ports.SubjectCommissionRecomputed, payload)
	}
	if s.metrics != nil {
		s.metrics.CommissionRecomputed(result.Updated)
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "tracker.service")),
		"commissions recomputed",
		slog.Int("updated", result.Updated),
	)
	return result, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(id, 10))
	}
	return strings.Join(parts, ",")
}
