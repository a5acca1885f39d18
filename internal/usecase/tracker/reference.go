package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"orthotracker/internal/ports"
)

func (s *Service) AddHospital(ctx context.Context, input HospitalInput) (ports.Hospital, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Hospital{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ports.Hospital{}, invalidInput("hospital name is required")
	}
	lat, err := normalizeCoordinate("geo_lat", input.GeoLat, 90)
	if err != nil {
		return ports.Hospital{}, err
	}
	lng, err := normalizeCoordinate("geo_lng", input.GeoLng, 180)
	if err != nil {
		return ports.Hospital{}, err
	}

	var created ports.Hospital
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.references.CreateHospital(txCtx, ports.Hospital{
			Name:    name,
			Address: strings.TrimSpace(input.Address),
			GeoLat:  lat,
			GeoLng:  lng,
		})
		if err != nil {
			return err
		}
		return appendAuditTx(txCtx, s.audit, input.Actor, "create_hospital", "hospital", strconv.FormatUint(created.HospitalID, 10), created.Name, formatTime(s.nowUTC()))
	}); err != nil {
		return ports.Hospital{}, err
	}
	return created, nil
}

func (s *Service) ListHospitals(ctx context.Context) ([]ports.Hospital, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.references.ListHospitals(ctx)
}

func (s *Service) AddSurgeon(ctx context.Context, input SurgeonInput) (ports.Surgeon, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Surgeon{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ports.Surgeon{}, invalidInput("surgeon name is required")
	}
	if input.HospitalID == 0 {
		return ports.Surgeon{}, invalidInput("hospital id is required")
	}

	var created ports.Surgeon
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.references.GetHospital(txCtx, input.HospitalID); err != nil {
			if errors.Is(err, ports.ErrHospitalNotFound) {
				return fmt.Errorf("%w: id %d", ErrHospitalNotFound, input.HospitalID)
			}
			return err
		}

		var err error
		created, err = s.references.CreateSurgeon(txCtx, ports.Surgeon{Name: name, HospitalID: input.HospitalID})
		if err != nil {
			return err
		}
		return appendAuditTx(txCtx, s.audit, input.Actor, "create_surgeon", "surgeon", strconv.FormatUint(created.SurgeonID, 10), created.Name, formatTime(s.nowUTC()))
	}); err != nil {
		return ports.Surgeon{}, err
	}
	return created, nil
}

// ListSurgeons returns every surgeon when hospitalID is zero.
func (s *Service) ListSurgeons(ctx context.Context, hospitalID uint64) ([]ports.Surgeon, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.references.ListSurgeons(ctx, hospitalID)
}

// normalizeCoordinate keeps coordinates as text but rejects values that are
// not numbers within +/-limit.
func normalizeCoordinate(field string, raw string, limit float64) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < -limit || parsed > limit {
		return "", invalidInput("%s must be a number between -%v and %v", field, limit, limit)
	}
	return value, nil
}
