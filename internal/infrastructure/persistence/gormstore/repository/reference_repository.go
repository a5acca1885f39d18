package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"orthotracker/internal/errs"
	"orthotracker/internal/infrastructure/persistence/gormstore/model"
	"orthotracker/internal/ports"
)

type ReferenceRepository struct {
	db *gorm.DB
}

var _ ports.ReferenceRepository = (*ReferenceRepository)(nil)

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) CreateHospital(ctx context.Context, hospital ports.Hospital) (ports.Hospital, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Hospital{}, err
	}

	name := strings.TrimSpace(hospital.Name)
	var existing int64
	if err := db.Model(&model.Hospital{}).Where("lower(name) = ?", strings.ToLower(name)).Count(&existing).Error; err != nil {
		return ports.Hospital{}, errs.Wrap(err, "check hospital name")
	}
	if existing > 0 {
		return ports.Hospital{}, ports.ErrHospitalExists
	}

	row := model.Hospital{
		Name:    name,
		Address: hospital.Address,
		GeoLat:  hospital.GeoLat,
		GeoLng:  hospital.GeoLng,
	}
	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ports.Hospital{}, ports.ErrHospitalExists
		}
		return ports.Hospital{}, errs.Wrap(err, "insert hospital")
	}
	return mapHospital(row), nil
}

func (r *ReferenceRepository) GetHospital(ctx context.Context, hospitalID uint64) (ports.Hospital, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Hospital{}, err
	}

	var row model.Hospital
	if err := db.Where("hospital_id = ?", hospitalID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Hospital{}, ports.ErrHospitalNotFound
		}
		return ports.Hospital{}, errs.Wrap(err, "query hospital")
	}
	return mapHospital(row), nil
}

func (r *ReferenceRepository) ListHospitals(ctx context.Context) ([]ports.Hospital, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Hospital
	if err := db.Order("name asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query hospitals")
	}

	items := make([]ports.Hospital, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapHospital(row))
	}
	return items, nil
}

func (r *ReferenceRepository) CreateSurgeon(ctx context.Context, surgeon ports.Surgeon) (ports.Surgeon, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Surgeon{}, err
	}

	row := model.Surgeon{
		Name:       strings.TrimSpace(surgeon.Name),
		HospitalID: surgeon.HospitalID,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Surgeon{}, errs.Wrap(err, "insert surgeon")
	}
	return ports.Surgeon{
		SurgeonID:  row.SurgeonID,
		Name:       row.Name,
		HospitalID: row.HospitalID,
	}, nil
}

func (r *ReferenceRepository) ListSurgeons(ctx context.Context, hospitalID uint64) ([]ports.Surgeon, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Surgeon{})
	if hospitalID > 0 {
		query = query.Where("hospital_id = ?", hospitalID)
	}

	var rows []model.Surgeon
	if err := query.Order("name asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query surgeons")
	}

	items := make([]ports.Surgeon, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Surgeon{
			SurgeonID:  row.SurgeonID,
			Name:       row.Name,
			HospitalID: row.HospitalID,
		})
	}
	return items, nil
}

func mapHospital(row model.Hospital) ports.Hospital {
	return ports.Hospital{
		HospitalID: row.HospitalID,
		Name:       row.Name,
		Address:    row.Address,
		GeoLat:     row.GeoLat,
		GeoLng:     row.GeoLng,
	}
}
