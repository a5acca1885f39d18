package ports

import (
	"context"
	"errors"
)

var (
	ErrHospitalNotFound = errors.New("hospital not found")
	ErrHospitalExists   = errors.New("hospital already exists")
)

type Hospital struct {
	HospitalID uint64
	Name       string
	Address    string
	GeoLat     string
	GeoLng     string
}

type Surgeon struct {
	SurgeonID  uint64
	Name       string
	HospitalID uint64
}

type ReferenceRepository interface {
	CreateHospital(ctx context.Context, hospital Hospital) (Hospital, error)
	GetHospital(ctx context.Context, hospitalID uint64) (Hospital, error)
	ListHospitals(ctx context.Context) ([]Hospital, error)
	CreateSurgeon(ctx context.Context, surgeon Surgeon) (Surgeon, error)
	// ListSurgeons returns every surgeon when hospitalID is zero.
	ListSurgeons(ctx context.Context, hospitalID uint64) ([]Surgeon, error)
}
