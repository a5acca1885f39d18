package tracker

import (
	"context"
	"errors"
	"testing"

	"orthotracker/internal/domain/commission"
)

func TestRegisterUserAndAuthenticate(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	user, err := env.svc.RegisterUser(ctx, RegisterUserInput{
		Email:    "  Ann@Example.com ",
		FullName: "Ann Otieno",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	if user.Email != "ann@example.com" || user.Role != RoleRep || user.RepID == 0 || !user.IsActive {
		t.Fatalf("RegisterUser() = %#v", user)
	}

	if _, err := env.svc.RegisterUser(ctx, RegisterUserInput{
		Email:    "ann@example.com",
		FullName: "Again",
		Password: "s3cret-pass",
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("RegisterUser(dup) error = %v, want ErrEmailTaken", err)
	}

	login, err := env.svc.Authenticate(ctx, "ANN@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if login.Token == "" || login.User.UserID != user.UserID {
		t.Fatalf("Authenticate() = %#v", login)
	}

	principal, err := env.svc.VerifyToken(ctx, login.Token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if principal.UserID != user.UserID || principal.Role != RoleRep || principal.Email != "ann@example.com" {
		t.Fatalf("VerifyToken() = %#v", principal)
	}

	if _, err := env.svc.Authenticate(ctx, "ann@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Authenticate(wrong password) error = %v", err)
	}
	if _, err := env.svc.Authenticate(ctx, "nobody@example.com", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Authenticate(unknown) error = %v", err)
	}
	if _, err := env.svc.VerifyToken(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("VerifyToken(garbage) error = %v", err)
	}

	actions := auditActions(t, env.svc)
	if !containsAction(actions, "register") || !containsAction(actions, "login") {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestRegisterUserValidation(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	testCases := []struct {
		name  string
		input RegisterUserInput
	}{
		{name: "bad email", input: RegisterUserInput{Email: "ann", FullName: "Ann", Password: "s3cret-pass"}},
		{name: "no name", input: RegisterUserInput{Email: "ann@example.com", Password: "s3cret-pass"}},
		{name: "short password", input: RegisterUserInput{Email: "ann@example.com", FullName: "Ann", Password: "short"}},
		{name: "bad role", input: RegisterUserInput{Email: "ann@example.com", FullName: "Ann", Password: "s3cret-pass", Role: "owner"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := env.svc.RegisterUser(ctx, testCase.input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("RegisterUser() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateAdminAndListUsers(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	admin, err := env.svc.CreateAdmin(ctx, RegisterUserInput{
		Email:    "boss@example.com",
		FullName: "Boss",
		Password: "s3cret-pass",
		Role:     RoleRep,
	})
	if err != nil {
		t.Fatalf("CreateAdmin() error = %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Fatalf("CreateAdmin() role = %q", admin.Role)
	}
	mustRegister(t, env.svc, "rep@example.com", "")

	users, err := env.svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("ListUsers() len = %d", len(users))
	}
	if !containsAction(auditActions(t, env.svc), "create_admin") {
		t.Fatalf("audit missing create_admin")
	}
}

func TestReferenceData(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	hospital, err := env.svc.AddHospital(ctx, HospitalInput{Name: " Mater ", GeoLat: "-1.3", GeoLng: "36.8", Actor: "admin@example.com"})
	if err != nil {
		t.Fatalf("AddHospital() error = %v", err)
	}
	if hospital.Name != "Mater" {
		t.Fatalf("AddHospital() name = %q", hospital.Name)
	}
	if _, err := env.svc.AddHospital(ctx, HospitalInput{Name: "MATER"}); !errors.Is(err, ErrHospitalExists) {
		t.Fatalf("AddHospital(dup) error = %v, want ErrHospitalExists", err)
	}
	if _, err := env.svc.AddHospital(ctx, HospitalInput{Name: "Far", GeoLat: "200"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("AddHospital(bad lat) error = %v", err)
	}

	if _, err := env.svc.AddSurgeon(ctx, SurgeonInput{Name: "Dr. Kamau", HospitalID: 999}); !errors.Is(err, ErrHospitalNotFound) {
		t.Fatalf("AddSurgeon(missing hospital) error = %v, want ErrHospitalNotFound", err)
	}
	if _, err := env.svc.AddSurgeon(ctx, SurgeonInput{Name: "Dr. Kamau", HospitalID: hospital.HospitalID}); err != nil {
		t.Fatalf("AddSurgeon() error = %v", err)
	}

	surgeons, err := env.svc.ListSurgeons(ctx, hospital.HospitalID)
	if err != nil {
		t.Fatalf("ListSurgeons() error = %v", err)
	}
	if len(surgeons) != 1 {
		t.Fatalf("ListSurgeons() len = %d", len(surgeons))
	}

	actions := auditActions(t, env.svc)
	if !containsAction(actions, "create_hospital") || !containsAction(actions, "create_surgeon") {
		t.Fatalf("audit actions = %v", actions)
	}
}
