package tracker

import (
	"time"

	"orthotracker/internal/domain/commission"
	"orthotracker/internal/ports"
)

const (
	RoleAdmin = "admin"
	RoleRep   = "rep"

	StatusPending = "pending"

	SourceOnline  = "online"
	SourceOffline = "offline"

	DefaultDashboardTTL = 5 * time.Minute
	DefaultAuditLimit   = 200
	RecentProcedures    = 20

	minPasswordLength = 8
	dateLayout        = "2006-01-02"
)

// Dependencies groups the ports a Service is built from. Cache, Events,
// Metrics and Queue may be nil.
type Dependencies struct {
	Users       ports.UserRepository
	References  ports.ReferenceRepository
	Procedures  ports.ProcedureRepository
	Rules       ports.RuleRepository
	Audit       ports.AuditRepository
	UnitOfWork  ports.UnitOfWork
	Cache       ports.Cache
	Attachments ports.AttachmentStore
	Queue       ports.OfflineQueue
	Events      ports.EventPublisher
	Hasher      ports.PasswordHasher
	Tokens      ports.TokenIssuer
	Metrics     ports.MetricsRecorder
	Reports     ports.ProcedureReportWriter
}

type Options struct {
	EmptyCondition commission.EmptyConditionPolicy
	DashboardTTL   time.Duration
}

type Service struct {
	users       ports.UserRepository
	references  ports.ReferenceRepository
	procedures  ports.ProcedureRepository
	rules       ports.RuleRepository
	audit       ports.AuditRepository
	uow         ports.UnitOfWork
	cache       ports.Cache
	attachments ports.AttachmentStore
	queue       ports.OfflineQueue
	events      ports.EventPublisher
	hasher      ports.PasswordHasher
	tokens      ports.TokenIssuer
	metrics     ports.MetricsRecorder
	reports     ports.ProcedureReportWriter

	policy       commission.EmptyConditionPolicy
	evaluator    commission.Evaluator
	dashboardTTL time.Duration
	now          func() time.Time
}

// NewService wires the tracker use cases.
func NewService(deps Dependencies, opts Options) *Service {
	policy := opts.EmptyCondition
	if policy == "" {
		policy = commission.EmptyConditionMatchAll
	}
	ttl := opts.DashboardTTL
	if ttl <= 0 {
		ttl = DefaultDashboardTTL
	}

	return &Service{
		users:        deps.Users,
		references:   deps.References,
		procedures:   deps.Procedures,
		rules:        deps.Rules,
		audit:        deps.Audit,
		uow:          deps.UnitOfWork,
		cache:        deps.Cache,
		attachments:  deps.Attachments,
		queue:        deps.Queue,
		events:       deps.Events,
		hasher:       deps.Hasher,
		tokens:       deps.Tokens,
		metrics:      deps.Metrics,
		reports:      deps.Reports,
		policy:       policy,
		evaluator:    commission.Evaluator{EmptyCondition: policy},
		dashboardTTL: ttl,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type UserView struct {
	UserID    uint64 `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	RepID     uint64 `json:"rep_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

type RegisterUserInput struct {
	Email    string
	FullName string
	Password string
	Role     string
	Actor    string
}

type LoginResult struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

type HospitalInput struct {
	Name    string
	Address string
	GeoLat  string
	GeoLng  string
	Actor   string
}

type SurgeonInput struct {
	Name       string
	HospitalID uint64
	Actor      string
}

type RuleInput struct {
	Name          string
	ConditionJSON string
	Mode          string
	Value         float64
	// Active defaults to true when nil.
	Active *bool
	// EffectiveFrom and EffectiveTo accept RFC3339 or YYYY-MM-DD; blank
	// means the default window.
	EffectiveFrom string
	EffectiveTo   string
	Actor         string
}

type RuleView struct {
	RuleID        uint64               `json:"id"`
	Name          string               `json:"name"`
	Condition     commission.Condition `json:"condition"`
	Mode          string               `json:"mode"`
	Value         float64              `json:"value"`
	Active        bool                 `json:"active"`
	EffectiveFrom string               `json:"effective_from"`
	EffectiveTo   string               `json:"effective_to"`
	CreatedAt     string               `json:"created_at"`
}

type PreviewResult struct {
	Total             float64                   `json:"total"`
	Contributions     []commission.Contribution `json:"contributions"`
	UnknownAttributes []string                  `json:"unknown_attributes,omitempty"`
}

type AttachmentUpload struct {
	Filename string
	Body     []byte
}

type ProcedureInput struct {
	RepEmail      string
	RepName       string
	Hospital      string
	Surgeon       string
	ProcedureType string
	Date          string
	Revenue       float64
	Notes         string
	Attachments   []AttachmentUpload
}

type LogResult struct {
	ProcedureID uint64  `json:"id"`
	Commission  float64 `json:"commission"`
}

type ProcedureFilter struct {
	RepEmail string
	IDs      []uint64
	Limit    int
}

type ProcedureView struct {
	ProcedureID   uint64  `json:"id"`
	RepID         uint64  `json:"rep_id"`
	RepName       string  `json:"rep_name"`
	Hospital      string  `json:"hospital"`
	Surgeon       string  `json:"surgeon"`
	ProcedureType string  `json:"procedure_type"`
	Date          string  `json:"date"`
	Revenue       float64 `json:"revenue"`
	Notes         string  `json:"notes"`
	Status        string  `json:"status"`
	Commission    float64 `json:"commission"`
	CreatedAt     string  `json:"created_at"`
}

type AttachmentView struct {
	AttachmentID uint64 `json:"id"`
	Filename     string `json:"filename"`
	Location     string `json:"location"`
	UploadedAt   string `json:"uploaded_at"`
}

type ProcedureDetail struct {
	Procedure    ProcedureView    `json:"procedure"`
	Attachments  []AttachmentView `json:"attachments"`
	CalculatedAt string           `json:"calculated_at,omitempty"`
}

type RecomputeInput struct {
	// ProcedureID zero means every procedure.
	ProcedureID uint64
	Actor       string
}

type RecomputeChange struct {
	ProcedureID uint64   `json:"procedure_id"`
	Old         float64  `json:"old"`
	New         float64  `json:"new"`
	RuleIDs     []uint64 `json:"rule_ids"`
}

type RecomputeResult struct {
	Updated int               `json:"updated"`
	Changes []RecomputeChange `json:"changes"`
}

type SyncResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

type TypeCount struct {
	ProcedureType string `json:"procedure_type"`
	Count         int64  `json:"count"`
}

type DashboardKPIs struct {
	TotalProcedures int64           `json:"total_procedures"`
	TotalRevenue    float64         `json:"total_revenue"`
	Pending         int64           `json:"pending"`
	TotalCommission float64         `json:"total_commission"`
	ByType          []TypeCount     `json:"by_type"`
	Recent          []ProcedureView `json:"recent"`
	GeneratedAt     string          `json:"generated_at"`
}

type AuditView struct {
	AuditID   uint64 `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}
