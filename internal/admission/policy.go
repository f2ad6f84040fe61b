package admission

import (
	"strings"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
)

// Policy carries every calibration parameter of the admission controller.
// The defaults are documented starting points, not load-bearing truths.
type Policy struct {
	DailyBudget   float64
	MonthlyBudget float64

	HourlyRequestLimit int

	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration

	CacheEnabled bool
	CacheTTL     time.Duration

	BatchWindow    time.Duration
	BatchQueueCap  int
	BatchDiscount  float64
	BatchableOps   []string
	BatchingEnable bool

	SweepInterval time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		DailyBudget:   5.0,
		MonthlyBudget: 100.0,

		HourlyRequestLimit: 60,

		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      60 * time.Second,

		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,

		BatchWindow:    30 * time.Second,
		BatchQueueCap:  16,
		BatchDiscount:  0.3,
		BatchableOps:   []string{"summarize", "classify", "embed_batch"},
		BatchingEnable: true,

		SweepInterval: time.Minute,
	}
}

func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.DailyBudget <= 0 {
		p.DailyBudget = def.DailyBudget
	}
	if p.MonthlyBudget <= 0 {
		p.MonthlyBudget = def.MonthlyBudget
	}
	if p.HourlyRequestLimit <= 0 {
		p.HourlyRequestLimit = def.HourlyRequestLimit
	}
	if p.BreakerFailureThreshold == 0 {
		p.BreakerFailureThreshold = def.BreakerFailureThreshold
	}
	if p.BreakerOpenTimeout <= 0 {
		p.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = def.CacheTTL
	}
	if p.BatchWindow <= 0 {
		p.BatchWindow = def.BatchWindow
	}
	if p.BatchQueueCap <= 0 {
		p.BatchQueueCap = def.BatchQueueCap
	}
	if p.BatchDiscount <= 0 || p.BatchDiscount >= 1 {
		p.BatchDiscount = def.BatchDiscount
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = def.SweepInterval
	}
	return p
}

func (p Policy) isBatchable(operation string) bool {
	if !p.BatchingEnable {
		return false
	}
	for _, op := range p.BatchableOps {
		if strings.EqualFold(op, operation) {
			return true
		}
	}
	return false
}

// priorityMultiplier scales the hourly request limit per priority tier.
func priorityMultiplier(p domain.Priority) float64 {
	switch p {
	case domain.PriorityCritical:
		return 1.5
	case domain.PriorityHigh:
		return 1.2
	case domain.PriorityLow:
		return 0.5
	default:
		return 1.0
	}
}

// priorityQuota is the fraction of remaining budget reserved per tier.
func priorityQuota(p domain.Priority) float64 {
	switch p {
	case domain.PriorityCritical:
		return 0.50
	case domain.PriorityHigh:
		return 0.30
	case domain.PriorityLow:
		return 0.05
	default:
		return 0.15
	}
}
