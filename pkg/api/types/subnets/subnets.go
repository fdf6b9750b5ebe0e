package subnets

import (
	"fmt"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
)

// Detail is the full API representation of a registered subnet.
//
// Schemas and the evaluation spec URI travel as plain strings; the
// registry stores them as opaque bytes.
type Detail struct {
	SubnetId          uint32 `json:"subnetId"`
	TaskType          string `json:"taskType"`
	InputSchema       string `json:"inputSchema"`
	OutputSchema      string `json:"outputSchema"`
	EvaluationSpecUri string `json:"evaluationSpecUri"`
	EmissionWeight    uint8  `json:"emissionWeight"`
	MinStakeMiner     uint64 `json:"minStakeMiner"`
	MinStakeValidator uint64 `json:"minStakeValidator"`
	Owner             string `json:"owner"`
	Status            string `json:"status"`
}

func ComposeDetail(r domain.SubnetRecord) Detail {
	return Detail{
		SubnetId:          r.ID,
		TaskType:          r.TaskType.String(),
		InputSchema:       string(r.InputSchema),
		OutputSchema:      string(r.OutputSchema),
		EvaluationSpecUri: string(r.EvaluationSpecURI),
		EmissionWeight:    uint8(r.EmissionWeight),
		MinStakeMiner:     r.MinStakeMiner,
		MinStakeValidator: r.MinStakeValidator,
		Owner:             string(r.Owner),
		Status:            r.Status.String(),
	}
}

func (d *Detail) Equal(o *Detail) bool {
	if d == nil || o == nil {
		return (d == nil) && (o == nil)
	}
	return *d == *o
}

// Summary is the abbreviated representation used in listings.
type Summary struct {
	SubnetId uint32 `json:"subnetId"`
	TaskType string `json:"taskType"`
	Owner    string `json:"owner"`
	Status   string `json:"status"`
}

func ComposeSummary(r domain.SubnetRecord) Summary {
	return Summary{
		SubnetId: r.ID,
		TaskType: r.TaskType.String(),
		Owner:    string(r.Owner),
		Status:   r.Status.String(),
	}
}

func (s *Summary) Equal(o *Summary) bool {
	if s == nil || o == nil {
		return (s == nil) && (o == nil)
	}
	return *s == *o
}

// SubnetSpec is the request body of subnet registration.
type SubnetSpec struct {
	TaskType          string `json:"taskType"`
	InputSchema       string `json:"inputSchema"`
	OutputSchema      string `json:"outputSchema"`
	EvaluationSpecUri string `json:"evaluationSpecUri"`
	EmissionWeight    uint32 `json:"emissionWeight"`
	MinStakeMiner     uint64 `json:"minStakeMiner"`
	MinStakeValidator uint64 `json:"minStakeValidator"`
}

// AsSpec converts the request into registry terms on behalf of owner.
//
// Out-of-range emission weights and malformed task types are reported
// here, before the registry sees the request.
func (s SubnetSpec) AsSpec(owner domain.AccountID) (domain.SubnetSpec, error) {
	taskType, err := domain.AsTaskType(s.TaskType)
	if err != nil {
		return domain.SubnetSpec{}, err
	}
	weight, err := domain.AsPercent(s.EmissionWeight)
	if err != nil {
		return domain.SubnetSpec{}, err
	}
	return domain.SubnetSpec{
		Owner:             owner,
		TaskType:          taskType,
		InputSchema:       []byte(s.InputSchema),
		OutputSchema:      []byte(s.OutputSchema),
		EvaluationSpecURI: []byte(s.EvaluationSpecUri),
		EmissionWeight:    weight,
		MinStakeMiner:     s.MinStakeMiner,
		MinStakeValidator: s.MinStakeValidator,
	}, nil
}

// SubnetChange is the request body of subnet update.
//
// Absent (null) fields leave the stored value unchanged.
type SubnetChange struct {
	InputSchema       *string `json:"inputSchema,omitempty"`
	OutputSchema      *string `json:"outputSchema,omitempty"`
	EvaluationSpecUri *string `json:"evaluationSpecUri,omitempty"`
	EmissionWeight    *uint32 `json:"emissionWeight,omitempty"`
	MinStakeMiner     *uint64 `json:"minStakeMiner,omitempty"`
	MinStakeValidator *uint64 `json:"minStakeValidator,omitempty"`
}

func (c SubnetChange) AsUpdate() (domain.SubnetUpdate, error) {
	u := domain.SubnetUpdate{
		MinStakeMiner:     c.MinStakeMiner,
		MinStakeValidator: c.MinStakeValidator,
	}
	if c.InputSchema != nil {
		u.InputSchema = []byte(*c.InputSchema)
	}
	if c.OutputSchema != nil {
		u.OutputSchema = []byte(*c.OutputSchema)
	}
	if c.EvaluationSpecUri != nil {
		u.EvaluationSpecURI = []byte(*c.EvaluationSpecUri)
	}
	if c.EmissionWeight != nil {
		weight, err := domain.AsPercent(*c.EmissionWeight)
		if err != nil {
			return domain.SubnetUpdate{}, err
		}
		u.EmissionWeight = &weight
	}
	return u, nil
}

// Status is the response of the subnet status endpoint.
type Status struct {
	SubnetId uint32 `json:"subnetId"`
	Status   string `json:"status"`
}

// RegistrySummary reports registry-wide counters.
type RegistrySummary struct {
	NextSubnetId uint32 `json:"nextSubnetId"`
	TotalSubnets uint32 `json:"totalSubnets"`
	MaxSubnets   uint32 `json:"maxSubnets"`
}

// Balance is the API representation of an account's escrow balance.
type Balance struct {
	Account   string `json:"account"`
	Total     uint64 `json:"total"`
	Reserved  uint64 `json:"reserved"`
	Spendable uint64 `json:"spendable"`
}

func ComposeBalance(account domain.AccountID, b domain.Balance) Balance {
	return Balance{
		Account:   string(account),
		Total:     b.Total,
		Reserved:  b.Reserved,
		Spendable: b.Spendable(),
	}
}

// DepositRequest is the request body of the deposit endpoint.
type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

func (d DepositRequest) Validate() error {
	if d.Amount == 0 {
		return fmt.Errorf("deposit amount should be positive")
	}
	return nil
}
