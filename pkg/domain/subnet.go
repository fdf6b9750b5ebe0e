package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
)

var (
	ErrUnknownTaskType     = errors.New("unknown task type")
	ErrUnknownSubnetStatus = errors.New("unknown subnet status")
)

// AccountID identifies the account calling registry operations.
type AccountID string

// SubnetStatus is the lifecycle state of a subnet.
//
// The only transition is Active -> Retired, one-way.
type SubnetStatus string

var (
	SubnetActive  SubnetStatus = "active"
	SubnetRetired SubnetStatus = "retired"
)

func (s SubnetStatus) String() string {
	return string(s)
}

func AsSubnetStatus(s string) (SubnetStatus, error) {
	switch SubnetStatus(s) {
	case SubnetActive:
		return SubnetActive, nil
	case SubnetRetired:
		return SubnetRetired, nil
	default:
		return SubnetStatus(s), fmt.Errorf("%w: %s", ErrUnknownSubnetStatus, s)
	}
}

// MaxCustomTaskLen bounds the payload of custom task types, in bytes.
const MaxCustomTaskLen = 64

type TaskName string

var (
	TaskCodeGen        TaskName = "code_gen"
	TaskImageGen       TaskName = "image_gen"
	TaskProteinFolding TaskName = "protein_folding"
	TaskCustom         TaskName = "custom"
)

// TaskType classifies the computational work a subnet serves.
//
// It is a closed set of named categories plus one open-ended "custom"
// category carrying a bounded label.
type TaskType struct {
	Name TaskName

	// Custom is set if and only if Name == TaskCustom.
	Custom string
}

func (t TaskType) String() string {
	if t.Name == TaskCustom {
		return string(TaskCustom) + ":" + t.Custom
	}
	return string(t.Name)
}

func (t TaskType) Equal(other TaskType) bool {
	return t.Name == other.Name && t.Custom == other.Custom
}

// Validate checks the closed set membership and the custom payload bound.
func (t TaskType) Validate() error {
	switch t.Name {
	case TaskCodeGen, TaskImageGen, TaskProteinFolding:
		if t.Custom != "" {
			return fmt.Errorf("%w: %s may not carry a custom label", ErrUnknownTaskType, t.Name)
		}
		return nil
	case TaskCustom:
		if t.Custom == "" {
			return fmt.Errorf("%w: custom task type needs a label", ErrUnknownTaskType)
		}
		if MaxCustomTaskLen < len(t.Custom) {
			return fmt.Errorf(
				"%w: %d bytes (max %d)",
				domerr.ErrTaskTypeTooLarge, len(t.Custom), MaxCustomTaskLen,
			)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTaskType, t.Name)
	}
}

// AsTaskType parses the format of TaskType.String :
// a bare task name, or "custom:LABEL".
func AsTaskType(s string) (TaskType, error) {
	name, label, isCustom := strings.Cut(s, ":")
	t := TaskType{Name: TaskName(name)}
	if isCustom {
		if t.Name != TaskCustom {
			return t, fmt.Errorf("%w: %s", ErrUnknownTaskType, s)
		}
		t.Custom = label
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Percent is an emission weight in whole percents, 0 to 100.
type Percent uint8

func (p Percent) String() string {
	return fmt.Sprintf("%d%%", uint8(p))
}

// AsPercent rejects values over 100 with ErrInvalidEmissionWeight.
func AsPercent(v uint32) (Percent, error) {
	if 100 < v {
		return 0, fmt.Errorf("%w: %d", domerr.ErrInvalidEmissionWeight, v)
	}
	return Percent(v), nil
}

// Limits are the deployment-time constants of the registry.
//
// They are fixed when a registry implementation is instantiated and are not
// mutable at runtime.
type Limits struct {
	// maximum size of input/output schemas, in bytes
	MaxSchemaSize uint32

	// maximum size of the evaluation spec URI, in bytes
	MaxUriSize uint32

	// maximum number of subnets in the registry, in total
	MaxSubnets uint32

	// maximum number of subnets one account can create
	MaxOwnedSubnets uint32

	// deposit reserved from the owner's balance on each create
	SubnetDeposit uint64
}

// WithDefaults fills unset fields with the deployment defaults.
func (l Limits) WithDefaults() Limits {
	if l.MaxSchemaSize == 0 {
		l.MaxSchemaSize = 10_000
	}
	if l.MaxUriSize == 0 {
		l.MaxUriSize = 1_000
	}
	if l.MaxSubnets == 0 {
		l.MaxSubnets = 100
	}
	if l.MaxOwnedSubnets == 0 {
		l.MaxOwnedSubnets = l.MaxSubnets
	}
	if l.SubnetDeposit == 0 {
		l.SubnetDeposit = 1_000
	}
	return l
}

// SubnetRecord is one row of the registry.
type SubnetRecord struct {
	// primary key, assigned at creation, immutable
	ID uint32

	TaskType TaskType

	// JSON schema for task inputs
	InputSchema []byte

	// JSON schema for task outputs
	OutputSchema []byte

	// URI of the evaluation criteria document
	EvaluationSpecURI []byte

	// share of network emissions routed to this subnet
	EmissionWeight Percent

	MinStakeMiner     uint64
	MinStakeValidator uint64

	// account with update privileges, immutable
	Owner AccountID

	Status SubnetStatus
}

func (r *SubnetRecord) Equal(other *SubnetRecord) bool {
	if (r == nil) || (other == nil) {
		return (r == nil) && (other == nil)
	}
	return r.ID == other.ID &&
		r.TaskType.Equal(other.TaskType) &&
		bytes.Equal(r.InputSchema, other.InputSchema) &&
		bytes.Equal(r.OutputSchema, other.OutputSchema) &&
		bytes.Equal(r.EvaluationSpecURI, other.EvaluationSpecURI) &&
		r.EmissionWeight == other.EmissionWeight &&
		r.MinStakeMiner == other.MinStakeMiner &&
		r.MinStakeValidator == other.MinStakeValidator &&
		r.Owner == other.Owner &&
		r.Status == other.Status
}

// Validate checks the bounded-field invariants of the record.
//
// These bounds hold always, not only at creation; every implementation
// re-validates before writing a record back.
func (r *SubnetRecord) Validate(limits Limits) error {
	if 100 < r.EmissionWeight {
		return fmt.Errorf("%w: %d", domerr.ErrInvalidEmissionWeight, r.EmissionWeight)
	}
	if err := r.TaskType.Validate(); err != nil {
		return err
	}
	if int(limits.MaxSchemaSize) < len(r.InputSchema) {
		return fmt.Errorf(
			"%w: input schema is %d bytes (max %d)",
			domerr.ErrSchemaTooLarge, len(r.InputSchema), limits.MaxSchemaSize,
		)
	}
	if int(limits.MaxSchemaSize) < len(r.OutputSchema) {
		return fmt.Errorf(
			"%w: output schema is %d bytes (max %d)",
			domerr.ErrSchemaTooLarge, len(r.OutputSchema), limits.MaxSchemaSize,
		)
	}
	if int(limits.MaxUriSize) < len(r.EvaluationSpecURI) {
		return fmt.Errorf(
			"%w: evaluation spec uri is %d bytes (max %d)",
			domerr.ErrUriTooLarge, len(r.EvaluationSpecURI), limits.MaxUriSize,
		)
	}
	return nil
}

// SubnetSpec carries the parameters of a create operation.
//
// Owner is the authenticated caller; it becomes the record owner.
type SubnetSpec struct {
	Owner             AccountID
	TaskType          TaskType
	InputSchema       []byte
	OutputSchema      []byte
	EvaluationSpecURI []byte
	EmissionWeight    Percent
	MinStakeMiner     uint64
	MinStakeValidator uint64
}

// Validate runs the stateless preconditions of create, in the order the
// registry reports them: emission weight, then schemas, then the URI.
func (s *SubnetSpec) Validate(limits Limits) error {
	r := SubnetRecord{
		TaskType:          s.TaskType,
		InputSchema:       s.InputSchema,
		OutputSchema:      s.OutputSchema,
		EvaluationSpecURI: s.EvaluationSpecURI,
		EmissionWeight:    s.EmissionWeight,
	}
	return r.Validate(limits)
}

// Build composes the Active record this spec creates under the given id.
func (s *SubnetSpec) Build(id uint32) SubnetRecord {
	return SubnetRecord{
		ID:                id,
		TaskType:          s.TaskType,
		InputSchema:       s.InputSchema,
		OutputSchema:      s.OutputSchema,
		EvaluationSpecURI: s.EvaluationSpecURI,
		EmissionWeight:    s.EmissionWeight,
		MinStakeMiner:     s.MinStakeMiner,
		MinStakeValidator: s.MinStakeValidator,
		Owner:             s.Owner,
		Status:            SubnetActive,
	}
}

// SubnetUpdate represents the intent of an update operation.
//
// nil fields are left unchanged. A non-nil field replaces the stored value
// after re-validation; the whole update fails if any supplied field is
// invalid.
type SubnetUpdate struct {
	InputSchema       []byte
	OutputSchema      []byte
	EvaluationSpecURI []byte
	EmissionWeight    *Percent
	MinStakeMiner     *uint64
	MinStakeValidator *uint64
}

func (u *SubnetUpdate) Empty() bool {
	return u.InputSchema == nil &&
		u.OutputSchema == nil &&
		u.EvaluationSpecURI == nil &&
		u.EmissionWeight == nil &&
		u.MinStakeMiner == nil &&
		u.MinStakeValidator == nil
}

// Apply returns a copy of record with the supplied fields replaced and
// validated against limits. record itself is not modified, so a validation
// failure leaves the stored value untouched.
func (u *SubnetUpdate) Apply(record SubnetRecord, limits Limits) (SubnetRecord, error) {
	if u.InputSchema != nil {
		record.InputSchema = u.InputSchema
	}
	if u.OutputSchema != nil {
		record.OutputSchema = u.OutputSchema
	}
	if u.EvaluationSpecURI != nil {
		record.EvaluationSpecURI = u.EvaluationSpecURI
	}
	if u.EmissionWeight != nil {
		record.EmissionWeight = *u.EmissionWeight
	}
	if u.MinStakeMiner != nil {
		record.MinStakeMiner = *u.MinStakeMiner
	}
	if u.MinStakeValidator != nil {
		record.MinStakeValidator = *u.MinStakeValidator
	}

	if err := record.Validate(limits); err != nil {
		return SubnetRecord{}, err
	}
	return record, nil
}
