package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	kpool "github.com/0xDevNinja/neuro-mesh/pkg/conn/db/postgres/pool"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
	kpgerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors/dberrors/postgres"
	kpgledger "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db/postgres"
	sdb "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db"
)

type registryPG struct { // implements sdb.RegistryInterface

	// connection pool for PostgreSQL
	pool kpool.Pool

	limits domain.Limits

	escrow kpgledger.Escrow
}

type Option func(*registryPG) *registryPG

// WithEscrow sets the escrow used to reserve deposits within the
// registry's own transactions.
func WithEscrow(escrow kpgledger.Escrow) Option {
	return func(r *registryPG) *registryPG {
		r.escrow = escrow
		return r
	}
}

// args:
//   - pool: connection pool used to query/exec SQL
//   - limits: deployment constants of the registry
func New(pool kpool.Pool, limits domain.Limits, option ...Option) *registryPG {
	r := &registryPG{
		pool:   pool,
		limits: limits.WithDefaults(),
		escrow: kpgledger.DefaultEscrow(),
	}
	for _, opt := range option {
		r = opt(r)
	}
	return r
}

var _ sdb.RegistryInterface = &registryPG{}

// serializable transactions: each registry operation is one indivisible
// unit of work, and the FOR UPDATE lock on the counter row keeps writers
// strictly sequential.
var txOptions = pgx.TxOptions{IsoLevel: pgx.Serializable}

func (r *registryPG) Create(ctx context.Context, spec domain.SubnetSpec) (uint32, error) {
	if 100 < spec.EmissionWeight {
		return 0, fmt.Errorf("%w: %d", domerr.ErrInvalidEmissionWeight, spec.EmissionWeight)
	}

	tx, err := r.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var nextID, total int64
	if err := tx.QueryRow(
		ctx, `select "next_id", "total" from "subnet_counter" for update`,
	).Scan(&nextID, &total); err != nil {
		return 0, err
	}

	if int64(r.limits.MaxSubnets) <= total {
		return 0, kpgerr.RegistryFull{Max: r.limits.MaxSubnets}
	}

	if err := spec.Validate(r.limits); err != nil {
		return 0, err
	}

	var ownedCount int64
	if err := tx.QueryRow(
		ctx, `select count(*) from "subnet_owner" where "owner" = $1`, string(spec.Owner),
	).Scan(&ownedCount); err != nil {
		return 0, err
	}
	if int64(r.limits.MaxOwnedSubnets) <= ownedCount {
		return 0, kpgerr.OwnerFull{Owner: string(spec.Owner), Max: r.limits.MaxOwnedSubnets}
	}

	if math.MaxUint32 <= nextID {
		return 0, fmt.Errorf("%w: subnet id space exhausted", domerr.ErrArithmeticOverflow)
	}
	if math.MaxUint32 <= total {
		return 0, fmt.Errorf("%w: subnet count exhausted", domerr.ErrArithmeticOverflow)
	}

	// every non-monetary precondition has passed; lock the deposit now,
	// in this same transaction, so a later failure rolls it back too.
	if err := r.escrow.Reserve(ctx, tx, spec.Owner, r.limits.SubnetDeposit); err != nil {
		return 0, err
	}

	id := uint32(nextID)
	record := spec.Build(id)

	minerStake, err := kpgledger.AsNumeric(record.MinStakeMiner)
	if err != nil {
		return 0, err
	}
	validatorStake, err := kpgledger.AsNumeric(record.MinStakeValidator)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(
		ctx,
		`
		insert into "subnet" (
			"id", "task_type", "task_custom",
			"input_schema", "output_schema", "evaluation_spec_uri",
			"emission_weight", "min_stake_miner", "min_stake_validator",
			"owner", "status"
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
		int64(id), string(record.TaskType.Name), record.TaskType.Custom,
		record.InputSchema, record.OutputSchema, record.EvaluationSpecURI,
		int16(record.EmissionWeight), minerStake, validatorStake,
		string(record.Owner), string(record.Status),
	); err != nil {
		return 0, asConflict(err, id)
	}

	if _, err := tx.Exec(
		ctx,
		`insert into "subnet_owner" ("owner", "ordinal", "subnet_id") values ($1, $2, $3)`,
		string(spec.Owner), ownedCount, int64(id),
	); err != nil {
		return 0, asConflict(err, id)
	}

	if _, err := tx.Exec(
		ctx,
		`update "subnet_counter" set "next_id" = $1, "total" = $2`,
		nextID+1, total+1,
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// unique violations should be unreachable under the counter lock, but when
// they happen anyway the error should say which subnet collided.
func asConflict(err error, id uint32) error {
	pgErr := &pgconn.PgError{}
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("subnet %d collides (%s): %w", id, pgErr.ConstraintName, err)
	}
	return err
}

func (r *registryPG) Update(ctx context.Context, caller domain.AccountID, id uint32, delta domain.SubnetUpdate) error {
	tx, err := r.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	record, err := getForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if record.Owner != caller {
		return fmt.Errorf("%w: subnet %d is not owned by %s", domerr.ErrNotAuthorized, id, caller)
	}
	if record.Status == domain.SubnetRetired {
		return fmt.Errorf("%w: subnet %d", domerr.ErrAlreadyRetired, id)
	}

	updated, err := delta.Apply(record, r.limits)
	if err != nil {
		return err
	}

	minerStake, err := kpgledger.AsNumeric(updated.MinStakeMiner)
	if err != nil {
		return err
	}
	validatorStake, err := kpgledger.AsNumeric(updated.MinStakeValidator)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "subnet" set
			"input_schema" = $2, "output_schema" = $3, "evaluation_spec_uri" = $4,
			"emission_weight" = $5, "min_stake_miner" = $6, "min_stake_validator" = $7
		where "id" = $1
		`,
		int64(id),
		updated.InputSchema, updated.OutputSchema, updated.EvaluationSpecURI,
		int16(updated.EmissionWeight), minerStake, validatorStake,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *registryPG) Retire(ctx context.Context, caller domain.AccountID, id uint32) error {
	tx, err := r.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	record, err := getForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if record.Owner != caller {
		return fmt.Errorf("%w: subnet %d is not owned by %s", domerr.ErrNotAuthorized, id, caller)
	}
	if record.Status == domain.SubnetRetired {
		return fmt.Errorf("%w: subnet %d", domerr.ErrAlreadyRetired, id)
	}

	if _, err := tx.Exec(
		ctx,
		`update "subnet" set "status" = $2 where "id" = $1`,
		int64(id), string(domain.SubnetRetired),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const recordColumns = `
	"id", "task_type", "task_custom",
	"input_schema", "output_schema", "evaluation_spec_uri",
	"emission_weight", "min_stake_miner", "min_stake_validator",
	"owner", "status"
`

func scanRecord(row pgx.Row) (domain.SubnetRecord, error) {
	var (
		id                         int64
		taskType, taskCustom       string
		emissionWeight             int16
		minerStake, validatorStake pgtype.Numeric
		owner, status              string
	)
	record := domain.SubnetRecord{}

	if err := row.Scan(
		&id, &taskType, &taskCustom,
		&record.InputSchema, &record.OutputSchema, &record.EvaluationSpecURI,
		&emissionWeight, &minerStake, &validatorStake,
		&owner, &status,
	); err != nil {
		return domain.SubnetRecord{}, err
	}

	record.ID = uint32(id)
	record.TaskType = domain.TaskType{Name: domain.TaskName(taskType), Custom: taskCustom}
	record.EmissionWeight = domain.Percent(emissionWeight)
	if err := minerStake.AssignTo(&record.MinStakeMiner); err != nil {
		return domain.SubnetRecord{}, err
	}
	if err := validatorStake.AssignTo(&record.MinStakeValidator); err != nil {
		return domain.SubnetRecord{}, err
	}
	record.Owner = domain.AccountID(owner)

	parsedStatus, err := domain.AsSubnetStatus(status)
	if err != nil {
		return domain.SubnetRecord{}, err
	}
	record.Status = parsedStatus

	return record, nil
}

func getForUpdate(ctx context.Context, tx kpool.Tx, id uint32) (domain.SubnetRecord, error) {
	record, err := scanRecord(tx.QueryRow(
		ctx,
		`select `+recordColumns+` from "subnet" where "id" = $1 for update`,
		int64(id),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SubnetRecord{}, kpgerr.Missing{
			Table: "subnet", Identity: fmt.Sprintf("id %d", id),
		}
	}
	return record, err
}

func (r *registryPG) Get(ctx context.Context, ids []uint32) (map[uint32]domain.SubnetRecord, error) {
	if len(ids) == 0 {
		return map[uint32]domain.SubnetRecord{}, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	keys := make([]int64, len(ids))
	for nth, id := range ids {
		keys[nth] = int64(id)
	}

	rows, err := conn.Query(
		ctx,
		`select `+recordColumns+` from "subnet" where "id" = any($1::bigint[])`,
		keys,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := map[uint32]domain.SubnetRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		found[record.ID] = record
	}
	return found, nil
}

func (r *registryPG) Find(ctx context.Context) ([]uint32, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `select "id" from "subnet" order by "id"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uint32{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

func (r *registryPG) NextID(ctx context.Context) (uint32, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var nextID int64
	if err := conn.QueryRow(
		ctx, `select "next_id" from "subnet_counter"`,
	).Scan(&nextID); err != nil {
		return 0, err
	}
	return uint32(nextID), nil
}

func (r *registryPG) Count(ctx context.Context) (uint32, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var total int64
	if err := conn.QueryRow(
		ctx, `select "total" from "subnet_counter"`,
	).Scan(&total); err != nil {
		return 0, err
	}
	return uint32(total), nil
}

func (r *registryPG) OwnedIDs(ctx context.Context, owner domain.AccountID) ([]uint32, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select "subnet_id" from "subnet_owner" where "owner" = $1 order by "ordinal"`,
		string(owner),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uint32{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

func (r *registryPG) Exists(ctx context.Context, id uint32) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	var found bool
	if err := conn.QueryRow(
		ctx, `select exists (select 1 from "subnet" where "id" = $1)`, int64(id),
	).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (r *registryPG) IsActive(ctx context.Context, id uint32) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	var active bool
	if err := conn.QueryRow(
		ctx,
		`select exists (select 1 from "subnet" where "id" = $1 and "status" = $2)`,
		int64(id), string(domain.SubnetActive),
	).Scan(&active); err != nil {
		return false, err
	}
	return active, nil
}
