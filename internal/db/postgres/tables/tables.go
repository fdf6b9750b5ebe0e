package tables

import (
	"context"

	kpool "github.com/0xDevNinja/neuro-mesh/pkg/conn/db/postgres/pool"
)

// Schema is the DDL of the registry.
//
// The subnet counter is a singleton row; state-changing operations lock it
// FOR UPDATE, which keeps registry transitions strictly sequential.
const Schema = `
create table if not exists "subnet_counter" (
	"singleton" bool primary key default true check ("singleton"),
	"next_id" bigint not null default 0,
	"total" bigint not null default 0
);
insert into "subnet_counter" default values on conflict do nothing;

create table if not exists "subnet" (
	"id" bigint primary key,
	"task_type" varchar not null,
	"task_custom" varchar(64) not null default '',
	"input_schema" bytea not null,
	"output_schema" bytea not null,
	"evaluation_spec_uri" bytea not null,
	"emission_weight" smallint not null check ("emission_weight" between 0 and 100),
	"min_stake_miner" numeric(20, 0) not null,
	"min_stake_validator" numeric(20, 0) not null,
	"owner" varchar not null,
	"status" varchar not null check ("status" in ('active', 'retired'))
);
create index if not exists "subnet_owner_idx" on "subnet" ("owner");

create table if not exists "subnet_owner" (
	"owner" varchar not null,
	"ordinal" int not null,
	"subnet_id" bigint not null unique references "subnet" ("id"),
	primary key ("owner", "ordinal")
);

create table if not exists "account_balance" (
	"account" varchar primary key,
	"balance" numeric(20, 0) not null default 0,
	"reserved" numeric(20, 0) not null default 0,
	check ("reserved" <= "balance")
);
`

// Apply creates the registry tables if they do not exist yet.
func Apply(ctx context.Context, q kpool.Queryer) error {
	_, err := q.Exec(ctx, Schema)
	return err
}
