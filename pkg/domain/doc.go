package domain

// domain package contains the Domain Models and Interfaces for the neuro-mesh registry.
//
// `domain/SUBJECT.go` has high-level entities (Domain Model types) and functions.
// For example, `domain/subnet.go` contains the `SubnetRecord` entity.
//
// `domain/SUBJECT` directory contains the "physical" representation of the domain entities.
// For example, `domain/subnet/db` declares the database contract of the subnet registry,
// `domain/subnet/db/postgres` implements it on PostgreSQL,
// and `domain/subnet/memory` implements it on an in-process state struct.
//
// # Entities
//
// Core entities in the domain are:
//
// - `subnet`: A named resource domain serving one category of computational work.
// Each subnet is owned by a single account, carries input/output schemas and an
// evaluation spec URI (all size-bounded), staking thresholds, and an emission
// weight. Subnets are created Active, can be updated by their owner, and can be
// retired exactly once. Retired subnets stay in the registry forever.
//
// - `ledger`: Account balances consulted by the registry. Creating a subnet
// reserves a fixed deposit from the owner's spendable balance. There is no
// release path: the deposit stays reserved for the lifetime of the record.
//
// Every registry operation is an atomic transition: it validates, then either
// commits all of its writes (primary record, owner index, counters, escrow) or
// none of them.
