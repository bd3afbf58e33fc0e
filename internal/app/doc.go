// Package app composes the escrow protocol services into a running
// application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, service wiring, lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── mission/        # Mission record and lifecycle states
//	│   ├── dispute/        # Dispute record, outcomes, deposits
//	│   ├── fees/           # Fee-split arithmetic
//	│   ├── guild/          # Curating guild registry record
//	│   ├── identity/       # Fixed-width protocol addresses
//	│   ├── reputation/     # Per-address outcome counters
//	│   └── achievement/    # Badges and awards
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # MissionStore, DisputeStore, GuildStore, ...
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Protocol business logic
//	│   ├── token/          # Balance and allowance ledger
//	│   ├── factory/        # Mission creation and escrow registration
//	│   ├── escrow/         # Per-mission state machine and settlement
//	│   ├── feerouter/      # Fee-split payout with escrow authentication
//	│   ├── resolver/       # Dispute lifecycle, deposits, appeals
//	│   ├── guilds/         # Guild registry and fee lookup
//	│   ├── reputation/     # Outcome counters
//	│   └── achievements/   # Badge ledger
//	├── events/             # In-process event bus
//	├── httpapi/            # REST handlers and websocket event stream
//	├── system/             # Lifecycle manager for background services
//	└── metrics/            # Prometheus instrumentation
//
// The app package wires services to stores and to each other; business rules
// live in the service packages, and domain packages stay free of persistence
// and transport concerns.
package app
