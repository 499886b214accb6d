// Package core defines the shared language of the leapmigrate engine.
//
// This package contains:
//   - Connection identities (Credential)
//   - Destination schema descriptions (TableSchema, Column, Constraint, Index)
//   - The row union accepted by writers (PositionalRow, NamedRow)
//   - The error taxonomy surfaced at component boundaries
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
