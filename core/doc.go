// Package core defines the shared domain model and collaborator contracts of
// crewmesh: agents, crews with versioned membership, tasks and their
// append-only transcripts, telemetry events, the error taxonomy, and the
// narrow interfaces through which the orchestration engine reaches its
// external collaborators (agent transport, planning oracle, persistence).
//
// The package is intentionally dependency-free within the module so every
// other package can import it without cycles.
package core
