/*
Package main is the process entry point for the telemetry analysis
pipeline.

Subcommands:

  - serve   — starts the ingress HTTP listener, the incident query/stream
    API, and the worker pool that runs every submitted record through
    normalization, classification, anomaly detection, and incident
    synthesis.
  - migrate — applies or inspects the Postgres schema migrations backing
    internal/store.PostgresStore.
  - version — prints build metadata injected via ldflags.
  - health  — pings a running server's /health endpoint.
*/
package main
