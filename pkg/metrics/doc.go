/*
Package metrics provides Prometheus metrics and health endpoints for felt.

All metrics are registered on the default registry at package init and served
by Handler on /metrics. Counters and histograms are updated inline by the
session loop and the transport; gauges describing the registry are refreshed by
a Collector polling a StatsSource.

# Architecture

	┌──────────── session actor ────────────┐
	│  OperationsTotal{intent,result}        │
	│  RejectionsTotal{kind}                 │──┐
	│  OperationDuration{intent}             │  │
	│  LeasesExpired, PanicsRecovered        │  │
	└────────────────────────────────────────┘  │
	┌──────────── transport ────────────────┐   │    ┌──────────────┐
	│  ConnectionsActive, MessagesDropped    │───┼───▶│  /metrics    │
	│  RateLimited                           │   │    └──────────────┘
	└────────────────────────────────────────┘   │
	┌──────────── Collector (15s) ──────────┐   │
	│  registry.Stats() ─▶ SessionsActive    │───┘
	│                     ParticipantsTotal  │
	│                     LeasesActive       │
	└────────────────────────────────────────┘

# Metrics

Registry:
  - felt_sessions_active{visibility}: live sessions, public or private
  - felt_participants_total{status}: roster entries, connected or disconnected
  - felt_sessions_created_total, felt_sessions_retired_total{reason}

Operations:
  - felt_operations_total{intent,result}: result is ok or the error kind
  - felt_rejections_total{kind}
  - felt_operation_duration_seconds{intent}
  - felt_panics_recovered_total

Leases:
  - felt_leases_active{subject}: item or stack
  - felt_leases_expired_total

Transport and background loops:
  - felt_connections_active, felt_messages_dropped_total, felt_rate_limited_total
  - felt_reconciliation_duration_seconds, felt_checkpoints_total{result}

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.OperationDuration, intent)

# Health

RegisterComponent/UpdateComponent record component health. /health fails when
any registered component is unhealthy; /ready fails until every critical
component (registry and api by default, storage when persistence is enabled)
is registered and healthy; /live always succeeds while the process runs.
*/
package metrics
