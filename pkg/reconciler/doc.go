/*
Package reconciler runs the server's periodic housekeeping.

Two tickers share one goroutine:

  - every Interval, sessions nobody has been connected to for longer than
    the idle retention are retired (Registry.SweepIdle)
  - every CheckpointInterval, sessions changed since their last checkpoint
    are written to the store (Registry.Checkpoint)

Stop ends the loop and writes one last checkpoint so a graceful shutdown
loses nothing. Lease expiry is not handled here; each session sweeps its own
leases inside its actor loop.
*/
package reconciler
