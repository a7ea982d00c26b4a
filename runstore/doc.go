// Package runstore keeps a history of blueprint runs and their lifecycle
// events in SQLite.
//
// The service records a run when it starts, appends every lifecycle event
// through Notifier, and records the outcome when the run finishes:
//
//	db, err := runstore.Open(".blueprint/runs.db")
//	defer db.Close()
//
//	_ = db.StartRun(ctx, runstore.Run{ID: runID, ProjectID: id, StartedAt: time.Now()})
//	notifier := notify.NewMultiNotifier(bus, db.Notifier())
//	...
//	_ = db.FinishRun(ctx, run)
package runstore
