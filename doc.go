// Package blueprint generates implementation blueprints for projects whose
// artifacts live in an external store.
//
// A Service owns one workflow engine and everything around a run: the
// artifact store, the text generation provider, diagram rendering, document
// export, lifecycle event delivery, run history, snapshots and optional
// publication of the finished document as an issue.
//
// The package is organized into subpackages by domain:
//
//   - workflow: the fixed eight-stage pipeline and its shared state
//   - chunk: artifact grouping and bounded fan-out
//   - artifact, store: artifact records and their MongoDB/fixture stores
//   - oracle, task: text generation clients and per-task model selection
//   - diagram: PlantUML encoding, extraction and rendering
//   - export: markdown/PDF export, run snapshots and retention
//   - notify: lifecycle events (AMQP, webhook, Slack, websocket fan-out)
//   - runstore: SQLite run history and event log
//   - publish: GitHub/GitLab issue publication
//   - server: HTTP surface; cmd/blueprint: CLI
//   - config, errors, auth, http, prompt, runner, testutil: supporting code
//
// # Quick Start
//
//	settings, _ := config.Load(config.NewStandardResolver().Resolve())
//	svc, err := blueprint.NewService(ctx, settings)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close(ctx)
//
//	res, err := svc.Run(ctx, "proj-123", blueprint.RunOptions{})
//	fmt.Println(res.FileInfo["markdown"])
package blueprint
