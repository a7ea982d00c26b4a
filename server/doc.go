// Package server exposes blueprint runs over HTTP.
//
// Routes:
//
//	GET  /healthz              liveness, never authenticated
//	POST /iba/run              start a run and wait for its result
//	GET  /iba/runs             list recorded runs
//	GET  /iba/runs/:id         one run with its lifecycle events
//	GET  /ws/events            live lifecycle events over a websocket
//
// Requests authenticate with "Authorization: Bearer <jwt>" or an
// "X-API-Key" header. Browsers cannot set headers on websocket upgrades, so
// /ws/events also accepts access_token and api_key query parameters.
//
//	srv := server.New(svc, server.Config{Addr: ":8080", Auth: authn})
//	go srv.ListenAndServe()
//	defer srv.Shutdown(ctx)
package server
