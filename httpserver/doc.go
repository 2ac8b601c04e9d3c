// Package httpserver adapts net/http to the shutdown.Listener capability.
//
// # Overview
//
// Server owns its net.Listener so that Pause can close it directly: after
// Pause returns, no new connection is accepted, while requests already in
// flight on established connections keep being served. That matches the
// orchestrator-termination sequence the shutdown package drives — the
// platform may route traffic at a terminating pod for a short window, and
// those connections must be refused at the network layer, not served by a
// draining pool.
//
// The server also exposes probe endpoints: /healthz always answers 200,
// /readyz flips to 503 the moment Pause is called so probes over still-open
// connections take the pod out of rotation.
//
// Request intake is throttled with a token bucket (golang.org/x/time/rate)
// and every request is counted in an in-flight gauge.
//
// # Usage
//
//	srv := httpserver.New(httpserver.Config{Addr: ":8080", Logger: logger}, pool)
//	if err := srv.Listen(); err != nil {
//	    return err
//	}
//	go srv.Serve()
//
//	coord.Bind(srv, pool) // Pause is driven by the coordinator
package httpserver
