// Package handlers contains the reusable pieces of the HTTP interface:
// health checks and middleware.
//
// # Health Checks
//
// Backing services are checked in parallel, each under its own timeout. A
// failing critical service (the records store) takes the API down; the
// others only degrade it:
//
//	health := handlers.NewStudioHealth(version, "postgres")
//	health.Watch(handlers.Service{Name: "postgres", Critical: true, Check: conn.Ping})
//	health.Watch(handlers.Service{Name: "redis", Check: cache.Ping})
//
//	status := health.Check(ctx)
//
// # Staff Keys
//
// Write endpoints are protected by staff keys. Only bcrypt hashes of the keys
// are configured; HashStaffKey produces them.
//
//	auth, err := handlers.NewStaffKeyAuth("X-API-Key", cfg.HTTP.StaffKeyHashes)
//	protected := auth.Middleware(next)
package handlers
