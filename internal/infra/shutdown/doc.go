// Package shutdown coordinates graceful process termination.
//
// Components register named hooks while the process starts. Wait blocks
// for SIGINT, SIGTERM or an explicit Trigger, then runs the hooks in
// reverse registration order under one timeout:
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("pool", pool.Shutdown)
//	err := h.Wait()
package shutdown
