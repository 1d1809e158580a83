// Package logging builds the proxy's structured logger on top of log/slog.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//
//	ctx := logging.WithRequestID(r.Context(), "7f9c...")
//	logger.InfoContext(ctx, "request proxied", "status", 200)
//	// {"level":"INFO","msg":"request proxied","status":200,"request_id":"7f9c..."}
//
// Request IDs and upstream node addresses stored in the context are added to
// every record logged through one of the *Context methods.
package logging
