// Package api provides the HTTP client for the remote image server.
//
// Every transport or status failure is returned as *errors.Error carrying an
// ErrorType derived from the status code (network, not_found, client,
// server_error, parsing). Callers classify those further into startup or
// per-item failures.
//
// Example usage:
//
//	client := api.NewClient("http://localhost:5000", 30*time.Second, log)
//
//	if err := client.StartDownload(ctx, "cats", 3); err != nil {
//	    return err
//	}
//	data, err := client.FetchImage(ctx, "cats")
package api
