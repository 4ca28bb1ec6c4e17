// Package cts is a client for the CTS Strasbourg SIRI-lite JSON API.
//
// The API exposes real-time public transport data for the Strasbourg network
// over four GET endpoints, all authenticated with an API token sent as the
// basic-auth username (empty password):
//
//   - /stoppoints-discovery: every stop point of the network
//   - /stop-monitoring: upcoming departures for one stop
//   - /general-message: service-status messages
//   - /lines-discovery: every line of the network
//
// The main type is Client. Failures are classified into ErrInvalidToken
// (HTTP 401) and ErrCannotConnect (HTTP 500, network errors, timeouts);
// anything else surfaces as a plain wrapped error.
package cts
