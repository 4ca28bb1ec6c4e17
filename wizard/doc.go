// Package wizard implements the interactive stop-selection flow.
//
// A Flow walks the operator through:
//
//   - token: enter and validate a CTS API token
//   - action: choose between adding a stop, removing stops, or finishing
//   - add_stop: pick a stop point from the discovered list
//   - destination: pick one line/destination pair serving that stop
//   - remove_stop: multi-select configured stops to drop
//
// Each call to Start or Submit returns a Result describing what the driver
// should render next: a form, a menu, a terminal Done carrying the persisted
// configuration, or an Abort. The flow itself never reads input and never
// prints; drivers (such as the terminal driver in cmd/cts-departures) own all
// I/O, which keeps the state machine testable.
//
// API failures surface as error codes on the re-rendered form so the operator
// can correct and retry; failures of the local store or device registry are
// returned as errors.
package wizard
