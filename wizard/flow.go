package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/theoremus-urban-solutions/cts-departures/config"
	"github.com/theoremus-urban-solutions/cts-departures/cts"
	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
	"github.com/theoremus-urban-solutions/cts-departures/registry"
)

// Directory is the slice of the CTS API the wizard depends on.
type Directory interface {
	DiscoverStopPoints(ctx context.Context) ([]cts.StopPoint, error)
	MonitorStop(ctx context.Context, stopCode, lineRef string) ([]cts.StopVisit, error)
}

// ClientFactory builds an API client for a candidate token. The wizard only
// learns whether a token works by using it.
type ClientFactory func(token string) Directory

// Step identifies the wizard step a Result belongs to.
type Step string

const (
	StepToken       Step = "token"
	StepAction      Step = "action"
	StepAddStop     Step = "add_stop"
	StepDestination Step = "destination"
	StepRemoveStop  Step = "remove_stop"
)

// Kind tells the driver how to render a Result.
type Kind string

const (
	// Form asks for input. Select forms carry Options, free-text forms do not.
	Form Kind = "form"
	// Menu asks the operator to pick the next action.
	Menu Kind = "menu"
	// Done is terminal. The configuration has been persisted.
	Done Kind = "done"
	// Aborted is terminal without persisting anything.
	Aborted Kind = "abort"
)

// Error codes attached to re-rendered forms.
const (
	errCannotConnect = "cannot_connect"
	errInvalidToken  = "invalid_api_token"
	errUnknown       = "unknown"
	errNoDepartures  = "no_departures"
	errRequired      = "required"
	errInvalidOption = "invalid_option"
)

const reasonAlreadyConfigured = "already_configured"

// Menu actions and form field names.
const (
	actionAdd    = "add_stop"
	actionRemove = "remove_stop"
	actionFinish = "finish"

	fieldToken       = "api_token"
	fieldLogicalStop = "logical_stop_code"
	fieldStopCode    = "stop_code"
	fieldRemove      = "entries_to_remove"
	fieldAction      = "action"
	fieldBase        = "base"
)

// Option is one selectable choice of a form or menu.
type Option struct {
	Value string
	Label string
}

// Input carries one submitted form or menu choice. Multi-select fields may
// hold several values.
type Input map[string][]string

// First returns the first value submitted for key, or "".
func (in Input) First(key string) string {
	if values := in[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// Result is what the driver renders after each Start or Submit call.
type Result struct {
	Kind        Kind
	Step        Step
	Options     []Option
	MultiSelect bool
	// Errors maps a field, or "base" for step-wide failures, to an error code.
	Errors map[string]string
	// Values echoes submitted input so a re-rendered form can preserve it.
	Values map[string]string
	// Reason is set on Aborted results.
	Reason string
	// Entry carries the persisted configuration on Done results.
	Entry *config.Entry
}

// Flow is the wizard state machine. A flow serves a single operator session
// and is not safe for concurrent use.
type Flow struct {
	factory ClientFactory
	store   config.Store
	devices registry.Registry
	logger  *slog.Logger

	client Directory
	entry  *config.Entry
	step   Step
	stops  []cts.StopPoint

	pendingLogical string
	pendingName    string

	// options of the most recently rendered select step, used to reject
	// submissions that were never offered
	options []Option
}

// New starts a first-time setup session. The operator is asked for a token
// before anything else.
func New(factory ClientFactory, store config.Store, devices registry.Registry, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		factory: factory,
		store:   store,
		devices: devices,
		logger:  logger,
		step:    StepToken,
	}
}

// NewManage resumes a session over an already persisted entry. The token is
// taken from the entry and the flow starts at the action menu, or directly at
// the stop picker when nothing is monitored yet.
func NewManage(factory ClientFactory, store config.Store, devices registry.Registry, entry *config.Entry, logger *slog.Logger) *Flow {
	f := New(factory, store, devices, logger)
	f.entry = entry.Clone()
	f.client = factory(f.entry.APIToken)
	f.step = StepAction
	return f
}

// Start renders the first step of the session.
func (f *Flow) Start(ctx context.Context) (Result, error) {
	switch f.step {
	case StepToken:
		return f.renderToken(nil, ""), nil
	case StepAction:
		if len(f.entry.MonitoredStops) == 0 {
			return f.renderAddStop(ctx, nil), nil
		}
		return f.renderAction(), nil
	default:
		return Result{}, fmt.Errorf("wizard started in unexpected step %q", f.step)
	}
}

// Submit applies input to the current step and renders the next one. API
// failures come back as error codes on the rendered Result; only failures of
// the store or the device registry are returned as errors.
func (f *Flow) Submit(ctx context.Context, in Input) (Result, error) {
	switch f.step {
	case StepToken:
		return f.submitToken(ctx, in)
	case StepAction:
		return f.submitAction(ctx, in)
	case StepAddStop:
		return f.submitAddStop(ctx, in), nil
	case StepDestination:
		return f.submitDestination(ctx, in), nil
	case StepRemoveStop:
		return f.submitRemove(ctx, in)
	default:
		return Result{}, errors.New("wizard session is finished")
	}
}

func (f *Flow) renderToken(errs map[string]string, token string) Result {
	f.step = StepToken
	res := Result{Kind: Form, Step: StepToken, Errors: errs}
	if token != "" {
		res.Values = map[string]string{fieldToken: token}
	}
	return res
}

func (f *Flow) submitToken(ctx context.Context, in Input) (Result, error) {
	token := in.First(fieldToken)
	if token == "" {
		return f.renderToken(map[string]string{fieldToken: errRequired}, ""), nil
	}

	existing, err := f.store.Load()
	if err != nil {
		return Result{}, fmt.Errorf("check existing configuration: %w", err)
	}
	if existing != nil && existing.APIToken == token {
		f.step = ""
		return Result{Kind: Aborted, Reason: reasonAlreadyConfigured}, nil
	}

	client := f.factory(token)
	stops, err := client.DiscoverStopPoints(ctx)
	if err != nil {
		code := f.errorCode(err, "token validation failed")
		return f.renderToken(map[string]string{fieldBase: code}, token), nil
	}

	f.client = client
	f.stops = stops
	f.entry = &config.Entry{APIToken: token}
	return f.renderAction(), nil
}

func (f *Flow) renderAction() Result {
	f.step = StepAction
	options := []Option{{Value: actionAdd, Label: "Add a stop"}}
	if len(f.entry.MonitoredStops) > 0 {
		options = append(options, Option{Value: actionRemove, Label: "Remove stops"})
	}
	options = append(options, Option{Value: actionFinish, Label: "Save and finish"})
	f.options = options
	return Result{Kind: Menu, Step: StepAction, Options: options}
}

func (f *Flow) submitAction(ctx context.Context, in Input) (Result, error) {
	switch in.First(fieldAction) {
	case actionAdd:
		return f.renderAddStop(ctx, nil), nil
	case actionRemove:
		if len(f.entry.MonitoredStops) == 0 {
			return f.renderAction(), nil
		}
		return f.renderRemove(ctx)
	case actionFinish:
		return f.finish()
	default:
		// menus re-render silently on unknown input
		return f.renderAction(), nil
	}
}

func (f *Flow) renderAddStop(ctx context.Context, errs map[string]string) Result {
	f.step = StepAddStop
	if f.stops == nil {
		stops, err := f.client.DiscoverStopPoints(ctx)
		if err != nil {
			if errs == nil {
				errs = make(map[string]string)
			}
			errs[fieldBase] = f.errorCode(err, "stop point discovery failed")
			f.options = nil
			return Result{Kind: Form, Step: StepAddStop, Errors: errs}
		}
		f.stops = stops
	}

	var options []Option
	index := make(map[string]int)
	for _, stop := range f.stops {
		options = upsertOption(options, index, stop.LogicalCode, stop.Name)
	}
	f.options = options
	return Result{Kind: Form, Step: StepAddStop, Options: options, Errors: errs}
}

func (f *Flow) submitAddStop(ctx context.Context, in Input) Result {
	choice := in.First(fieldLogicalStop)
	if choice == "" {
		// after a failed render there is nothing to require yet, retry instead
		var errs map[string]string
		if len(f.options) > 0 {
			errs = map[string]string{fieldLogicalStop: errRequired}
		}
		return f.renderAddStop(ctx, errs)
	}
	if !f.offered(choice) {
		return f.renderAddStop(ctx, map[string]string{fieldLogicalStop: errInvalidOption})
	}

	f.pendingLogical = choice
	return f.renderDestination(ctx, nil)
}

func (f *Flow) renderDestination(ctx context.Context, errs map[string]string) Result {
	visits, err := f.client.MonitorStop(ctx, f.pendingLogical, "")
	if err != nil {
		code := f.errorCode(err, "destination discovery failed")
		return f.renderAddStop(ctx, map[string]string{fieldBase: code})
	}
	if len(visits) == 0 {
		// a stop without departures has nothing to offer, send the operator
		// back to pick another stop
		return f.renderAddStop(ctx, map[string]string{fieldBase: errNoDepartures})
	}

	f.step = StepDestination
	f.pendingName = visits[0].StopPointName

	ordered := make([]cts.StopVisit, len(visits))
	copy(ordered, visits)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].LineName < ordered[j].LineName })

	var options []Option
	index := make(map[string]int)
	for _, visit := range ordered {
		key := visit.LineRef + "_" + visit.StopCode
		label := fmt.Sprintf("(%s) %s", visit.LineRef, visit.DestinationName)
		options = upsertOption(options, index, key, label)
	}
	f.options = options
	return Result{Kind: Form, Step: StepDestination, Options: options, Errors: errs}
}

func (f *Flow) submitDestination(ctx context.Context, in Input) Result {
	choice := in.First(fieldStopCode)
	if choice == "" {
		return f.renderDestination(ctx, map[string]string{fieldStopCode: errRequired})
	}
	if !f.offered(choice) {
		return f.renderDestination(ctx, map[string]string{fieldStopCode: errInvalidOption})
	}

	lineRef, stopCode, ok := config.SplitUniqueID(choice)
	if !ok {
		return f.renderDestination(ctx, map[string]string{fieldStopCode: errInvalidOption})
	}

	stop := config.MonitoredStop{LineRef: lineRef, StopCode: stopCode, StopName: f.pendingName}
	if !f.entry.AddStop(stop) {
		f.logger.Info("stop is already configured", "unique_id", choice)
	}
	f.pendingLogical = ""
	f.pendingName = ""
	return f.renderAction()
}

func (f *Flow) renderRemove(ctx context.Context) (Result, error) {
	devices, err := f.devices.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list devices: %w", err)
	}
	byUnique := make(map[string]registry.Device, len(devices))
	for _, device := range devices {
		byUnique[device.UniqueID] = device
	}

	// stops configured before the daemon ever ran have no device record yet
	var options []Option
	for _, stop := range f.entry.MonitoredStops {
		device, ok := byUnique[stop.UniqueID()]
		if !ok {
			device, err = f.devices.Ensure(ctx, stop.UniqueID(),
				fmt.Sprintf("(%s) %s", stop.LineRef, stop.StopName))
			if err != nil {
				return Result{}, fmt.Errorf("register device for %s: %w", stop.UniqueID(), err)
			}
		}
		options = append(options, Option{Value: device.ID, Label: device.Name})
	}

	f.step = StepRemoveStop
	f.options = options
	return Result{Kind: Form, Step: StepRemoveStop, Options: options, MultiSelect: true}, nil
}

func (f *Flow) submitRemove(ctx context.Context, in Input) (Result, error) {
	devices, err := f.devices.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list devices: %w", err)
	}
	byID := make(map[string]registry.Device, len(devices))
	for _, device := range devices {
		byID[device.ID] = device
	}

	for _, id := range in[fieldRemove] {
		device, ok := byID[id]
		if !ok {
			f.logger.Warn("selected device no longer exists", "device_id", id)
			continue
		}
		lineRef, stopCode, ok := config.SplitUniqueID(device.UniqueID)
		if !ok {
			f.logger.Warn("device has a malformed unique id",
				"device_id", id, "unique_id", device.UniqueID)
			continue
		}
		if !f.entry.RemoveStop(lineRef, stopCode) {
			f.logger.Warn("device does not match a configured stop", "unique_id", device.UniqueID)
		}
		if err := f.devices.Remove(ctx, id); err != nil && !errors.Is(err, registry.ErrUnknownDevice) {
			return Result{}, fmt.Errorf("remove device %q: %w", id, err)
		}
	}
	return f.finish()
}

func (f *Flow) finish() (Result, error) {
	if err := f.store.Save(f.entry); err != nil {
		return Result{}, fmt.Errorf("persist configuration: %w", err)
	}
	f.step = ""
	return Result{Kind: Done, Entry: f.entry.Clone()}, nil
}

// errorCode maps an API failure to the code shown on the form. Unexpected
// errors are logged in full; the operator only sees "unknown".
func (f *Flow) errorCode(err error, msg string) string {
	switch {
	case errors.Is(err, cts.ErrInvalidToken):
		return errInvalidToken
	case errors.Is(err, cts.ErrCannotConnect):
		return errCannotConnect
	default:
		logging.LogError(f.logger, msg, err)
		return errUnknown
	}
}

func (f *Flow) offered(value string) bool {
	for _, option := range f.options {
		if option.Value == value {
			return true
		}
	}
	return false
}

// upsertOption keeps dictionary semantics for select options: a repeated
// value keeps its position but takes the newest label.
func upsertOption(options []Option, index map[string]int, value, label string) []Option {
	if i, ok := index[value]; ok {
		options[i].Label = label
		return options
	}
	index[value] = len(options)
	return append(options, Option{Value: value, Label: label})
}
