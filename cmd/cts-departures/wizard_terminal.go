package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	lib "github.com/theoremus-urban-solutions/cts-departures"
	"github.com/theoremus-urban-solutions/cts-departures/config"
	"github.com/theoremus-urban-solutions/cts-departures/cts"
	"github.com/theoremus-urban-solutions/cts-departures/wizard"
)

var errorMessages = map[string]string{
	"cannot_connect":    "Could not reach the CTS API.",
	"invalid_api_token": "The API token was rejected.",
	"unknown":           "Unexpected error, see the logs.",
	"no_departures":     "No departures found for this stop, pick another one.",
	"required":          "A value is required.",
	"invalid_option":    "Pick one of the listed options.",
}

// runWizardSession drives the stop-selection flow over stdin/stdout.
func runWizardSession(cfg config.AppConfig, store config.Store, logger *slog.Logger) error {
	devices, err := lib.OpenRegistry(cfg)
	if err != nil {
		return err
	}
	if closer, ok := devices.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	factory := func(token string) wizard.Directory {
		opts := []cts.Option{
			cts.WithTimeout(cfg.API.Timeout()),
			cts.WithLogger(logger),
		}
		if cfg.API.BaseURL != "" {
			opts = append(opts, cts.WithBaseURL(cfg.API.BaseURL))
		}
		return cts.New(token, opts...)
	}

	entry, err := store.Load()
	if err != nil {
		return err
	}
	var flow *wizard.Flow
	if entry != nil {
		flow = wizard.NewManage(factory, store, devices, entry, logger)
	} else {
		flow = wizard.New(factory, store, devices, logger)
	}

	ctx := context.Background()
	reader := bufio.NewScanner(os.Stdin)

	res, err := flow.Start(ctx)
	for {
		if err != nil {
			return err
		}
		switch res.Kind {
		case wizard.Done:
			fmt.Printf("Saved %d monitored stop(s).\n", len(res.Entry.MonitoredStops))
			return nil
		case wizard.Aborted:
			fmt.Printf("Setup aborted: %s\n", res.Reason)
			return nil
		}

		in, perr := prompt(reader, res)
		if perr != nil {
			return perr
		}
		res, err = flow.Submit(ctx, in)
	}
}

// prompt renders one Result and collects the matching Input.
func prompt(reader *bufio.Scanner, res wizard.Result) (wizard.Input, error) {
	for _, code := range res.Errors {
		if msg, ok := errorMessages[code]; ok {
			fmt.Println("! " + msg)
		} else {
			fmt.Println("! " + code)
		}
	}

	switch {
	case res.Kind == wizard.Menu:
		fmt.Println("\nWhat next?")
		printOptions(res.Options)
		line, err := readLine(reader, "> ")
		if err != nil {
			return nil, err
		}
		return wizard.Input{"action": {pickOption(res.Options, line)}}, nil

	case res.Step == wizard.StepToken:
		line, err := readLine(reader, "\nCTS API token: ")
		if err != nil {
			return nil, err
		}
		return wizard.Input{"api_token": {line}}, nil

	case res.MultiSelect:
		fmt.Println("\nSelect stops to remove (comma-separated numbers, empty to keep all):")
		printOptions(res.Options)
		line, err := readLine(reader, "> ")
		if err != nil {
			return nil, err
		}
		var picked []string
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			picked = append(picked, pickOption(res.Options, part))
		}
		return wizard.Input{"entries_to_remove": picked}, nil

	default:
		field := "logical_stop_code"
		title := "Choose a stop:"
		if res.Step == wizard.StepDestination {
			field = "stop_code"
			title = "Choose a line and destination:"
		}
		fmt.Println("\n" + title)
		printOptions(res.Options)
		line, err := readLine(reader, "> ")
		if err != nil {
			return nil, err
		}
		return wizard.Input{field: {pickOption(res.Options, line)}}, nil
	}
}

func printOptions(options []wizard.Option) {
	for i, option := range options {
		fmt.Printf("  %d) %s\n", i+1, option.Label)
	}
}

// pickOption resolves a 1-based index to the option value. Anything else is
// passed through for the flow to reject.
func pickOption(options []wizard.Option, line string) string {
	line = strings.TrimSpace(line)
	if i, err := strconv.Atoi(line); err == nil && i >= 1 && i <= len(options) {
		return options[i-1].Value
	}
	return line
}

func readLine(reader *bufio.Scanner, promptText string) (string, error) {
	fmt.Print(promptText)
	if !reader.Scan() {
		if err := reader.Err(); err != nil {
			return "", err
		}
		return "", errors.New("input closed")
	}
	return strings.TrimSpace(reader.Text()), nil
}
