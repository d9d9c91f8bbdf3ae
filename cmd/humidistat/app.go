package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/itohio/humidistat/pkg/command"
	"github.com/itohio/humidistat/pkg/config"
	"github.com/itohio/humidistat/pkg/device"
	"github.com/itohio/humidistat/pkg/logger"
	"github.com/itohio/humidistat/pkg/metrics"
	"github.com/itohio/humidistat/pkg/sample"
	"github.com/itohio/humidistat/pkg/store"
)

const identifyTimeout = 5 * time.Second

// app wires a device to the sample pipeline, metrics and stores.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	dev     device.Device
	metrics *metrics.Metrics
	sink    store.Sink // optional
}

// run connects the device, forwards operator commands read from in and
// processes device output until ctx is canceled. The device is closed and
// the pipeline drained before run returns.
func (a *app) run(ctx context.Context, in io.Reader) error {
	if err := a.dev.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	idCtx, cancel := context.WithTimeout(ctx, identifyTimeout)
	id, err := device.Identify(idCtx, a.dev)
	cancel()
	if err != nil {
		a.log.Warnw("device did not identify", "error", err)
	} else {
		a.log.Infow("connected", "id", id)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.messages()
	}()
	go func() {
		defer wg.Done()
		a.samples(ctx)
	}()

	// Not waited for: reading the operator input may block forever.
	go a.commands(ctx, in)

	<-ctx.Done()

	if err := a.dev.Close(); err != nil {
		a.log.Warnw("closing device", "error", err)
	}
	wg.Wait()
	return nil
}

func (a *app) messages() {
	for msg := range a.dev.Messages() {
		a.metrics.Message()
		a.log.Infow("device", "message", msg)
	}
}

func (a *app) samples(ctx context.Context) {
	stream := sample.NewConverter(a.log, 500, nil)(a.dev.Reports())
	if n := a.cfg.Store.AverageSamples; n > 0 {
		stream = sample.NewAveragingConverter(n, 500)(stream)
	}

	for s := range stream {
		a.metrics.Observe(s)
		a.log.Debugw("sample",
			"elapsed", s.Elapsed,
			"valve_1", s.Valve1, "valve_2", s.Valve2, "pump", s.Pump,
			"humidity", s.Humidity, "temperature", s.Temperature, "pressure", s.Pressure,
		)
		if a.sink == nil {
			continue
		}
		// Stores outlive ctx so the pipeline drains completely.
		if err := a.sink.Append(context.WithoutCancel(ctx), s); err != nil {
			a.log.Warnw("storing sample", "error", err)
		}
	}
}

// commands forwards parsed operator lines to the device.
func (a *app) commands(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, ok := command.Parse(line)
		a.metrics.Command(ok)
		if !ok {
			a.log.Warnw("unknown command", "line", line)
			continue
		}
		if err := a.dev.Send(cmd); err != nil {
			a.log.Warnw("sending command", "command", cmd.String(), "error", err)
			continue
		}
		a.log.Infow("sent", "command", cmd.String())
	}
	if err := scanner.Err(); err != nil {
		a.log.Warnw("reading commands", "error", err)
	}
}

func startMetricsServer(addr string, m *metrics.Metrics, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()
	return srv
}
