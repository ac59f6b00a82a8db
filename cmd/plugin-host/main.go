// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The Falco Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


// plugin-host loads Falco plugins, and either lists them or streams the
// events of their sources together with the values of the requested
// fields.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/falcosecurity/plugin-host-go/pkg/capture"
	"github.com/falcosecurity/plugin-host-go/pkg/config"
	"github.com/falcosecurity/plugin-host-go/pkg/filtercheck"
	"github.com/falcosecurity/plugin-host-go/pkg/inspector"
	"github.com/falcosecurity/plugin-host-go/pkg/loader"
	"github.com/falcosecurity/plugin-host-go/pkg/sdk"
)

type options struct {
	configFile  string
	list        bool
	source      string
	openParams  string
	fields      string
	maxEvents   uint64
	metricsAddr string
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.configFile, "config", "", "Path of the YAML configuration file")
	flag.BoolVar(&o.list, "list", false, "Print the loaded plugins and exit")
	flag.StringVar(&o.source, "source", "", "Source plugin to read events from (default: all the source plugins)")
	flag.StringVar(&o.openParams, "open-params", "", "Open parameters of the source, overriding the configuration")
	flag.StringVar(&o.fields, "fields", "", "Comma-separated list of fields to extract from each event")
	flag.Uint64Var(&o.maxEvents, "max-events", 0, "Stop after reading this many events (0 means no limit)")
	flag.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, overriding the configuration")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(o, logger); err != nil {
		logger.WithError(err).Error("plugin host failed")
		os.Exit(1)
	}
}

func run(o *options, logger *logrus.Logger) error {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return err
		}
	}
	logger.SetLevel(cfg.Level())

	registry := prometheus.NewRegistry()
	metrics := capture.NewMetrics(registry)
	addr := o.metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.ListenAddress
	}
	if addr != "" {
		srv := serveMetrics(addr, registry, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	insp := inspector.New(inspector.WithLogger(logger), inspector.WithMetrics(metrics))
	defer func() {
		if err := insp.Close(); err != nil {
			logger.WithError(err).Warn("could not unload all plugins")
		}
	}()
	if err := insp.LoadConfig(cfg); err != nil {
		return err
	}

	if o.list {
		fmt.Print(insp.PluginInfos())
		return nil
	}

	fields, err := resolveFields(insp.Registry(), o.fields)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return stream(ctx, insp, o, fields, logger)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.WithField("address", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	return srv
}

type field struct {
	name  string
	check *filtercheck.PluginCheck
	ref   filtercheck.Ref
}

func resolveFields(registry *filtercheck.Registry, list string) ([]field, error) {
	var res []field
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		check, ref, err := registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		res = append(res, field{name: name, check: check, ref: ref})
	}
	return res, nil
}

func stream(ctx context.Context, insp *inspector.Inspector, o *options, fields []field, logger logrus.FieldLogger) error {
	var names []string
	if o.source != "" {
		names = append(names, o.source)
	} else {
		for _, p := range insp.Plugins() {
			if _, ok := p.Source(); ok {
				names = append(names, p.Name())
			}
		}
	}
	if len(names) == 0 {
		return errors.New("no source plugin loaded")
	}

	sources := make(map[uint32]*loader.Source, len(names))
	producers := make([]capture.Producer, 0, len(names))
	defer func() {
		for _, p := range producers {
			if err := p.Close(); err != nil {
				logger.WithError(err).Warn("could not close event source")
			}
		}
	}()
	for _, name := range names {
		prod, err := insp.OpenSource(name, o.openParams)
		if err != nil {
			return err
		}
		producers = append(producers, prod)
		sources[prod.Source().ID()] = prod.Source()
	}

	var count uint64
	err := capture.Loop(ctx, producers, func(evt *sdk.Envelope) error {
		line, err := format(evt, sources[evt.SourceID], fields, logger)
		if err != nil {
			return err
		}
		fmt.Println(line)
		count++
		if o.maxEvents > 0 && count >= o.maxEvents {
			return capture.ErrStop
		}
		return nil
	})
	logger.WithField("events", count).Info("capture terminated")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// format renders an event and its field values. A failed extraction is
// reported as a missing value.
func format(evt *sdk.Envelope, src *loader.Source, fields []field, logger logrus.FieldLogger) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s %s", evt.Num, time.Unix(0, int64(evt.Timestamp)).UTC().Format(time.RFC3339Nano), src.EventSource())
	str, err := src.EventToString(evt.Data)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, " %s", str)
	for _, f := range fields {
		v, ok, err := f.check.ExtractRef(evt, f.ref)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field": f.name,
				"event": evt.Num,
			}).WithError(err).Warn("field extraction failed")
		}
		if err != nil || !ok {
			fmt.Fprintf(&b, " %s=<NA>", f.name)
			continue
		}
		fmt.Fprintf(&b, " %s=%s", f.name, v.String())
	}
	return b.String(), nil
}
