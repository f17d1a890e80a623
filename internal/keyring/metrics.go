// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package keyring

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus collectors for a Repository. A nil *metrics
// is valid and records nothing.
type metrics struct {
	appends   *prometheus.CounterVec // by outcome
	attempts  prometheus.Counter
	conflicts prometheus.Counter
	refreshes *prometheus.CounterVec // by result
}

const (
	outcomeSuccess   = "success"
	outcomeExhausted = "exhausted"
	outcomeRejected  = "rejected"
	outcomeCancelled = "cancelled"

	refreshFound  = "found"
	refreshAbsent = "absent"
	refreshError  = "error"
)

// newMetrics creates and registers the collectors with reg. It returns nil
// if reg is nil. Collectors already registered by another Repository in the
// same process are shared.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &metrics{
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyring",
			Name:      "appends_total",
			Help:      "Total number of append operations, by outcome",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keyring",
			Name:      "append_attempts_total",
			Help:      "Total number of upload attempts made by append operations",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keyring",
			Name:      "append_conflicts_total",
			Help:      "Total number of uploads rejected because another writer got there first",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyring",
			Name:      "refreshes_total",
			Help:      "Total number of fetches of the remote object, by result",
		}, []string{"result"}),
	}

	var err error
	if m.appends, err = register(reg, m.appends); err != nil {
		return nil, err
	}
	if m.attempts, err = register(reg, m.attempts); err != nil {
		return nil, err
	}
	if m.conflicts, err = register(reg, m.conflicts); err != nil {
		return nil, err
	}
	if m.refreshes, err = register(reg, m.refreshes); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *metrics) append(outcome string) {
	if m == nil {
		return
	}
	m.appends.WithLabelValues(outcome).Inc()
}

func (m *metrics) attempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}
