// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// cronParser accepts the standard five-field spec, evaluated in UTC.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Deployment binds a flow to a schedule, a work pool, and default parameters.
type Deployment struct {
	Name     string
	FlowName string
	// Schedule is a five-field cron expression in UTC; empty means ad-hoc
	// only.
	Schedule      string
	PoolTag       string
	DefaultParams map[string]any
	// Exclusive serializes runs: a due tick is skipped while a prior run of
	// this deployment is still in flight.
	Exclusive bool

	schedule cron.Schedule
}

// NextRun returns the next fire time strictly after the given instant.
func (d *Deployment) NextRun(after time.Time) (time.Time, bool) {
	if d.schedule == nil {
		return time.Time{}, false
	}
	return d.schedule.Next(after.UTC()), true
}

// Registry holds the flows and deployments a process knows about. It is
// assembled once at startup and handed to workers and the enqueuer; there is
// no global registration.
type Registry struct {
	mu          sync.RWMutex
	flows       map[string]Flow
	deployments map[string]*Deployment
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		flows:       make(map[string]Flow),
		deployments: make(map[string]*Deployment),
	}
}

// RegisterFlow validates and stores a flow definition.
func (r *Registry) RegisterFlow(flow Flow) error {
	if err := flow.validate(); err != nil {
		return errs.NewValidation("invalid flow", err)
	}
	if flow.Version <= 0 {
		flow.Version = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.flows[flow.Name]; exists {
		return errs.NewConflict("flow already registered: " + flow.Name)
	}
	r.flows[flow.Name] = flow
	return nil
}

// RegisterDeployment parses the schedule and stores the deployment.
func (r *Registry) RegisterDeployment(deployment Deployment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[deployment.FlowName]; !exists {
		return errs.NewValidation("deployment references unknown flow: " + deployment.FlowName)
	}
	if deployment.Name == "" {
		deployment.Name = fmt.Sprintf("%s/%s", deployment.FlowName, deployment.PoolTag)
	}
	if _, exists := r.deployments[deployment.Name]; exists {
		return errs.NewConflict("deployment already registered: " + deployment.Name)
	}

	if deployment.Schedule != "" {
		schedule, err := cronParser.Parse(deployment.Schedule)
		if err != nil {
			return errs.NewValidation("invalid cron schedule for "+deployment.Name, err)
		}
		deployment.schedule = schedule
	}

	r.deployments[deployment.Name] = &deployment
	return nil
}

// Flow returns a registered flow.
func (r *Registry) Flow(name string) (Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flow, ok := r.flows[name]
	return flow, ok
}

// Deployments snapshots the registered deployments.
func (r *Registry) Deployments() []*Deployment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Deployment, 0, len(r.deployments))
	for _, d := range r.deployments {
		out = append(out, d)
	}
	return out
}
