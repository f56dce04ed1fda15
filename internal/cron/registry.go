package cron

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Job is one unit of scheduled settlement maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order. Names are unique.
type Registry struct {
	jobs []Job
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds jobs in order, skipping nils. Nothing is added if any job
// is unnamed or collides with another name.
func (r *Registry) Register(jobs ...Job) error {
	names := r.Names()
	var pending []Job
	for _, job := range jobs {
		if job == nil {
			continue
		}
		name := strings.TrimSpace(job.Name())
		if name == "" {
			return fmt.Errorf("cron job name required")
		}
		if slices.Contains(names, name) {
			return fmt.Errorf("cron job %q already registered", name)
		}
		names = append(names, name)
		pending = append(pending, job)
	}
	r.jobs = append(r.jobs, pending...)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, strings.TrimSpace(job.Name()))
	}
	return names
}
