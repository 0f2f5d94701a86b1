package scheduler

import (
	"github.com/robfig/cron/v3"
)

// RobfigCronEngine is the production CronEngine, backed by robfig/cron/v3.
// It accepts standard 5-field expressions plus descriptors such as
// "@hourly" and "@every 30m".
type RobfigCronEngine struct {
	c *cron.Cron
}

var _ CronEngine = (*RobfigCronEngine)(nil)

// NewRobfigCronEngine returns an engine with an empty schedule. Call Start
// to begin firing entries.
func NewRobfigCronEngine() *RobfigCronEngine {
	return &RobfigCronEngine{c: cron.New()}
}

// AddFunc registers cmd to run on spec's schedule and returns the entry ID.
func (r *RobfigCronEngine) AddFunc(spec string, cmd func()) (int, error) {
	id, err := r.c.AddFunc(spec, cmd)
	return int(id), err
}

// Remove drops the entry with the given ID. Unknown IDs are ignored.
func (r *RobfigCronEngine) Remove(id int) { r.c.Remove(cron.EntryID(id)) }

// Start launches the scheduling goroutine.
func (r *RobfigCronEngine) Start() { r.c.Start() }

// Stop halts scheduling. Registered entries stay in place for a later Start.
func (r *RobfigCronEngine) Stop() { r.c.Stop() }
