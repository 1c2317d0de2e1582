package handlers

import (
	"net/http"
	"sort"

	"github.com/wonny/qualmom/internal/scheduler"
)

// JobStatsSource reports scheduler state (scheduler.Scheduler)
type JobStatsSource interface {
	GetJobStats() map[string]scheduler.JobStats
}

// SchedulerHandler serves job statistics
type SchedulerHandler struct {
	source JobStatsSource
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(source JobStatsSource) *SchedulerHandler {
	return &SchedulerHandler{source: source}
}

// GetJobs returns per-job run statistics
// GET /api/scheduler/jobs
func (h *SchedulerHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	stats := h.source.GetJobStats()

	jobs := make([]scheduler.JobStats, 0, len(stats))
	for _, s := range stats {
		jobs = append(jobs, s)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].JobName < jobs[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(jobs),
		"jobs":  jobs,
	})
}
