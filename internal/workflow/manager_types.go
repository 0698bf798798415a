package workflow

import (
	"shuttle/internal/queue"
	"shuttle/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Transfer stage.Handler
	Finalize stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
// The transfer stage moves pending tasks through uploading to processing; the
// finalize stage fires the completion hook and marks tasks completed.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage
	if set.Transfer != nil {
		stages = append(stages, pipelineStage{
			name:             "transfer",
			handler:          set.Transfer,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusUploading,
			doneStatus:       queue.StatusProcessing,
		})
	}
	if set.Finalize != nil {
		stages = append(stages, pipelineStage{
			name:             "finalize",
			handler:          set.Finalize,
			startStatus:      queue.StatusProcessing,
			processingStatus: queue.StatusProcessing,
			doneStatus:       queue.StatusCompleted,
		})
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	var processing []queue.Status
	seenProcessing := make(map[queue.Status]struct{})
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				processing = append(processing, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = stageByStart
	m.statusOrder = statusOrder
	m.processingStatuses = processing
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
