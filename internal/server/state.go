package server

import (
	"context"
	"sync"
	"time"

	"idz2_regfalsi/internal/rootfind"
)

// параметры запуска поиска корня
type RunParams struct {
	Func       string             `json:"func"`
	A          float64            `json:"a"`
	B          float64            `json:"b"`
	Tolerance  float64            `json:"tolerance"`
	Resolution float64            `json:"resolution"`
	MaxProbes  int                `json:"maxProbes"`
	MaxIter    int                `json:"maxIter"`
	Seed       int64              `json:"seed"`
	Params     map[string]float64 `json:"params"`
}

// состояние одного запуска; изменяемые поля — только под runsMu
type RunState struct {
	ID        string
	Params    RunParams
	CreatedAt time.Time

	Iters  []rootfind.Iter
	Probes []rootfind.Probe

	Result *rootfind.Result
	Err    string
	Done   bool
	Cancel context.CancelFunc
}

var (
	// runsMu защищает и реестр, и изменяемые поля RunState
	runsMu sync.Mutex
	runs   = map[string]*RunState{}
)

func saveRun(rs *RunState) {
	runsMu.Lock()
	defer runsMu.Unlock()
	runs[rs.ID] = rs
}

func getRun(id string) *RunState {
	runsMu.Lock()
	defer runsMu.Unlock()
	return runs[id]
}
