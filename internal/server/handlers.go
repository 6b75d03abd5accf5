package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"idz2_regfalsi/internal/rootfind"
	"idz2_regfalsi/internal/sse"

	"github.com/google/uuid"
)

// StartRun запускает новый поиск корня
func StartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}

	var p RunParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "ошибка JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if p.Tolerance <= 0 {
		p.Tolerance = rootfind.DefaultTolerance
	}
	if p.MaxProbes <= 0 {
		p.MaxProbes = rootfind.DefaultMaxProbes
	}
	if p.MaxIter <= 0 {
		p.MaxIter = rootfind.DefaultMaxIter
	}
	if !(p.A < p.B) {
		http.Error(w, "требуется a < b", http.StatusBadRequest)
		return
	}

	f, err := rootfind.NewEvalFunc(p.Func, p.Params)
	if err != nil {
		http.Error(w, "ошибка в выражении функции: "+err.Error(), http.StatusBadRequest)
		return
	}

	// предварительно считаем значения функции для графика
	const n = 400
	xs := make([]float64, n)
	ys := make([]any, n)
	h := (p.B - p.A) / float64(n-1)
	for i := 0; i < n; i++ {
		x := p.A + float64(i)*h
		xs[i] = x
		y, err := f.Eval(x)
		if err != nil || math.IsNaN(y) || math.IsInf(y, 0) {
			// точка вне области определения — null в JSON, разрыв на графике
			continue
		}
		ys[i] = y
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	rs := &RunState{
		ID:        id,
		Params:    p,
		CreatedAt: time.Now(),
		Cancel:    cancel,
	}
	saveRun(rs)

	// асинхронный запуск поиска
	go runSearch(ctx, rs, f)

	resp := map[string]any{
		"id": id,
		"xs": xs,
		"ys": ys,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// runSearch выполняет поиск корня и публикует события; работает в отдельной горутине
func runSearch(ctx context.Context, rs *RunState, f rootfind.Func) {
	id := rs.ID
	p := rs.Params

	// стартовое событие
	startMsg, _ := json.Marshal(map[string]any{
		"type": "start",
		"id":   id,
	})
	sse.Publish(id, startMsg)

	cfg := rootfind.Config{
		Tolerance:  p.Tolerance,
		Resolution: p.Resolution,
		MaxProbes:  p.MaxProbes,
		MaxIter:    p.MaxIter,
	}
	if p.Seed != 0 {
		// фиксированное зерно — воспроизводимый поиск отрезка
		cfg.Rand = rand.New(rand.NewSource(p.Seed))
	}

	cfg.OnProbe = func(pr rootfind.Probe) error {
		select {
		case <-ctx.Done():
			return rootfind.ErrStopped
		default:
		}

		// поля запуска конкурентно читает /export — записи только под runsMu
		runsMu.Lock()
		rs.Probes = append(rs.Probes, pr)
		runsMu.Unlock()

		msg, _ := json.Marshal(map[string]any{
			"type":  "probe",
			"probe": pr,
		})
		sse.Publish(id, msg)
		return nil
	}

	cfg.OnIter = func(it rootfind.Iter) error {
		select {
		case <-ctx.Done():
			return rootfind.ErrStopped
		default:
		}

		runsMu.Lock()
		rs.Iters = append(rs.Iters, it)
		runsMu.Unlock()

		msg, _ := json.Marshal(map[string]any{
			"type": "iter",
			"iter": it,
		})
		sse.Publish(id, msg)
		return nil
	}

	res, err := rootfind.FindRoot(f, p.A, p.B, cfg)

	if err != nil {
		if errors.Is(err, rootfind.ErrStopped) || errors.Is(err, context.Canceled) {
			stopMsg, _ := json.Marshal(map[string]any{
				"type": "stopped",
			})
			sse.Publish(id, stopMsg)
			return
		}

		reason := "ошибка при поиске корня: " + err.Error()
		runsMu.Lock()
		rs.Err = reason
		runsMu.Unlock()

		errMsg, _ := json.Marshal(map[string]any{
			"type": "error",
			"err":  reason,
		})
		sse.Publish(id, errMsg)
		return
	}

	runsMu.Lock()
	rs.Result = &res
	rs.Done = true
	runsMu.Unlock()

	doneMsg, _ := json.Marshal(map[string]any{
		"type":    "done",
		"x":       res.Root,
		"fx":      res.FRoot,
		"iters":   res.Iters,
		"atGuess": res.AtGuess,
	})
	sse.Publish(id, doneMsg)
}

// StopRun — прерывание поиска корня
func StopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	rs := getRun(id)
	if rs == nil {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	if rs.Cancel != nil {
		rs.Cancel()
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportCSV — экспорт итераций решателя в CSV
func ExportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	rs := getRun(id)
	if rs == nil {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	// копия под замком: фоновый поиск продолжает дописывать итерации
	runsMu.Lock()
	iters := append([]rootfind.Iter(nil), rs.Iters...)
	runsMu.Unlock()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=iterations_"+id+".csv")

	cw := csv.NewWriter(w)
	defer cw.Flush()

	_ = cw.Write([]string{"k", "a", "b", "c", "f(c)", "alpha", "beta"})

	for _, it := range iters {
		_ = cw.Write([]string{
			strconv.Itoa(it.K),
			fmtFloat(it.A),
			fmtFloat(it.B),
			fmtFloat(it.C),
			fmtFloat(it.FC),
			fmtFloat(it.Alpha),
			fmtFloat(it.Beta),
		})
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 16, 64)
}

// Stream — SSE-стрим событий запуска
func Stream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := sse.Subscribe(id)
	defer cancel()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: msg\n")
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
