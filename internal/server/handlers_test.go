package server

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"idz2_regfalsi/internal/rootfind"
	"idz2_regfalsi/internal/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postStart(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(body))
	rec := httptest.NewRecorder()
	StartRun(rec, req)
	return rec
}

func TestStartRun_Validation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/start", nil)
	rec := httptest.NewRecorder()
	StartRun(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, http.StatusBadRequest, postStart(t, "{").Code)

	// требуется a < b
	assert.Equal(t, http.StatusBadRequest, postStart(t, `{"func":"x","a":2,"b":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, postStart(t, `{"func":"x","a":1,"b":1}`).Code)

	// выражение не разбирается
	assert.Equal(t, http.StatusBadRequest, postStart(t, `{"func":"x +* 2","a":0,"b":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, postStart(t, `{"func":"","a":0,"b":1}`).Code)
}

func TestStopRun_Validation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stop?id=x", nil)
	rec := httptest.NewRecorder()
	StopRun(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/stop", nil)
	rec = httptest.NewRecorder()
	StopRun(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/stop?id=nope", nil)
	rec = httptest.NewRecorder()
	StopRun(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCSV_Validation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	rec := httptest.NewRecorder()
	ExportCSV(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/export?id=nope", nil)
	rec = httptest.NewRecorder()
	ExportCSV(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(NewRouter("static"))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/start", "application/json",
		strings.NewReader(`{"func":"x**3 + x - 1","a":0,"b":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var started struct {
		ID string    `json:"id"`
		Xs []float64 `json:"xs"`
		Ys []float64 `json:"ys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.ID)

	// точки для графика посчитаны сразу
	require.Len(t, started.Xs, 400)
	require.Len(t, started.Ys, 400)
	assert.Equal(t, 0.0, started.Xs[0])
	assert.Equal(t, -1.0, started.Ys[0])

	// поиск идёт в фоне: ждём, пока в экспорте появятся обе итерации
	var rows [][]string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		er, err := http.Get(srv.URL + "/export?id=" + started.ID)
		require.NoError(t, err)
		rows, err = csv.NewReader(er.Body).ReadAll()
		er.Body.Close()
		require.NoError(t, err)
		if len(rows) >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"k", "a", "b", "c", "f(c)", "alpha", "beta"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[2][0])

	// на второй итерации демпфируется правый конец
	assert.Equal(t, "1", rows[2][5])
	assert.Equal(t, "0.5", rows[2][6])

	c2, err := strconv.ParseFloat(rows[2][3], 64)
	require.NoError(t, err)
	assert.Greater(t, c2, 0.63)
	assert.Less(t, c2, 0.64)

	// остановка уже завершённого запуска не ошибка
	sr, err := http.Post(srv.URL+"/stop?id="+started.ID, "", nil)
	require.NoError(t, err)
	sr.Body.Close()
	assert.Equal(t, http.StatusNoContent, sr.StatusCode)
}

func TestRunSearch_Events(t *testing.T) {
	f, err := rootfind.NewEvalFunc("x**3 + x - 1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs := &RunState{
		ID:        "run-events-test",
		Params:    RunParams{Func: "x**3 + x - 1", A: 0, B: 1, Tolerance: 0.05, MaxProbes: 1000, MaxIter: 200},
		CreatedAt: time.Now(),
		Cancel:    cancel,
	}
	saveRun(rs)

	// подписка до запуска; буфера канала хватает на все события короткого поиска
	ch, unsub := sse.Subscribe(rs.ID)
	defer unsub()

	runSearch(ctx, rs, f)

	var msgs []map[string]any
	for len(ch) > 0 {
		var m map[string]any
		require.NoError(t, json.Unmarshal(<-ch, &m))
		msgs = append(msgs, m)
	}

	// отрезок [0, 1] уже со сменой знака: зондов нет, две итерации и финиш
	require.Len(t, msgs, 4)
	assert.Equal(t, "start", msgs[0]["type"])
	assert.Equal(t, rs.ID, msgs[0]["id"])

	require.Equal(t, "iter", msgs[1]["type"])
	it1, ok := msgs[1]["iter"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"k":     1.0,
		"a":     0.5,
		"b":     1.0,
		"c":     0.5,
		"fc":    -0.375,
		"alpha": 1.0,
		"beta":  1.0,
	}, it1)

	// повторный знак в c — правый вес уже половинный
	require.Equal(t, "iter", msgs[2]["type"])
	it2, ok := msgs[2]["iter"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, it2["k"])
	assert.Equal(t, 1.0, it2["alpha"])
	assert.Equal(t, 0.5, it2["beta"])
	assert.Equal(t, it2["a"], it2["c"])

	require.Equal(t, "done", msgs[3]["type"])
	x, ok := msgs[3]["x"].(float64)
	require.True(t, ok)
	assert.Greater(t, x, 0.69)
	assert.Less(t, x, 0.70)
	assert.Equal(t, 2.0, msgs[3]["iters"])
	assert.Equal(t, false, msgs[3]["atGuess"])
	fx, ok := msgs[3]["fx"].(float64)
	require.True(t, ok)
	assert.Greater(t, fx, 0.0)
	assert.Less(t, fx, 0.05)
}

func TestExportCSV_DuringRun(t *testing.T) {
	rec := postStart(t, `{"func":"x**3 + x - 1","a":0,"b":1,"tolerance":1e-9}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var started struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	rs := getRun(started.ID)
	require.NotNil(t, rs)

	// экспорт конкурентно с идущим поиском: число строк только растёт
	prev := 0
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		er := httptest.NewRecorder()
		ExportCSV(er, httptest.NewRequest(http.MethodGet, "/export?id="+started.ID, nil))
		require.Equal(t, http.StatusOK, er.Code)
		rows, err := csv.NewReader(er.Body).ReadAll()
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), prev)
		prev = len(rows)

		runsMu.Lock()
		done := rs.Done
		runsMu.Unlock()
		if done {
			break
		}
	}

	runsMu.Lock()
	done := rs.Done
	runsMu.Unlock()
	require.True(t, done, "поиск не завершился за отведённое время")

	// при допуске 1e-9 решателю нужно не меньше трёх итераций
	er := httptest.NewRecorder()
	ExportCSV(er, httptest.NewRequest(http.MethodGet, "/export?id="+started.ID, nil))
	rows, err := csv.NewReader(er.Body).ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, []string{"k", "a", "b", "c", "f(c)", "alpha", "beta"}, rows[0])
}

func TestStream_DeliversEvents(t *testing.T) {
	srv := httptest.NewServer(NewRouter("static"))
	defer srv.Close()

	got := make(chan string, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/stream?id=stream-test")
		if err != nil {
			return
		}
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				got <- data
				return
			}
		}
	}()

	// публикуем, пока клиент не подпишется и не прочитает событие
	deadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case data := <-got:
			assert.Equal(t, `{"type":"ping"}`, data)
			return
		case <-time.After(20 * time.Millisecond):
			sse.Publish("stream-test", []byte(`{"type":"ping"}`))
		}
		if time.Now().After(deadline) {
			t.Fatal("событие из стрима не пришло")
		}
	}
}
