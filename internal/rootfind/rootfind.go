package rootfind

import "math/rand"

// значения по умолчанию для Config
const (
	DefaultTolerance  = 0.05
	DefaultResolution = 0.0
	DefaultMaxProbes  = 1000
	DefaultMaxIter    = 200
)

// Config — настройки одного поиска корня; нулевые поля заполняются
// значениями по умолчанию.
type Config struct {
	Tolerance  float64 // допуск по |f(x)| для остановки
	Resolution float64 // минимальная значимая ширина отрезка
	MaxProbes  int     // лимит проб при поиске отрезка
	MaxIter    int     // лимит итераций решателя

	// Rand — источник случайности для поиска отрезка;
	// nil означает глобальный источник math/rand.
	Rand *rand.Rand

	OnProbe func(Probe) error // вызывается на каждой пробе поиска отрезка
	OnIter  func(Iter) error  // вызывается на каждой итерации решателя
}

func (c Config) withDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Resolution < 0 {
		c.Resolution = DefaultResolution
	}
	if c.MaxProbes <= 0 {
		c.MaxProbes = DefaultMaxProbes
	}
	if c.MaxIter <= 0 {
		c.MaxIter = DefaultMaxIter
	}
	return c
}

func (c Config) rand01() float64 {
	if c.Rand != nil {
		return c.Rand.Float64()
	}
	return rand.Float64()
}

// Result — итог поиска корня
type Result struct {
	Root    float64 `json:"root"`
	FRoot   float64 `json:"froot"`
	Iters   int     `json:"iters"`
	AtGuess bool    `json:"atGuess,omitempty"` // начальная точка уже была корнем
}

// FindRoot — полный цикл поиска: подбор отрезка со сменой знака и
// демпфированный метод ложного положения на нём. Если корень совпал с
// одной из начальных точек, решатель не запускается и в Result
// выставляется AtGuess.
func FindRoot(f Func, a0, b0 float64, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()

	br, err := Prepare(f, a0, b0, cfg)
	if err != nil {
		return Result{}, err
	}
	if br.Exact {
		return Result{Root: br.Lo, AtGuess: br.Lo == a0 || br.Lo == b0}, nil
	}
	return Solve(f, br, cfg)
}
