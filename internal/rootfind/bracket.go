package rootfind

import (
	"errors"
	"fmt"
	"math"
)

// Bracket — отрезок [Lo, Hi] со сменой знака f, либо уже готовый корень.
// При Exact корнем является Lo, поле Hi не используется.
type Bracket struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Exact bool    `json:"exact,omitempty"`
}

// Probe — одна проба поиска отрезка со сменой знака
type Probe struct {
	K int     `json:"k"`
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// ErrDegenerateSlope — проба затуханием упёрлась в нулевой наклон
var ErrDegenerateSlope = errors.New("rootfind: degenerate slope in bracket probe")

// ErrBracketExhausted — лимит проб исчерпан, смена знака не найдена
var ErrBracketExhausted = errors.New("rootfind: bracket search exhausted")

// Prepare проверяет начальные точки a0 и b0 и возвращает отрезок для решателя.
// Если одна из точек уже корень, возвращается Exact (при f(a0) = f(b0) = 0
// приоритет за a0). Пара со сменой знака проходит без изменений, иначе
// запускается поиск нового отрезка.
func Prepare(f Func, a0, b0 float64, cfg Config) (Bracket, error) {
	cfg = cfg.withDefaults()

	fa, err := eval(f, a0)
	if err != nil {
		return Bracket{}, err
	}
	fb, err := eval(f, b0)
	if err != nil {
		return Bracket{}, err
	}

	if fa == 0 {
		return Bracket{Lo: a0, Exact: true}, nil
	}
	if fb == 0 {
		return Bracket{Lo: b0, Exact: true}, nil
	}
	if fa*fb < 0 {
		return Bracket{Lo: a0, Hi: b0}, nil
	}
	return findNewInput(f, a0, b0, cfg)
}

// findNewInput ищет пару точек со сменой знака, начиная с одно-знаковых a0 и b0.
// Эвристика рассчитана на примерно монотонно затухающую функцию и сходимости
// не гарантирует, поэтому число проб ограничено cfg.MaxProbes; при исчерпании
// лимита лучшая найденная пара возвращается вместе с ErrBracketExhausted.
func findNewInput(f Func, a0, b0 float64, cfg Config) (Bracket, error) {
	fa, err := eval(f, a0)
	if err != nil {
		return Bracket{Lo: a0, Hi: b0}, err
	}
	fb, err := eval(f, b0)
	if err != nil {
		return Bracket{Lo: a0, Hi: b0}, err
	}

	for k := 1; k <= cfg.MaxProbes; k++ {
		c0, err := guessByDecay(f, a0, b0)
		if err != nil {
			return Bracket{Lo: a0, Hi: b0}, err
		}

		if cfg.OnProbe != nil {
			if cbErr := cfg.OnProbe(Probe{K: k, A: a0, B: b0, C: c0}); cbErr != nil {
				if errors.Is(cbErr, ErrStopped) {
					return Bracket{Lo: a0, Hi: b0}, ErrStopped
				}
				return Bracket{Lo: a0, Hi: b0}, cbErr
			}
		}

		switch {
		case c0 < a0:
			// проба ниже отрезка — сдвигаем окно вниз
			a0, b0 = c0, a0
		case c0 > b0:
			// проба выше отрезка — сдвигаем окно вверх
			a0, b0 = b0, c0
		default:
			// проба внутри отрезка — смотрим на знак
			fc, err := eval(f, c0)
			if err != nil {
				return Bracket{Lo: a0, Hi: b0}, err
			}
			switch {
			case fc == 0:
				return Bracket{Lo: c0, Exact: true}, nil
			case fa*fc < 0:
				return Bracket{Lo: a0, Hi: c0}, nil
			case fc*fb < 0:
				return Bracket{Lo: c0, Hi: b0}, nil
			default:
				// знак не сменился — заменяем случайный конец, чтобы не зациклиться
				if cfg.rand01() < 0.5 {
					a0 = c0
				} else {
					b0 = c0
				}
			}
		}

		fa, err = eval(f, a0)
		if err != nil {
			return Bracket{Lo: a0, Hi: b0}, err
		}
		fb, err = eval(f, b0)
		if err != nil {
			return Bracket{Lo: a0, Hi: b0}, err
		}
		if fa*fb < 0 {
			return Bracket{Lo: a0, Hi: b0}, nil
		}
	}

	return Bracket{Lo: a0, Hi: b0}, ErrBracketExhausted
}

// guessByDecay — новая проба в предположении затухающей функции: прямая
// через (a, fa) и (b, fb) продолжается до уровня ±|fb| либо ±2|fb|,
// выбранного так, чтобы проба двигалась к смене знака.
func guessByDecay(f Func, a, b float64) (float64, error) {
	fa, err := eval(f, a)
	if err != nil {
		return 0, err
	}
	fb, err := eval(f, b)
	if err != nil {
		return 0, err
	}

	slope := (fb - fa) / (b - a)
	if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, fmt.Errorf("%w: [%g, %g]", ErrDegenerateSlope, a, b)
	}

	var y float64
	if fa < 0 {
		if slope < 0 {
			y = math.Abs(fb)
		} else {
			y = 2 * math.Abs(fb)
		}
	} else {
		if slope < 0 {
			y = -2 * math.Abs(fb)
		} else {
			y = -math.Abs(fb)
		}
	}
	return a + (y-fa)/slope, nil
}
