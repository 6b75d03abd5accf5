package rootfind

import (
	"errors"
	"math"
)

// Iter — одна итерация демпфированного метода ложного положения
type Iter struct {
	K     int     `json:"k"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	C     float64 `json:"c"`
	FC    float64 `json:"fc"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// ErrStopped — специальная ошибка для принудительной остановки
var ErrStopped = errors.New("rootfind: stopped by callback")

// ErrBadBracket — отрезок без смены знака, нарушено предусловие решателя
var ErrBadBracket = errors.New("rootfind: bracket does not enclose a root")

// ErrNoConvergence — лимит итераций исчерпан до попадания в допуск
var ErrNoConvergence = errors.New("rootfind: no convergence within iteration limit")

// Solve — демпфированный метод ложного положения (метод Иллинойса) на
// готовом отрезке. Остановка при |f(ck)| < cfg.Tolerance; когда знак f(ck)
// повторяется две итерации подряд, вес застоявшегося конца уменьшается
// вдвое, что возвращает сверхлинейную сходимость.
// OnIter вызывается после каждой итерации; если вернёт ErrStopped —
// алгоритм прерывается.
func Solve(f Func, br Bracket, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()

	if br.Exact {
		return Result{Root: br.Lo}, nil
	}

	ak, bk := br.Lo, br.Hi

	fa, err := eval(f, ak)
	if err != nil {
		return Result{}, err
	}
	fb, err := eval(f, bk)
	if err != nil {
		return Result{}, err
	}
	// вырожденные отрезки: корень на конце либо нет смены знака
	if fa == 0 {
		return Result{Root: ak}, nil
	}
	if fb == 0 {
		return Result{Root: bk}, nil
	}
	if fa*fb > 0 {
		return Result{}, ErrBadBracket
	}

	// первая точка — немодифицированная формула ложного положения
	ck, err := newxRegFalsi(f, ak, bk)
	if err != nil {
		return Result{}, err
	}

	k := 0
	fckPrev := 0.0 // не читается до второй итерации

	for {
		fcv, err := eval(f, ck)
		if err != nil {
			return Result{}, err
		}
		if math.Abs(fcv) < cfg.Tolerance {
			return Result{Root: ck, FRoot: fcv, Iters: k}, nil
		}

		k++
		if k > cfg.MaxIter {
			return Result{Root: ck, FRoot: fcv, Iters: k - 1}, ErrNoConvergence
		}

		alpha, beta := 1.0, 1.0

		fak, err := eval(f, ak)
		if err != nil {
			return Result{}, err
		}
		fck, err := eval(f, ck)
		if err != nil {
			return Result{}, err
		}

		// отрезок сжался до разрешения оси — возвращаем неотрицательный конец
		if math.Abs(ak-ck) <= cfg.Resolution {
			if fak >= 0 {
				return Result{Root: ak, FRoot: fak, Iters: k}, nil
			}
			return Result{Root: ck, FRoot: fck, Iters: k}, nil
		}

		if fak*fck <= 0 {
			// корень в [ak, ck]
			if fck == 0 {
				return Result{Root: ck, Iters: k}, nil
			}
			bk = ck
			if k > 1 && fck*fckPrev > 0 {
				alpha = 0.5
			}
		} else {
			// корень в [ck, bk]
			ak = ck
			if k > 1 && fck*fckPrev > 0 {
				beta = 0.5
			}
		}
		fckPrev = fck

		if cfg.OnIter != nil {
			if cbErr := cfg.OnIter(Iter{K: k, A: ak, B: bk, C: ck, FC: fck, Alpha: alpha, Beta: beta}); cbErr != nil {
				if errors.Is(cbErr, ErrStopped) {
					return Result{Root: ck, FRoot: fck, Iters: k}, ErrStopped
				}
				return Result{Root: ck, FRoot: fck, Iters: k}, cbErr
			}
		}

		ck, err = newxModRegFalsi(f, ak, bk, alpha, beta)
		if err != nil {
			return Result{}, err
		}
	}
}

// newxRegFalsi — новая точка по немодифицированной формуле ложного положения
func newxRegFalsi(f Func, ak, bk float64) (float64, error) {
	fa, err := eval(f, ak)
	if err != nil {
		return 0, err
	}
	fb, err := eval(f, bk)
	if err != nil {
		return 0, err
	}
	return (ak*fb - bk*fa) / (fb - fa), nil
}

// newxModRegFalsi — новая точка по демпфированной формуле с весами
// alpha и beta на концах ak и bk. Знаменатель не обращается в ноль,
// пока на отрезке сохраняется смена знака и оба веса положительны.
func newxModRegFalsi(f Func, ak, bk, alpha, beta float64) (float64, error) {
	fa, err := eval(f, ak)
	if err != nil {
		return 0, err
	}
	fb, err := eval(f, bk)
	if err != nil {
		return 0, err
	}
	return (ak*beta*fb - bk*alpha*fa) / (beta*fb - alpha*fa), nil
}
