package util

type IntegrationMethod int

const (
	GearMethod IntegrationMethod = iota // BDF, order 1 is backward Euler
	TrapezoidalMethod
)

// bdf[k-1] is the order-k formula: x' ~ (x_n - sum(history[i]*x_{n-1-i})) / (beta*dt).
var bdf = [...]struct {
	history []float64
	beta    float64
}{
	{[]float64{1}, 1},
	{[]float64{4.0 / 3, -1.0 / 3}, 2.0 / 3},
	{[]float64{18.0 / 11, -9.0 / 11, 2.0 / 11}, 6.0 / 11},
	{[]float64{48.0 / 25, -36.0 / 25, 16.0 / 25, -3.0 / 25}, 12.0 / 25},
	{[]float64{300.0 / 137, -300.0 / 137, 200.0 / 137, -75.0 / 137, 12.0 / 137}, 60.0 / 137},
	{[]float64{360.0 / 147, -450.0 / 147, 400.0 / 147, -225.0 / 147, 72.0 / 147, -10.0 / 147}, 60.0 / 147},
}

// GetIntegratorCoeffs returns the derivative weights for one step of dt.
// Element 0 multiplies the new value; for BDF the rest multiply the
// history, newest first. Out of range orders fall back to 1.
func GetIntegratorCoeffs(method IntegrationMethod, order int, dt float64) []float64 {
	if method == TrapezoidalMethod {
		// order 2 is the trapezoidal rule proper, order 1 collapses to Euler
		if order == 2 {
			return []float64{2 / dt}
		}
		return []float64{1 / dt}
	}

	if order < 1 || order > len(bdf) {
		order = 1
	}
	f := bdf[order-1]
	scale := 1 / (f.beta * dt)

	coeffs := make([]float64, 0, order+1)
	coeffs = append(coeffs, scale)
	for _, h := range f.history {
		coeffs = append(coeffs, -h*scale)
	}
	return coeffs
}
