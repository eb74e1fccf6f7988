package consts

const (
	Gmin              = 1e-12 // Shunt conductance for open elements (S)
	MinResistance     = 1e-9  // Floor for zero resistance (ohm)
	ResidualTolerance = 1e-9  // Relative residual accepted after a solve
	MaxIterations     = 4     // Refinement passes on the linear solve
	DefaultTimeStep   = 1e-3  // Solver tick when none is given (s)
)
