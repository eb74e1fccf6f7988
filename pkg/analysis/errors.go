package analysis

import (
	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/device"
	"github.com/edp1096/cck-mna/pkg/matrix"
)

var (
	ErrTopology         = circuit.ErrTopology
	ErrSingular         = matrix.ErrSingular
	ErrInvalidParameter = device.ErrInvalidParameter

	// ErrNumericInstability reports a NaN or infinite value in a stamp or a
	// solution. It is handled like a singular system and matches
	// ErrSingular under errors.Is.
	ErrNumericInstability error = numericInstability{}
)

type numericInstability struct{}

func (numericInstability) Error() string { return "numeric instability" }

func (numericInstability) Is(target error) bool { return target == matrix.ErrSingular }
