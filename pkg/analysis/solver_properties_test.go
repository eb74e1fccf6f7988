package analysis_test

import (
	"errors"
	"io"
	"log/slog"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/edp1096/cck-mna/pkg/analysis"
	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/device"
	"github.com/edp1096/cck-mna/pkg/matrix"
)

const tol = 1e-9

func quiet() analysis.Option {
	return analysis.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func build(devs ...device.Device) *circuit.Circuit {
	ckt := circuit.New("test")
	ExpectWithOffset(1, ckt.Add(devs...)).To(Succeed())
	return ckt
}

func expectKCL(state *analysis.State) {
	for n := 1; n < state.NumNodes(); n++ {
		ExpectWithOffset(1, state.KCLError(n)).To(BeNumerically("~", 0, tol), "node %d", n)
	}
}

var _ = Describe("Solver", func() {
	var solver *analysis.Solver

	BeforeEach(func() {
		solver = analysis.NewSolver(quiet())
	})

	Describe("resistive circuits", func() {
		It("obeys Ohm's law for one resistor on one battery", func() {
			bat := device.NewBattery("V1", []string{"a", "0"}, 10)
			r := device.NewResistor("R1", []string{"a", "0"}, 100)
			state, err := solver.Solve(build(bat, r), 1e-3)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.Status).To(Equal(analysis.StatusOK))
			Expect(r.Current()).To(BeNumerically("~", 0.1, tol))
			Expect(r.VoltageDrop()).To(BeNumerically("~", 10, tol))
			Expect(bat.Current()).To(BeNumerically("~", 0.1, tol))
			Expect(state.Voltage("a")).To(BeNumerically("~", 10, tol))
		})

		It("divides voltage across series resistors", func() {
			r1 := device.NewResistor("R1", []string{"1", "2"}, 1000)
			r2 := device.NewResistor("R2", []string{"2", "0"}, 2000)
			state, err := solver.Solve(build(device.NewBattery("V1", []string{"1", "0"}, 9), r1, r2), 1e-3)

			Expect(err).NotTo(HaveOccurred())
			Expect(r1.Current()).To(BeNumerically("~", 3e-3, tol))
			Expect(r2.Current()).To(BeNumerically("~", 3e-3, tol))
			Expect(r1.VoltageDrop() / r2.VoltageDrop()).To(BeNumerically("~", 0.5, tol))
			expectKCL(state)
		})

		It("gives every parallel resistor the full battery voltage", func() {
			bat := device.NewBattery("V1", []string{"1", "0"}, 5)
			r1 := device.NewResistor("R1", []string{"1", "0"}, 100)
			r2 := device.NewResistor("R2", []string{"1", "0"}, 50)
			_, err := solver.Solve(build(bat, r1, r2), 1e-3)

			Expect(err).NotTo(HaveOccurred())
			Expect(r1.VoltageDrop()).To(BeNumerically("~", 5, tol))
			Expect(r2.VoltageDrop()).To(BeNumerically("~", 5, tol))
			Expect(bat.Current()).To(BeNumerically("~", 0.15, tol))
		})

		It("balances current at every node of a mixed network", func() {
			ckt := build(
				device.NewBattery("V1", []string{"1", "0"}, 12),
				device.NewResistor("R1", []string{"1", "2"}, 330),
				device.NewResistor("R2", []string{"2", "3"}, 470),
				device.NewResistor("R3", []string{"2", "0"}, 1000),
				device.NewResistor("R4", []string{"3", "0"}, 220),
				device.NewCurrentSource("I1", []string{"0", "3"}, 2e-3),
				device.NewCapacitor("C1", []string{"1", "3"}, 1e-6),
				device.NewInductor("L1", []string{"2", "0"}, 1e-3),
			)
			for i := 0; i < 5; i++ {
				state, err := solver.Solve(ckt, 1e-4)
				Expect(err).NotTo(HaveOccurred())
				expectKCL(state)
			}
		})
	})

	Describe("reactive circuits", func() {
		It("charges a capacitor along the RC curve", func() {
			r := device.NewResistor("R1", []string{"1", "2"}, 1000)
			c := device.NewCapacitor("C1", []string{"2", "0"}, 1e-3)
			bat := device.NewBattery("V1", []string{"1", "0"}, 1)
			ckt := build(bat, r, c)

			// t = RC = 1s
			for i := 0; i < 1000; i++ {
				_, err := solver.Solve(ckt, 1e-3)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(solver.Time()).To(BeNumerically("~", 1, 1e-9))
			Expect(c.VoltageDrop()).To(BeNumerically("~", 1-math.Exp(-1), 1e-3))
			Expect(bat.Current()).To(BeNumerically(">", 0))

			for i := 0; i < 9000; i++ {
				_, err := solver.Solve(ckt, 1e-3)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(c.VoltageDrop()).To(BeNumerically(">", 0.999))
			Expect(c.VoltageDrop()).To(BeNumerically("<=", 1+tol))
		})

		It("charges along the same curve with the trapezoidal rule", func() {
			solver = analysis.NewSolver(quiet(), analysis.WithMethod(device.TR))
			c := device.NewCapacitor("C1", []string{"2", "0"}, 1e-3)
			ckt := build(
				device.NewBattery("V1", []string{"1", "0"}, 1),
				device.NewResistor("R1", []string{"1", "2"}, 1000),
				c,
			)
			for i := 0; i < 1000; i++ {
				_, err := solver.Solve(ckt, 1e-3)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(c.VoltageDrop()).To(BeNumerically("~", 1-math.Exp(-1), 1e-3))
		})

		It("lets inductor current settle at V/R", func() {
			l := device.NewInductor("L1", []string{"2", "0"}, 1e-3)
			ckt := build(
				device.NewBattery("V1", []string{"1", "0"}, 1),
				device.NewResistor("R1", []string{"1", "2"}, 1),
				l,
			)
			for i := 0; i < 200; i++ {
				_, err := solver.Solve(ckt, 1e-4)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(l.Current()).To(BeNumerically("~", 1, 1e-3))
		})

		It("follows an AC source in time", func() {
			r := device.NewResistor("R1", []string{"1", "0"}, 2)
			ckt := build(device.NewACVoltageSource("V1", []string{"1", "0"}, 0, 4, 50, 0), r)

			_, err := solver.SolveAt(ckt, 1e-3, 0.005)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Current()).To(BeNumerically("~", 2, tol))

			_, err = solver.SolveAt(ckt, 1e-3, 0.015)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Current()).To(BeNumerically("~", -2, tol))
		})
	})

	Describe("wires", func() {
		It("reconstructs the current through every merged wire", func() {
			w1 := device.NewWire("W1", []string{"a", "b"}, 0)
			w2 := device.NewWire("W2", []string{"b", "c"}, 0)
			state, err := solver.Solve(build(
				device.NewBattery("V1", []string{"a", "0"}, 10),
				w1,
				device.NewResistor("R1", []string{"b", "0"}, 1000),
				w2,
				device.NewResistor("R2", []string{"c", "0"}, 1000),
			), 1e-3)

			Expect(err).NotTo(HaveOccurred())
			Expect(w1.Current()).To(BeNumerically("~", 20e-3, tol))
			Expect(w2.Current()).To(BeNumerically("~", 10e-3, tol))
			Expect(w1.VoltageDrop()).To(BeZero())
			Expect(state.Voltage("c")).To(BeNumerically("~", 10, tol))
			expectKCL(state)
		})

		It("merges a zero ohm resistor and balances current through it", func() {
			for _, backend := range []matrix.Backend{matrix.Sparse, matrix.Dense} {
				for _, load := range []float64{1000, 10e6} {
					r0 := device.NewResistor("R0", []string{"a", "b"}, 0)
					s := analysis.NewSolver(quiet(), analysis.WithBackend(backend))
					state, err := s.Solve(build(
						device.NewBattery("V1", []string{"a", "0"}, 5),
						r0,
						device.NewResistor("R1", []string{"b", "0"}, load),
					), 1e-3)

					Expect(err).NotTo(HaveOccurred(), "backend %s", backend)
					Expect(state.Status).To(Equal(analysis.StatusOK))
					Expect(r0.Current()).To(BeNumerically("~", 5/load, tol), "backend %s, load %g", backend, load)
					Expect(r0.VoltageDrop()).To(BeZero())
					Expect(state.Voltage("b")).To(BeNumerically("~", 5, tol))
					expectKCL(state)
				}
			}
		})

		It("rebuilds the graph when a resistor is set to zero", func() {
			r0 := device.NewResistor("R0", []string{"a", "b"}, 10)
			ckt := build(
				device.NewBattery("V1", []string{"a", "0"}, 5),
				r0,
				device.NewResistor("R1", []string{"b", "0"}, 1000),
			)
			_, err := solver.Solve(ckt, 1e-3)
			Expect(err).NotTo(HaveOccurred())

			r0.SetResistance(0)
			state, err := solver.Solve(ckt, 1e-3)
			Expect(err).NotTo(HaveOccurred())
			Expect(ckt.Rebuilds()).To(Equal(2))
			Expect(r0.Current()).To(BeNumerically("~", 5e-3, tol))
			expectKCL(state)
		})
	})

	Describe("failures", func() {
		It("reports conflicting batteries as singular", func() {
			ckt := build(
				device.NewBattery("V1", []string{"a", "0"}, 5),
				device.NewBattery("V2", []string{"b", "0"}, 10),
				device.NewWire("W1", []string{"a", "b"}, 0),
			)
			for _, backend := range []matrix.Backend{matrix.Sparse, matrix.Dense} {
				s := analysis.NewSolver(quiet(), analysis.WithBackend(backend))
				state, err := s.Solve(ckt, 1e-3)
				Expect(errors.Is(err, analysis.ErrSingular)).To(BeTrue(), "backend %s: %v", backend, err)
				Expect(state.Status).To(Equal(analysis.StatusUnsolvable))
				Expect(s.LastGood()).To(BeNil())
			}
		})

		It("reports a node fed only by a current source as singular", func() {
			_, err := solver.Solve(build(
				device.NewBattery("V1", []string{"1", "0"}, 1),
				device.NewResistor("R1", []string{"1", "0"}, 10),
				device.NewCurrentSource("I1", []string{"0", "x"}, 1e-3),
			), 1e-3)
			Expect(err).To(MatchError(analysis.ErrSingular))
		})

		It("reports dangling endpoints as topology errors", func() {
			_, err := solver.Solve(build(
				device.NewBattery("V1", []string{"1", "0"}, 1),
				device.NewResistor("R1", []string{"1", ""}, 10),
			), 1e-3)
			Expect(err).To(MatchError(analysis.ErrTopology))
		})

		It("rejects non-physical parameters with the element name", func() {
			_, err := solver.Solve(build(
				device.NewBattery("V1", []string{"1", "0"}, 1),
				device.NewResistor("R1", []string{"1", "2"}, 10),
				device.NewCapacitor("C1", []string{"2", "0"}, 0),
			), 1e-3)
			Expect(err).To(MatchError(analysis.ErrInvalidParameter))

			var ee *device.ElementError
			Expect(errors.As(err, &ee)).To(BeTrue())
			Expect(ee.Name).To(Equal("C1"))
		})

		It("keeps the last good state after a failed tick", func() {
			r2 := device.NewResistor("R2", []string{"2", "0"}, 1000)
			ckt := build(
				device.NewBattery("V1", []string{"1", "0"}, 10),
				device.NewResistor("R1", []string{"1", "2"}, 1000),
				r2,
			)
			good, err := solver.Solve(ckt, 1e-3)
			Expect(err).NotTo(HaveOccurred())

			r2.SetResistance(math.NaN())
			bad, err := solver.Solve(ckt, 1e-3)
			Expect(err).To(HaveOccurred())
			Expect(bad.Status).To(Equal(analysis.StatusUnsolvable))
			Expect(solver.Fault()).To(MatchError(err))
			Expect(solver.LastGood()).To(BeIdenticalTo(good))
			Expect(r2.VoltageDrop()).To(BeNumerically("~", 5, tol))
			Expect(solver.Time()).To(BeNumerically("~", 1e-3, tol))

			r2.SetResistance(1000)
			_, err = solver.Solve(ckt, 1e-3)
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.Fault()).To(BeNil())
		})

		It("rejects a bad time step on a purely resistive circuit", func() {
			ckt := build(
				device.NewBattery("V1", []string{"1", "0"}, 5),
				device.NewResistor("R1", []string{"1", "0"}, 100),
			)
			for _, dt := range []float64{-1, 0, math.NaN(), math.Inf(1)} {
				state, err := solver.Solve(ckt, dt)
				Expect(err).To(MatchError(analysis.ErrInvalidParameter), "dt %g", dt)
				Expect(state.Status).To(Equal(analysis.StatusUnsolvable))
				Expect(solver.Time()).To(BeZero())
			}

			_, err := solver.SolveAt(ckt, -1e-3, 1)
			Expect(err).To(MatchError(analysis.ErrInvalidParameter))
			_, err = solver.SolveAt(ckt, 1e-3, math.NaN())
			Expect(err).To(MatchError(analysis.ErrInvalidParameter))
			Expect(solver.Time()).To(BeZero())
			Expect(solver.LastGood()).To(BeNil())

			_, err = solver.Solve(ckt, 1e-3)
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.Time()).To(BeNumerically("~", 1e-3, tol))
		})

		It("treats numeric instability like a singular system", func() {
			Expect(errors.Is(analysis.ErrNumericInstability, analysis.ErrSingular)).To(BeTrue())
			Expect(errors.Is(analysis.ErrSingular, analysis.ErrNumericInstability)).To(BeFalse())
		})
	})

	Describe("topology cache", func() {
		It("builds the node graph once while the topology holds", func() {
			r := device.NewResistor("R1", []string{"1", "0"}, 10)
			ckt := build(device.NewBattery("V1", []string{"1", "0"}, 1), r)
			for i := 0; i < 5; i++ {
				r.SetResistance(float64(10 + i))
				_, err := solver.Solve(ckt, 1e-3)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(ckt.Rebuilds()).To(Equal(1))
			Expect(r.Current()).To(BeNumerically("~", 1.0/14, tol))

			Expect(ckt.Add(device.NewResistor("R2", []string{"1", "0"}, 10))).To(Succeed())
			_, err := solver.Solve(ckt, 1e-3)
			Expect(err).NotTo(HaveOccurred())
			Expect(ckt.Rebuilds()).To(Equal(2))
		})
	})

	Describe("backends", func() {
		It("agree on a resistor ladder", func() {
			ladder := func() *circuit.Circuit {
				ckt := circuit.New("ladder")
				Expect(ckt.Add(device.NewBattery("V1", []string{"n0", "0"}, 3.3))).To(Succeed())
				for i := 0; i < 8; i++ {
					a, b := nodeName(i), nodeName(i+1)
					Expect(ckt.Add(
						device.NewResistor("RS"+b, []string{a, b}, 100*float64(i+1)),
						device.NewResistor("RP"+b, []string{b, "0"}, 1000+50*float64(i)),
					)).To(Succeed())
				}
				return ckt
			}

			sparse, err := analysis.NewSolver(quiet(), analysis.WithBackend(matrix.Sparse)).Solve(ladder(), 1e-3)
			Expect(err).NotTo(HaveOccurred())
			dense, err := analysis.NewSolver(quiet(), analysis.WithBackend(matrix.Dense)).Solve(ladder(), 1e-3)
			Expect(err).NotTo(HaveOccurred())

			Expect(sparse.NumNodes()).To(Equal(dense.NumNodes()))
			for n := 1; n < sparse.NumNodes(); n++ {
				Expect(sparse.NodeVoltage(n)).To(BeNumerically("~", dense.NodeVoltage(n), tol))
			}
		})
	})
})

func nodeName(i int) string {
	return "n" + string(rune('0'+i))
}
