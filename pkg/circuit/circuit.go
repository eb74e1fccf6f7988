package circuit

import (
	"fmt"
	"slices"

	"github.com/edp1096/cck-mna/pkg/device"
)

// Circuit is the ordered element list of one simulation. Every change to the
// connectivity bumps the topology version; Graph rebuilds only then.
type Circuit struct {
	name    string
	devices []device.Device
	index   map[string]int
	version uint64

	graph        *Graph
	graphVersion uint64
	shape        []uint8
	rebuilds     int
}

func New(name string) *Circuit {
	return &Circuit{
		name:    name,
		devices: make([]device.Device, 0),
		index:   make(map[string]int),
		version: 1,
	}
}

func (c *Circuit) Name() string { return c.name }

// Version is the topology version, bumped on Add, Remove and Connect.
func (c *Circuit) Version() uint64 { return c.version }

// Add appends devices. Element names must be unique.
func (c *Circuit) Add(devs ...device.Device) error {
	for _, dev := range devs {
		name := dev.GetName()
		if name == "" {
			return fmt.Errorf("%w: element without name", ErrTopology)
		}
		if _, exists := c.index[name]; exists {
			return fmt.Errorf("%w: duplicate element %s", ErrTopology, name)
		}
		c.index[name] = len(c.devices)
		c.devices = append(c.devices, dev)
		c.version++
	}
	return nil
}

func (c *Circuit) Remove(name string) error {
	idx, ok := c.index[name]
	if !ok {
		return fmt.Errorf("%w: unknown element %s", ErrTopology, name)
	}
	c.devices = append(c.devices[:idx], c.devices[idx+1:]...)
	delete(c.index, name)
	for i := idx; i < len(c.devices); i++ {
		c.index[c.devices[i].GetName()] = i
	}
	c.version++
	return nil
}

// Connect moves the endpoints of an element.
func (c *Circuit) Connect(name, node0, node1 string) error {
	dev, ok := c.Device(name)
	if !ok {
		return fmt.Errorf("%w: unknown element %s", ErrTopology, name)
	}
	dev.SetNodeNames(node0, node1)
	c.version++
	return nil
}

func (c *Circuit) Device(name string) (device.Device, bool) {
	idx, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.devices[idx], true
}

func (c *Circuit) IndexOf(name string) (int, bool) {
	idx, ok := c.index[name]
	return idx, ok
}

func (c *Circuit) GetDevices() []device.Device {
	return c.devices
}

func (c *Circuit) currentShape() []uint8 {
	shape := make([]uint8, len(c.devices))
	for i, dev := range c.devices {
		if dev.NeedsBranch() {
			shape[i] |= 1
		}
		if s, ok := dev.(device.Shorting); ok && s.Shorted() {
			shape[i] |= 2
		}
	}
	return shape
}

// Graph returns the node graph, rebuilding it when the topology version
// moved or a parameter change turned an element into or out of a branch
// or short. rebuilt reports whether this call built a new graph.
func (c *Circuit) Graph() (g *Graph, rebuilt bool, err error) {
	shape := c.currentShape()
	if c.graph != nil && c.graphVersion == c.version && slices.Equal(shape, c.shape) {
		return c.graph, false, nil
	}

	g, err = BuildGraph(c.devices)
	if err != nil {
		return nil, false, err
	}
	c.graph = g
	c.graphVersion = c.version
	c.shape = shape
	c.rebuilds++
	return g, true, nil
}

// Rebuilds counts graph builds since New.
func (c *Circuit) Rebuilds() int { return c.rebuilds }

// Invalidate drops the cached graph.
func (c *Circuit) Invalidate() {
	c.version++
}
