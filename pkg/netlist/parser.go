package netlist

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type AnalysisType int

const (
	AnalysisNone AnalysisType = iota
	AnalysisOP
	AnalysisTRAN
	AnalysisDC
)

func (a AnalysisType) String() string {
	switch a {
	case AnalysisOP:
		return "op"
	case AnalysisTRAN:
		return "tran"
	case AnalysisDC:
		return "dc"
	}
	return "none"
}

type TranParam struct {
	TStep  float64 // timestep
	TStop  float64 // stop time
	TStart float64 // start time
}

type DCParam struct {
	Source    string
	Start     float64
	Stop      float64
	Increment float64
}

type NetlistData struct {
	Elements  []Element      // Circuit elements
	Nodes     map[string]int // Node name and first-seen order
	Analysis  AnalysisType
	TranParam TranParam
	DCParam   DCParam
	Title     string // Circuit title
}

type Element struct {
	Type   string            // Part type (R, C, L, W, V, I)
	Name   string            // Part name
	Nodes  []string          // Node names
	Value  float64           // Part value
	Params map[string]string // Parameter values
}

// Scale factors are case-insensitive as in SPICE: M is milli, MEG is mega
// and F is femto, so 1F is 1e-15 and a farad needs no suffix.
var unitMap = map[string]float64{
	"t":   1e12,  // tera
	"g":   1e9,   // giga
	"meg": 1e6,   // mega
	"k":   1e3,   // kilo
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var (
	valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)((?i:meg|[tgkmunpf]))?[a-zA-Z]*$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

func newNetlistData() *NetlistData {
	return &NetlistData{Nodes: make(map[string]int)}
}

// Parse reads a SPICE-style netlist. The first line is the title.
func Parse(input string) (*NetlistData, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	netlistData := newNetlistData()

	// Title or comment
	if scanner.Scan() {
		netlistData.Title = strings.TrimPrefix(scanner.Text(), "*")
		netlistData.Title = strings.TrimSpace(netlistData.Title)
	}

	var currentLine string
	lineNo := 1
	startNo := 0
	flush := func() error {
		if currentLine == "" {
			return nil
		}
		err := parseLine(netlistData, currentLine)
		currentLine = ""
		if err != nil {
			return fmt.Errorf("line %d: %w", startNo, err)
		}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Trailing comment
		if idx := strings.IndexAny(line, "*;"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if len(line) == 0 {
			continue
		}

		// Line continue
		if strings.HasPrefix(line, "+") {
			if currentLine == "" {
				return nil, fmt.Errorf("line %d: continuation without a statement", lineNo)
			}
			currentLine += " " + strings.TrimSpace(line[1:])
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		if strings.EqualFold(line, ".end") {
			break
		}
		currentLine = line
		startNo = lineNo
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return netlistData, nil
}

func parseLine(netlistData *NetlistData, line string) error {
	line = spaceRe.ReplaceAllString(line, " ")

	if strings.HasPrefix(line, ".") {
		return parseDotOperator(netlistData, line)
	}

	element, err := parseElement(line)
	if err != nil {
		return err
	}
	return netlistData.addElement(*element)
}

func (n *NetlistData) addElement(elem Element) error {
	for _, e := range n.Elements {
		if strings.EqualFold(e.Name, elem.Name) {
			return fmt.Errorf("duplicate element %s", elem.Name)
		}
	}
	n.Elements = append(n.Elements, elem)
	for _, node := range elem.Nodes {
		if _, exists := n.Nodes[node]; !exists {
			n.Nodes[node] = len(n.Nodes)
		}
	}
	return nil
}

// Parse .op, .tran, .dc
func parseDotOperator(netlistData *NetlistData, line string) error {
	var err error

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ".op":
		netlistData.Analysis = AnalysisOP

	case ".tran":
		netlistData.Analysis = AnalysisTRAN
		if len(fields) < 3 {
			return fmt.Errorf("insufficient tran parameters, need at least tstep and tstop")
		}
		netlistData.TranParam.TStep, err = ParseValue(fields[1])
		if err != nil {
			return fmt.Errorf("invalid tstep: %w", err)
		}
		netlistData.TranParam.TStop, err = ParseValue(fields[2])
		if err != nil {
			return fmt.Errorf("invalid tstop: %w", err)
		}
		if len(fields) > 3 {
			netlistData.TranParam.TStart, err = ParseValue(fields[3])
			if err != nil {
				return fmt.Errorf("invalid tstart: %w", err)
			}
		}

	case ".dc":
		netlistData.Analysis = AnalysisDC
		if len(fields) < 5 {
			return fmt.Errorf("insufficient DC sweep parameters")
		}
		netlistData.DCParam.Source = fields[1]
		netlistData.DCParam.Start, err = ParseValue(fields[2])
		if err != nil {
			return fmt.Errorf("invalid start value: %w", err)
		}
		netlistData.DCParam.Stop, err = ParseValue(fields[3])
		if err != nil {
			return fmt.Errorf("invalid stop value: %w", err)
		}
		netlistData.DCParam.Increment, err = ParseValue(fields[4])
		if err != nil {
			return fmt.Errorf("invalid increment value: %w", err)
		}

	default:
		return fmt.Errorf("unsupported analysis type: %s", fields[0])
	}

	return nil
}

func parseElement(line string) (*Element, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid element format: %s", line)
	}

	elem := &Element{
		Name:   fields[0],
		Type:   strings.ToUpper(string(fields[0][0])),
		Nodes:  []string{fields[1], fields[2]},
		Params: make(map[string]string),
	}

	switch elem.Type {
	case "V", "I":
		return parseSource(elem, fields[3:])

	case "W":
		// W1 a b [resistance]
		if len(fields) > 4 {
			return nil, fmt.Errorf("too many wire parameters: %s", line)
		}
		if len(fields) == 4 {
			value, err := ParseValue(fields[3])
			if err != nil {
				return nil, err
			}
			elem.Value = value
		}
		return elem, nil

	case "R", "C", "L":
		if len(fields) != 4 {
			return nil, fmt.Errorf("expected %s name node node value: %s", elem.Type, line)
		}
		value, err := ParseValue(fields[3])
		if err != nil {
			return nil, err
		}
		elem.Value = value
		return elem, nil
	}

	return nil, fmt.Errorf("unsupported element type: %s", elem.Type)
}

// parseSource reads "DC v [r]", a bare value, or "SIN(offset amp freq [phase])".
func parseSource(elem *Element, fields []string) (*Element, error) {
	remaining := strings.Join(fields, " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ") // Append whitespace around parentheses
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)
	if len(words) == 0 {
		return nil, fmt.Errorf("missing %s source value", elem.Name)
	}

	switch strings.ToUpper(words[0]) {
	case "SIN":
		if elem.Type != "V" {
			return nil, fmt.Errorf("SIN is only supported on voltage sources")
		}
		elem.Params["type"] = "sin"
		sinParams := strings.Join(words[1:], " ")
		elem.Params["sin"] = strings.Trim(sinParams, "() ")
		if _, _, _, _, err := parseSinParams(elem.Params["sin"]); err != nil {
			return nil, err
		}
		return elem, nil

	case "DC":
		words = words[1:]
		if len(words) == 0 {
			return nil, fmt.Errorf("missing DC value")
		}
	}

	elem.Params["type"] = "dc"
	value, err := ParseValue(words[0])
	if err != nil {
		return nil, err
	}
	elem.Value = value

	for _, w := range words[1:] {
		if elem.Type != "V" {
			return nil, fmt.Errorf("unexpected current source parameter %s", w)
		}
		w = strings.TrimPrefix(strings.ToLower(w), "r=")
		if _, err := ParseValue(w); err != nil {
			return nil, fmt.Errorf("invalid internal resistance: %w", err)
		}
		elem.Params["r"] = w
	}
	return elem, nil
}

// ParseValue - Parse value and factor. 1k -> 1000
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	// factor
	factor := strings.ToLower(matches[2])
	if multiplier, ok := unitMap[factor]; ok {
		num *= multiplier
	}

	return num, nil
}

func parseSinParams(params string) (offset, amplitude, freq, phase float64, err error) {
	sinParams := strings.Fields(params)
	if len(sinParams) < 3 {
		return 0, 0, 0, 0, fmt.Errorf("insufficient SIN parameters")
	}

	vals := make([]float64, 4)
	names := []string{"offset", "amplitude", "frequency", "phase"}
	for i := 0; i < len(sinParams) && i < 4; i++ {
		vals[i], err = ParseValue(sinParams[i])
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid SIN %s: %w", names[i], err)
		}
	}

	return vals[0], vals[1], vals[2], vals[3], nil
}
