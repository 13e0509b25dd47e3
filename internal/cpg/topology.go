package cpg

import (
	"sort"

	"quadcpg/internal/model"
)

// LimbCount is the number of limbs of the quadruped model. Limbs are
// numbered around the body: 1 front-left, 2 front-right, 3 hind-right,
// 4 hind-left.
const LimbCount = 4

// CouplingClass selects which coefficient family scores an edge.
type CouplingClass int

const (
	Adjacent CouplingClass = iota + 1
	Diagonal
)

func (c CouplingClass) String() string {
	switch c {
	case Adjacent:
		return "adjacent"
	case Diagonal:
		return "diagonal"
	default:
		return "unknown"
	}
}

// EdgeWeights are the four cross terms of one directed limb pair.
type EdgeWeights struct {
	SwSw float64
	SwSt float64
	StSw float64
	StSt float64
}

// Weights returns the coefficients of class c taken from params.
func (c CouplingClass) Weights(p model.CouplingParams) EdgeWeights {
	if c == Diagonal {
		return EdgeWeights{SwSw: p.SwSwConNew, SwSt: p.SwStConNew, StSw: p.StSwConNew, StSt: p.StStConNew}
	}
	return EdgeWeights{SwSw: p.SwSwCon, SwSt: p.SwStCon, StSw: p.StSwCon, StSt: p.StStCon}
}

// Edge is one directed coupling between limbs.
type Edge struct {
	From  int
	To    int
	Class CouplingClass
}

// topology is fixed; only the weights vary between trials.
var topology = map[[2]int]CouplingClass{
	{1, 2}: Adjacent,
	{1, 4}: Adjacent,
	{2, 1}: Adjacent,
	{2, 3}: Adjacent,
	{3, 2}: Adjacent,
	{3, 4}: Adjacent,
	{4, 1}: Adjacent,
	{4, 3}: Adjacent,

	{1, 3}: Diagonal,
	{3, 1}: Diagonal,
	{2, 4}: Diagonal,
	{4, 2}: Diagonal,
}

// Edges returns every coupling edge ordered by source then target.
func Edges() []Edge {
	out := make([]Edge, 0, len(topology))
	for pair, class := range topology {
		out = append(out, Edge{From: pair[0], To: pair[1], Class: class})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}
