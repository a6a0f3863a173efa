package registration

import (
	"door-opener-bridge/internal/types"
)

// SelectBlock waits for the actor to right-click a block and hands its position to OnSelect
type SelectBlock struct {
	OnSelect func(world string, pos types.BlockPos) error
}

// Invoke implements Intent
func (s *SelectBlock) Invoke(event *types.InteractionEvent) (bool, error) {
	if event.Action != types.ActionRightClickBlock || event.Block == nil {
		return false, nil
	}

	event.Cancel()
	return true, s.OnSelect(event.World, *event.Block)
}

// Region is an axis aligned box of blocks in one world
type Region struct {
	World string
	Min   types.BlockPos
	Max   types.BlockPos
}

// NewRegion builds a region from two opposite corners in any order
func NewRegion(world string, a, b types.BlockPos) Region {
	return Region{
		World: world,
		Min:   types.BlockPos{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max:   types.BlockPos{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// Contains reports whether pos lies inside the region, bounds included
func (r Region) Contains(world string, pos types.BlockPos) bool {
	return world == r.World &&
		pos.X >= r.Min.X && pos.X <= r.Max.X &&
		pos.Y >= r.Min.Y && pos.Y <= r.Max.Y &&
		pos.Z >= r.Min.Z && pos.Z <= r.Max.Z
}

// SelectRegion takes two left-clicks on blocks as the corners of a region.
// The first click is retained, the second completes the selection.
type SelectRegion struct {
	OnFirst  func(world string, pos types.BlockPos)
	OnSelect func(region Region) error

	world string
	first *types.BlockPos
}

// Invoke implements Intent
func (s *SelectRegion) Invoke(event *types.InteractionEvent) (bool, error) {
	if event.Action != types.ActionLeftClickBlock || event.Block == nil {
		return false, nil
	}
	event.Cancel()

	if s.first == nil {
		pos := *event.Block
		s.first = &pos
		s.world = event.World
		if s.OnFirst != nil {
			s.OnFirst(event.World, pos)
		}
		return false, nil
	}

	return true, s.OnSelect(NewRegion(s.world, *s.first, *event.Block))
}
